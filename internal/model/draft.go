package model

// Draft is one candidate answer produced by the generator for a single attempt.
// A new Draft is created per attempt; earlier drafts are superseded, not edited.
type Draft struct {
	Narrative     string           `json:"narrative"`               // Refined, professional summary of the input
	Justification string           `json:"justification,omitempty"` // Why the codes were chosen
	Mappings      []ClaimedMapping `json:"mappings"`                // Emission order from the generator
	Focus         Focus            `json:"focus"`
}

// FilterByFocus returns the claims in scope for focus, preserving order
func (d *Draft) FilterByFocus(focus Focus) []ClaimedMapping {
	if d == nil {
		return nil
	}
	var out []ClaimedMapping
	for _, m := range d.Mappings {
		if focus.Includes(m.Framework) {
			out = append(out, m)
		}
	}
	return out
}

// MappingsOf returns the claims of one framework and, optionally, one kind
func (d *Draft) MappingsOf(fw Framework, kind RecordKind) []ClaimedMapping {
	if d == nil {
		return nil
	}
	var out []ClaimedMapping
	for _, m := range d.Mappings {
		if m.Framework != fw {
			continue
		}
		if kind != "" && m.Kind != kind {
			continue
		}
		out = append(out, m)
	}
	return out
}

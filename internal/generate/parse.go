package generate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/util"
)

const excerptLength = 100

type draftPayload struct {
	RefinedText   string       `json:"refined_text"`
	MITREAttack   []draftEntry `json:"mitre_attack"`
	Knowledge     []draftEntry `json:"knowledge"`
	Skills        []draftEntry `json:"skills"`
	Abilities     []draftEntry `json:"abilities"`
	Tasks         []draftEntry `json:"tasks"`
	Justification string       `json:"justification"`
}

type draftEntry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// UnmarshalJSON also accepts a bare string, which is taken as the code
func (e *draftEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &e.ID)
	}
	type plain draftEntry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = draftEntry(p)
	return nil
}

func (e draftEntry) text() string {
	name := strings.TrimSpace(e.Name)
	desc := strings.TrimSpace(e.Description)
	switch {
	case name != "" && desc != "" && !strings.HasPrefix(desc, name):
		return name + ": " + desc
	case desc != "":
		return desc
	default:
		return name
	}
}

// ParseDraft decodes generator output into a Draft. Markdown fences and
// chatter around the JSON object are tolerated; anything else is a
// *model.MalformedDraftError.
func ParseDraft(text string, focus model.Focus) (*model.Draft, error) {
	var payload draftPayload
	if err := decodeObject(text, &payload); err != nil {
		return nil, &model.MalformedDraftError{
			Excerpt: util.Truncate(strings.TrimSpace(text), excerptLength),
			Err:     err,
		}
	}

	draft := &model.Draft{
		Narrative:     strings.TrimSpace(payload.RefinedText),
		Justification: strings.TrimSpace(payload.Justification),
		Focus:         focus,
	}

	seen := make(map[model.RecordKey]bool)
	add := func(entries []draftEntry, fw model.Framework, kind model.RecordKind) {
		for _, e := range entries {
			claim := model.ClaimedMapping{
				Code:               strings.TrimSpace(e.ID),
				ClaimedDescription: e.text(),
				Framework:          fw,
				Kind:               kind,
			}
			if claim.Code == "" || seen[claim.Key()] {
				continue
			}
			seen[claim.Key()] = true
			draft.Mappings = append(draft.Mappings, claim)
		}
	}

	add(payload.MITREAttack, model.FrameworkMITRE, model.KindTechnique)
	add(payload.Knowledge, model.FrameworkKSA, model.KindKnowledge)
	add(payload.Skills, model.FrameworkKSA, model.KindSkill)
	add(payload.Abilities, model.FrameworkKSA, model.KindAbility)
	add(payload.Tasks, model.FrameworkKSA, model.KindTask)

	return draft, nil
}

// ValidateDraft reports whether text would parse as a draft
func ValidateDraft(text string) error {
	_, err := ParseDraft(text, model.FocusBoth)
	return err
}

func decodeObject(text string, v interface{}) error {
	clean := stripFences(text)
	if clean == "" {
		return fmt.Errorf("empty response")
	}

	err := json.Unmarshal([]byte(clean), v)
	if err == nil {
		if strings.HasPrefix(clean, "{") {
			return nil
		}
		err = fmt.Errorf("top-level JSON value is not an object")
	}

	// Retry on the outermost object when the model wrapped it in prose
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start && (start > 0 || end < len(clean)-1) {
		if err2 := json.Unmarshal([]byte(clean[start:end+1]), v); err2 == nil {
			return nil
		}
	}
	return fmt.Errorf("decode draft JSON: %w", err)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// drop the opener line, including any language tag
		idx := strings.Index(s, "\n")
		if idx < 0 {
			return ""
		}
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

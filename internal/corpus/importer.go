package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
)

const attackTechniqueBaseURL = "https://attack.mitre.org/techniques/"

type stixBundle struct {
	Objects []stixObject `json:"objects"`
}

type stixObject struct {
	Type               string            `json:"type"`
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	Revoked            bool              `json:"revoked"`
	Deprecated         bool              `json:"x_mitre_deprecated"`
	ExternalReferences []stixExternalRef `json:"external_references"`
}

type stixExternalRef struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id"`
	URL        string `json:"url"`
}

// ImportSTIX converts an ATT&CK STIX 2.x bundle into technique records.
// Revoked and deprecated attack patterns are dropped.
func ImportSTIX(r io.Reader) ([]model.FrameworkRecord, error) {
	var bundle stixBundle
	if err := json.NewDecoder(r).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("decode STIX bundle: %w", err)
	}

	var records []model.FrameworkRecord
	for _, obj := range bundle.Objects {
		if obj.Type != "attack-pattern" || obj.Revoked || obj.Deprecated {
			continue
		}
		id := ""
		for _, ref := range obj.ExternalReferences {
			if ref.SourceName == "mitre-attack" {
				id = strings.TrimSpace(ref.ExternalID)
				break
			}
		}
		if id == "" {
			continue
		}

		name := obj.Name
		if name == "" {
			name = "Unknown"
		}
		records = append(records, model.FrameworkRecord{
			Code:          id,
			Framework:     model.FrameworkMITRE,
			Name:          name,
			CanonicalText: flatten(obj.Description),
			Kind:          model.KindTechnique,
			URL:           attackTechniqueBaseURL + strings.ReplaceAll(id, ".", "/"),
		})
	}

	sortRecords(records)
	return records, nil
}

type niceComponents struct {
	Elements []niceElement `json:"elements"`
}

type niceElement struct {
	Identifier string `json:"element_identifier"`
	Type       string `json:"element_type"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

var niceKinds = map[string]model.RecordKind{
	"work_role": model.KindRole,
	"task":      model.KindTask,
	"knowledge": model.KindKnowledge,
	"skill":     model.KindSkill,
	"ability":   model.KindAbility,
}

// ImportNICE converts a NICE Framework components export into KSA records
func ImportNICE(r io.Reader) ([]model.FrameworkRecord, error) {
	var doc niceComponents
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode NICE components: %w", err)
	}

	var records []model.FrameworkRecord
	for _, el := range doc.Elements {
		kind, ok := niceKinds[el.Type]
		if !ok {
			continue
		}
		id := strings.TrimSpace(el.Identifier)
		if id == "" {
			continue
		}

		title := strings.TrimSpace(el.Title)
		text := strings.TrimSpace(el.Text)
		desc := text
		if title != "" && title != text {
			if desc != "" {
				desc = title + ": " + desc
			} else {
				desc = title
			}
		}
		if desc == "" {
			continue
		}

		records = append(records, model.FrameworkRecord{
			Code:          id,
			Framework:     model.FrameworkKSA,
			CanonicalText: desc,
			Kind:          kind,
		})
	}

	sortRecords(records)
	return records, nil
}

// WriteRecords writes records as an indented JSON array that Load accepts
func WriteRecords(path string, records []model.FrameworkRecord) error {
	sorted := append([]model.FrameworkRecord(nil), records...)
	sortRecords(sorted)

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create corpus directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

func sortRecords(records []model.FrameworkRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Framework != records[j].Framework {
			return records[i].Framework < records[j].Framework
		}
		return records[i].Code < records[j].Code
	})
}

func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/ttpmap/internal/model"
)

// Accepted aliases for each record field, in lookup priority order.
// Unknown keys are ignored.
var (
	codeKeys      = []string{"code", "id", "external_id", "element_identifier"}
	textKeys      = []string{"canonical_text", "description", "text", "definition"}
	nameKeys      = []string{"name", "title"}
	frameworkKeys = []string{"framework", "source", "namespace"}
	kindKeys      = []string{"kind", "type", "element_type"}
	urlKeys       = []string{"url", "link"}
)

type skippedRecord struct {
	index  int
	reason string
}

// readFile decodes one corpus file. A parse failure fails the whole file;
// individual malformed records are reported in skipped.
func readFile(path string) ([]model.FrameworkRecord, []skippedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read: %w", err)
	}

	var raw interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("parse: %w", err)
	}

	items, err := recordList(raw)
	if err != nil {
		return nil, nil, err
	}

	fallback := frameworkFromFilename(path)

	var (
		records []model.FrameworkRecord
		skipped []skippedRecord
	)
	for i, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			skipped = append(skipped, skippedRecord{index: i, reason: "not an object"})
			continue
		}
		rec, err := decodeRecord(fields, fallback)
		if err != nil {
			skipped = append(skipped, skippedRecord{index: i, reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

// recordList accepts a top-level list, a single record, or a wrapper
// object holding a "records" list.
func recordList(raw interface{}) ([]interface{}, error) {
	switch v := raw.(type) {
	case []interface{}:
		return v, nil
	case map[string]interface{}:
		if list, ok := v["records"].([]interface{}); ok {
			return list, nil
		}
		return []interface{}{v}, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected top-level value of type %T", raw)
	}
}

func decodeRecord(fields map[string]interface{}, fallback model.Framework) (model.FrameworkRecord, error) {
	rec := model.FrameworkRecord{
		Code:          strings.TrimSpace(firstString(fields, codeKeys)),
		CanonicalText: strings.TrimSpace(firstString(fields, textKeys)),
		Name:          strings.TrimSpace(firstString(fields, nameKeys)),
		URL:           strings.TrimSpace(firstString(fields, urlKeys)),
		Kind:          parseKind(firstString(fields, kindKeys)),
	}

	if rec.Code == "" {
		return rec, fmt.Errorf("missing code")
	}
	if rec.CanonicalText == "" {
		// Some sources only carry a title
		rec.CanonicalText = rec.Name
	}
	if rec.CanonicalText == "" {
		return rec, fmt.Errorf("record %s has no canonical text", rec.Code)
	}

	if fw, ok := model.ParseFramework(firstString(fields, frameworkKeys)); ok {
		rec.Framework = fw
	} else {
		rec.Framework = fallback
	}
	if rec.Framework == "" {
		rec.Framework = frameworkFromKind(rec.Kind)
	}
	if rec.Framework == "" {
		return rec, fmt.Errorf("record %s has no framework", rec.Code)
	}
	if rec.Framework == model.FrameworkMITRE && rec.Kind == "" {
		rec.Kind = model.KindTechnique
	}

	return rec, nil
}

func firstString(fields map[string]interface{}, keys []string) string {
	for _, k := range keys {
		v, ok := fields[k]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64, int, int64:
			return fmt.Sprint(s)
		}
	}
	return ""
}

func parseKind(s string) model.RecordKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "technique", "attack-pattern", "sub-technique", "subtechnique":
		return model.KindTechnique
	case "knowledge", "k":
		return model.KindKnowledge
	case "skill", "s":
		return model.KindSkill
	case "ability", "a":
		return model.KindAbility
	case "task", "t":
		return model.KindTask
	case "role", "work_role", "work role":
		return model.KindRole
	default:
		return ""
	}
}

func frameworkFromKind(kind model.RecordKind) model.Framework {
	switch kind {
	case model.KindTechnique:
		return model.FrameworkMITRE
	case model.KindKnowledge, model.KindSkill, model.KindAbility, model.KindTask, model.KindRole:
		return model.FrameworkKSA
	default:
		return ""
	}
}

func frameworkFromFilename(path string) model.Framework {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(base, "mitre"), strings.Contains(base, "attack"):
		return model.FrameworkMITRE
	case strings.Contains(base, "nice"), strings.Contains(base, "ksa"):
		return model.FrameworkKSA
	default:
		return ""
	}
}

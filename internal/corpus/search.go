package corpus

import (
	"sort"
	"strings"

	"github.com/ppiankov/ttpmap/internal/model"
	"github.com/ppiankov/ttpmap/internal/util"
)

// Match is one keyword search hit
type Match struct {
	Record model.FrameworkRecord `json:"record"`
	Score  int                   `json:"score"` // number of query terms found in the record
}

// Search ranks records of framework fw by how many query terms they contain.
// Terms are reduced to stems, so "credentials" also hits "credential".
// An empty framework searches every record. Ties are broken by code.
func (c *Corpus) Search(fw model.Framework, terms []string, limit int) []Match {
	stems := util.Stems(strings.Join(terms, " "))
	if len(stems) == 0 {
		return nil
	}

	var matches []Match
	for _, rec := range c.ordered {
		if fw != "" && rec.Framework != fw {
			continue
		}
		content := strings.ToLower(rec.Name + " " + rec.CanonicalText + " " + string(rec.Kind))
		score := 0
		for _, st := range stems {
			if strings.Contains(content, st) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, Match{Record: rec, Score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].Record.Framework != matches[j].Record.Framework {
			return matches[i].Record.Framework < matches[j].Record.Framework
		}
		return matches[i].Record.Code < matches[j].Record.Code
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// minSuggestScore keeps one-word coincidences out of suggestions
const minSuggestScore = 2

// Suggest returns the best keyword match for a claim's description within
// its framework, skipping the claimed code itself.
func (c *Corpus) Suggest(claim model.ClaimedMapping) (model.FrameworkRecord, bool) {
	need := minSuggestScore
	if n := len(util.Stems(claim.ClaimedDescription)); n < need {
		need = n
	}
	if need == 0 {
		return model.FrameworkRecord{}, false
	}

	for _, m := range c.Search(claim.Framework, []string{claim.ClaimedDescription}, 0) {
		if m.Score < need {
			break
		}
		if m.Record.Code == claim.Code {
			continue
		}
		if claim.Kind != "" && m.Record.Kind != "" && m.Record.Kind != claim.Kind {
			continue
		}
		return m.Record, true
	}
	return model.FrameworkRecord{}, false
}

// Related returns up to limit records whose text shares terms with text,
// spread evenly over the frameworks in focus. Records in skip are left out.
func (c *Corpus) Related(text string, focus model.Focus, limit int, skip map[model.RecordKey]bool) []model.FrameworkRecord {
	need := minSuggestScore
	if n := len(util.Stems(text)); n < need {
		need = n
	}
	if need == 0 || limit <= 0 {
		return nil
	}

	var frameworks []model.Framework
	for _, fw := range []model.Framework{model.FrameworkMITRE, model.FrameworkKSA} {
		if focus.Includes(fw) {
			frameworks = append(frameworks, fw)
		}
	}
	per := limit / len(frameworks)
	if per == 0 {
		per = 1
	}

	var out []model.FrameworkRecord
	for _, fw := range frameworks {
		taken := 0
		for _, m := range c.Search(fw, []string{text}, 0) {
			if m.Score < need || taken == per {
				break
			}
			if skip[m.Record.Key()] {
				continue
			}
			out = append(out, m.Record)
			taken++
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

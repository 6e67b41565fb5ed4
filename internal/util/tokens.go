package util

import (
	"strings"
	"unicode"
)

// StemLength is the rune length tokens are truncated to
const StemLength = 6

// MinTokenLength drops tokens shorter than this many runes
const MinTokenLength = 3

// stopWords are English function words plus framework boilerplate that
// appears in nearly every record and carries no meaning on its own.
var stopWords = map[string]struct{}{
	// function words
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {}, "onto": {},
	"that": {}, "this": {}, "these": {}, "those": {}, "their": {}, "there": {},
	"they": {}, "them": {}, "then": {}, "than": {}, "are": {}, "was": {}, "were": {},
	"been": {}, "being": {}, "have": {}, "has": {}, "had": {}, "not": {}, "but": {},
	"its": {}, "his": {}, "her": {}, "who": {}, "whom": {}, "which": {}, "what": {},
	"when": {}, "where": {}, "how": {}, "also": {}, "such": {}, "other": {}, "any": {},
	"all": {}, "each": {}, "can": {}, "could": {}, "may": {}, "might": {}, "will": {},
	"would": {}, "should": {}, "must": {}, "via": {}, "within": {}, "without": {},
	"about": {}, "over": {}, "under": {}, "between": {}, "through": {}, "upon": {},
	"more": {}, "most": {}, "some": {}, "only": {}, "both": {}, "either": {}, "one": {},
	"use": {}, "used": {}, "uses": {}, "using": {}, "able": {}, "order": {}, "well": {},
	"etc": {}, "including": {}, "include": {}, "includes": {},
	// framework boilerplate
	"knowledge": {}, "skill": {}, "skills": {}, "ability": {}, "abilities": {},
	"task": {}, "tasks": {}, "adversary": {}, "adversaries": {}, "attacker": {},
	"attackers": {}, "technique": {}, "techniques": {}, "sub": {}, "perform": {},
	"performing": {}, "conduct": {}, "conducting": {},
}

// IsStopWord reports whether a lowercase word carries no meaning for matching
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Words lowercases s and splits it on anything that is not a letter or digit
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Stems returns the distinct significant tokens of s in first-seen order:
// stop words and short words are dropped and the rest truncated to StemLength runes.
func Stems(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range Words(s) {
		if IsStopWord(w) {
			continue
		}
		runes := []rune(w)
		if len(runes) < MinTokenLength {
			continue
		}
		if len(runes) > StemLength {
			runes = runes[:StemLength]
		}
		stem := string(runes)
		if _, dup := seen[stem]; dup {
			continue
		}
		seen[stem] = struct{}{}
		out = append(out, stem)
	}
	return out
}

// StemSet is Stems as a set
func StemSet(s string) map[string]struct{} {
	stems := Stems(s)
	set := make(map[string]struct{}, len(stems))
	for _, st := range stems {
		set[st] = struct{}{}
	}
	return set
}

// Truncate shortens s to at most n runes, appending "..." when cut
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return strings.TrimSpace(string(runes[:n-3])) + "..."
}

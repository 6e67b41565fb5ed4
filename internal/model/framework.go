package model

import (
	"fmt"
	"strings"
)

// Framework names the taxonomy namespace a code belongs to
type Framework string

const (
	FrameworkMITRE Framework = "mitre" // MITRE ATT&CK techniques (T1490, T1059.001)
	FrameworkKSA   Framework = "ksa"   // NICE Knowledge/Skill/Ability/Task elements
)

// ParseFramework accepts the canonical names plus the aliases seen in corpus files
func ParseFramework(s string) (Framework, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mitre", "attack", "mitre attack", "mitre att&ck", "mitre-attack":
		return FrameworkMITRE, true
	case "ksa", "nice", "nice framework":
		return FrameworkKSA, true
	default:
		return "", false
	}
}

// Focus selects which framework(s) a session must ground
type Focus string

const (
	FocusMITRE Focus = "mitre"
	FocusKSA   Focus = "ksa"
	FocusBoth  Focus = "both"
)

// ParseFocus parses a user-supplied focus. Empty input means both.
func ParseFocus(s string) (Focus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return FocusBoth, nil
	case "mitre", "attack":
		return FocusMITRE, nil
	case "ksa", "nice":
		return FocusKSA, nil
	default:
		return "", fmt.Errorf("invalid focus %q (expected mitre, ksa or both)", s)
	}
}

// Includes reports whether claims from fw are in scope for this focus
func (f Focus) Includes(fw Framework) bool {
	switch f {
	case FocusMITRE:
		return fw == FrameworkMITRE
	case FocusKSA:
		return fw == FrameworkKSA
	default:
		return fw == FrameworkMITRE || fw == FrameworkKSA
	}
}

// RecordKind is the element type inside a framework
type RecordKind string

const (
	KindTechnique RecordKind = "technique"
	KindKnowledge RecordKind = "knowledge"
	KindSkill     RecordKind = "skill"
	KindAbility   RecordKind = "ability"
	KindTask      RecordKind = "task"
	KindRole      RecordKind = "role"
)

// FrameworkRecord is one authoritative definition loaded from the corpus.
// Records are immutable after load.
type FrameworkRecord struct {
	Code          string     `json:"code" yaml:"code"`
	Framework     Framework  `json:"framework" yaml:"framework"`
	CanonicalText string     `json:"canonical_text" yaml:"canonical_text"`
	Name          string     `json:"name,omitempty" yaml:"name,omitempty"`
	Kind          RecordKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	URL           string     `json:"url,omitempty" yaml:"url,omitempty"`
}

// Key returns the (framework, code) index key
func (r FrameworkRecord) Key() RecordKey {
	return RecordKey{Framework: r.Framework, Code: r.Code}
}

// FullText is the text a claim is compared against: name and description
func (r FrameworkRecord) FullText() string {
	if r.Name == "" || strings.HasPrefix(r.CanonicalText, r.Name) {
		return r.CanonicalText
	}
	return r.Name + ": " + r.CanonicalText
}

// RecordKey identifies a record; codes are only unique within a framework
type RecordKey struct {
	Framework Framework
	Code      string
}

func (k RecordKey) String() string {
	return string(k.Framework) + ":" + k.Code
}

// ClaimedMapping is one assertion made by a draft. It is never edited;
// verification produces a separate VerificationResult.
type ClaimedMapping struct {
	Code               string     `json:"code"`
	ClaimedDescription string     `json:"claimed_description"`
	Framework          Framework  `json:"framework"`
	Kind               RecordKind `json:"kind,omitempty"`
}

// Key returns the lookup key for the claim
func (c ClaimedMapping) Key() RecordKey {
	return RecordKey{Framework: c.Framework, Code: c.Code}
}

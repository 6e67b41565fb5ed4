package verify

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ttpmap/internal/corpus"
	"github.com/ppiankov/ttpmap/internal/model"
)

func testCorpus() *corpus.Corpus {
	return corpus.New([]model.FrameworkRecord{
		{
			Code:          "T1490",
			Framework:     model.FrameworkMITRE,
			Name:          "Inhibit System Recovery",
			CanonicalText: "Adversaries may delete or remove built-in data and turn off services designed to aid in the recovery of a corrupted system to prevent recovery.",
		},
		{
			Code:          "T1003",
			Framework:     model.FrameworkMITRE,
			Name:          "OS Credential Dumping",
			CanonicalText: "Adversaries may attempt to dump credentials to obtain account login and credential material, normally in the form of a hash or a clear text password, from the operating system and software.",
		},
		{
			Code:          "T1059.001",
			Framework:     model.FrameworkMITRE,
			Name:          "PowerShell",
			CanonicalText: "Adversaries may abuse PowerShell commands and scripts for execution.",
		},
		{
			Code:          "K0070",
			Framework:     model.FrameworkKSA,
			CanonicalText: "Knowledge of system and application security threats and vulnerabilities.",
			Kind:          model.KindKnowledge,
		},
	})
}

func mitreClaim(code, desc string) model.ClaimedMapping {
	return model.ClaimedMapping{Code: code, ClaimedDescription: desc, Framework: model.FrameworkMITRE}
}

func TestVerify_Scenarios(t *testing.T) {
	engine := New(testCorpus())

	tests := []struct {
		name   string
		claim  model.ClaimedMapping
		status model.VerificationStatus
	}{
		{
			name:   "known code with matching description",
			claim:  mitreClaim("T1490", "Inhibit System Recovery technique..."),
			status: model.StatusVerified,
		},
		{
			name:   "fabricated code",
			claim:  mitreClaim("T9999", "Inhibit System Recovery"),
			status: model.StatusUnknownCode,
		},
		{
			name:   "known code with contradicting description",
			claim:  mitreClaim("T1490", "Credential dumping via memory scraping"),
			status: model.StatusMismatch,
		},
		{
			name:   "paraphrase",
			claim:  mitreClaim("T1003", "Dumping credentials from the operating system"),
			status: model.StatusVerified,
		},
		{
			name:   "obvious contradiction",
			claim:  mitreClaim("T1003", "Encrypting files for ransom to disrupt availability"),
			status: model.StatusMismatch,
		},
		{
			name:   "single term name",
			claim:  mitreClaim("T1059.001", "PowerShell"),
			status: model.StatusVerified,
		},
		{
			name:   "one shared term is not enough",
			claim:  mitreClaim("T1490", "System information discovery"),
			status: model.StatusMismatch,
		},
		{
			name:   "empty description",
			claim:  mitreClaim("T1490", ""),
			status: model.StatusMismatch,
		},
		{
			name:   "boilerplate only",
			claim:  mitreClaim("T1490", "Adversary technique"),
			status: model.StatusMismatch,
		},
		{
			name: "ksa knowledge paraphrase",
			claim: model.ClaimedMapping{
				Code:               "K0070",
				ClaimedDescription: "Knowledge of application security threats",
				Framework:          model.FrameworkKSA,
			},
			status: model.StatusVerified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := engine.VerifyClaim(tt.claim)
			assert.Equal(t, tt.status, res.Status, "rationale: %s", res.Rationale)
			assert.Equal(t, tt.claim, res.Claim)
			assert.NotEmpty(t, res.Rationale)
		})
	}
}

func TestVerify_UnknownCodeNeverVerified(t *testing.T) {
	engine := New(testCorpus())

	fabricated := []model.ClaimedMapping{
		mitreClaim("T9999", "Inhibit System Recovery"),
		mitreClaim("t1490", "Inhibit System Recovery"),
		mitreClaim("T1490 ", "Inhibit System Recovery"),
		mitreClaim("T149", "Inhibit System Recovery"),
		mitreClaim("T1490.001", "Inhibit System Recovery"),
		// code exists, but in the other namespace
		{Code: "T1490", ClaimedDescription: "Inhibit System Recovery", Framework: model.FrameworkKSA},
		{Code: "K0070", ClaimedDescription: "system application security threats", Framework: model.FrameworkMITRE},
	}

	for _, res := range engine.Verify(fabricated) {
		assert.Equal(t, model.StatusUnknownCode, res.Status, "claim %s:%s", res.Claim.Framework, res.Claim.Code)
		assert.Nil(t, res.MatchedRecord)
	}
}

func TestVerify_Deterministic(t *testing.T) {
	engine := New(testCorpus())
	claims := []model.ClaimedMapping{
		mitreClaim("T1490", "Inhibit System Recovery"),
		mitreClaim("T1490", "Credential dumping via memory scraping"),
		mitreClaim("T0000", "nothing"),
	}

	first := engine.Verify(claims)
	for i := 0; i < 5; i++ {
		again := engine.Verify(claims)
		require.Len(t, again, len(first))
		for j := range first {
			assert.Equal(t, first[j].Status, again[j].Status)
			assert.Equal(t, first[j].Rationale, again[j].Rationale)
			assert.Equal(t, first[j].Similarity, again[j].Similarity)
		}
	}
}

func TestVerify_PreservesLengthAndOrder(t *testing.T) {
	engine := New(testCorpus())
	claims := []model.ClaimedMapping{
		mitreClaim("T0001", "a"),
		mitreClaim("T1490", "Inhibit System Recovery"),
		mitreClaim("T0002", "b"),
	}

	results := engine.Verify(claims)
	require.Len(t, results, 3)
	for i := range claims {
		assert.Equal(t, claims[i], results[i].Claim)
	}
	assert.Empty(t, engine.Verify(nil))
}

func TestVerify_MismatchRationaleQuotesCanonicalText(t *testing.T) {
	long := strings.Repeat("recovery backups shadow copies ", 20)
	c := corpus.New([]model.FrameworkRecord{
		{Code: "T1490", Framework: model.FrameworkMITRE, Name: "Inhibit System Recovery", CanonicalText: long},
	})
	engine := New(c)

	res := engine.VerifyClaim(mitreClaim("T1490", "Credential dumping via memory scraping"))
	require.Equal(t, model.StatusMismatch, res.Status)
	require.NotNil(t, res.MatchedRecord)
	assert.Contains(t, res.Rationale, "Inhibit System Recovery: recovery backups")

	excerpt := Excerpt(res.MatchedRecord.FullText())
	assert.LessOrEqual(t, utf8.RuneCountInString(excerpt), ExcerptLength)
	assert.True(t, strings.HasSuffix(excerpt, "..."))
	assert.Contains(t, res.Rationale, fmt.Sprintf("%q", excerpt))
}

func TestVerify_Threshold(t *testing.T) {
	// 2 of 3 terms shared: passes at 0.5, fails at 0.9
	claim := mitreClaim("T1490", "Inhibit recovery quickly")

	assert.Equal(t, model.StatusVerified, New(testCorpus()).VerifyClaim(claim).Status)
	assert.Equal(t, model.StatusMismatch, New(testCorpus(), WithThreshold(0.9)).VerifyClaim(claim).Status)

	e := New(testCorpus(), WithThreshold(7))
	assert.Equal(t, DefaultThreshold, e.Threshold())
}

func TestCompare(t *testing.T) {
	o := Compare("Deleting shadow copies and backups", "Inhibit System Recovery: delete shadow copies")
	assert.Equal(t, 4, o.ClaimTerms)
	assert.Equal(t, 2, o.SharedTerms)
	assert.Equal(t, []string{"deleti", "backup"}, o.Missing)
	assert.InDelta(t, 0.5, o.Score(), 1e-9)
	assert.True(t, o.Passes(DefaultThreshold))

	empty := Compare("the of and", "anything at all")
	assert.Equal(t, 0, empty.ClaimTerms)
	assert.Zero(t, empty.Score())
	assert.False(t, empty.Passes(DefaultThreshold))
}

package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/ttpmap/internal/model"
)

const mitreSimple = `[
  {"id": "T1490", "name": "Inhibit System Recovery", "description": "Adversaries may delete or remove built-in data and turn off services designed to aid in the recovery of a corrupted system.", "url": "https://attack.mitre.org/techniques/T1490"},
  {"id": " T1059.001 ", "name": "PowerShell", "description": "Adversaries may abuse PowerShell commands and scripts for execution."},
  {"id": "T1490", "name": "Duplicate", "description": "should be ignored"},
  {"name": "no id here", "description": "malformed"}
]`

const niceYAML = `
- id: K0001
  type: Knowledge
  description: Knowledge of computer networking concepts and protocols
- id: S0010
  type: Skill
  text: Skill in conducting vulnerability scans
- code: T0021
  kind: task
  canonical_text: Develop and conduct tests of systems
- just: garbage
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mitre_simple.json", mitreSimple)
	writeFile(t, dir, "nice_simple.yaml", niceYAML)
	writeFile(t, dir, "broken.json", `{"id": `)
	writeFile(t, dir, "README.md", "not a corpus file")

	c, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5, c.Len())

	rec, ok := c.Lookup(model.FrameworkMITRE, "T1490")
	require.True(t, ok)
	assert.Equal(t, "Inhibit System Recovery", rec.Name)
	assert.Equal(t, model.KindTechnique, rec.Kind)
	assert.Contains(t, rec.CanonicalText, "recovery of a corrupted system")

	_, ok = c.Lookup(model.FrameworkMITRE, "T1059.001")
	assert.True(t, ok, "codes are trimmed at load")

	rec, ok = c.Lookup(model.FrameworkKSA, "S0010")
	require.True(t, ok)
	assert.Equal(t, model.KindSkill, rec.Kind)
	assert.Equal(t, "Skill in conducting vulnerability scans", rec.CanonicalText)

	_, ok = c.Lookup(model.FrameworkKSA, "T0021")
	assert.True(t, ok)

	st := c.Stats()
	assert.Equal(t, 2, st.ByFramework[model.FrameworkMITRE])
	assert.Equal(t, 3, st.ByFramework[model.FrameworkKSA])
	assert.Equal(t, 1, st.Duplicates)
	// one unparseable file plus two malformed records
	assert.Equal(t, 3, st.Skipped)
	assert.Equal(t, []string{"mitre_simple.json", "nice_simple.yaml"}, st.Files)
}

func TestLoad_DuplicateKeepsFirst(t *testing.T) {
	c := New([]model.FrameworkRecord{
		{Code: "T1490", Framework: model.FrameworkMITRE, CanonicalText: "first"},
		{Code: "T1490", Framework: model.FrameworkMITRE, CanonicalText: "second"},
	})

	rec, ok := c.Lookup(model.FrameworkMITRE, "T1490")
	require.True(t, ok)
	assert.Equal(t, "first", rec.CanonicalText)
	assert.Equal(t, 1, c.Len())
}

func TestLoad_SameCodeDifferentFrameworks(t *testing.T) {
	c := New([]model.FrameworkRecord{
		{Code: "T0021", Framework: model.FrameworkMITRE, CanonicalText: "a technique"},
		{Code: "T0021", Framework: model.FrameworkKSA, CanonicalText: "a task"},
	})

	mitre, ok := c.Lookup(model.FrameworkMITRE, "T0021")
	require.True(t, ok)
	ksa, ok := c.Lookup(model.FrameworkKSA, "T0021")
	require.True(t, ok)
	assert.NotEqual(t, mitre.CanonicalText, ksa.CanonicalText)
}

func TestLookup_CaseSensitive(t *testing.T) {
	c := New([]model.FrameworkRecord{
		{Code: "T1490", Framework: model.FrameworkMITRE, CanonicalText: "recovery"},
	})

	_, ok := c.Lookup(model.FrameworkMITRE, "t1490")
	assert.False(t, ok)
	_, ok = c.Lookup(model.FrameworkKSA, "T1490")
	assert.False(t, ok)
}

func TestLoad_UnreadableDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read corpus directory")
}

func TestLoad_EmptyDirectory(t *testing.T) {
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestLoad_FrameworkInference(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "records.yaml", `
- id: A0004
  type: Ability
  description: Ability to analyze malware
- id: T1566
  framework: attack
  description: Phishing messages to gain access
- id: X1
  description: nothing tells us the framework
`)

	c, err := Load(dir)
	require.NoError(t, err)

	_, ok := c.Lookup(model.FrameworkKSA, "A0004")
	assert.True(t, ok, "kind implies ksa")
	_, ok = c.Lookup(model.FrameworkMITRE, "T1566")
	assert.True(t, ok, "explicit framework alias")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Stats().Skipped)
}

func TestLoad_WrappedRecords(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ksa.json", `{"version": 2, "records": [{"id": "K0004", "description": "Cybersecurity principles"}]}`)

	c, err := Load(dir)
	require.NoError(t, err)
	_, ok := c.Lookup(model.FrameworkKSA, "K0004")
	assert.True(t, ok)
}

func TestRecords(t *testing.T) {
	c := New([]model.FrameworkRecord{
		{Code: "T1490", Framework: model.FrameworkMITRE, CanonicalText: "a"},
		{Code: "K0001", Framework: model.FrameworkKSA, CanonicalText: "b"},
		{Code: "T1059", Framework: model.FrameworkMITRE, CanonicalText: "c"},
	})

	mitre := c.Records(model.FrameworkMITRE)
	require.Len(t, mitre, 2)
	assert.Equal(t, "T1490", mitre[0].Code)
	assert.Equal(t, "T1059", mitre[1].Code)
	assert.Len(t, c.Records(""), 3)
}

func TestSearch(t *testing.T) {
	c := New([]model.FrameworkRecord{
		{Code: "T1490", Framework: model.FrameworkMITRE, Name: "Inhibit System Recovery", CanonicalText: "delete backups and shadow copies"},
		{Code: "T1003", Framework: model.FrameworkMITRE, Name: "OS Credential Dumping", CanonicalText: "dump credentials from memory"},
		{Code: "T1555", Framework: model.FrameworkMITRE, Name: "Credentials from Password Stores", CanonicalText: "search password stores for credentials"},
		{Code: "K0007", Framework: model.FrameworkKSA, CanonicalText: "Knowledge of credential management"},
	})

	matches := c.Search(model.FrameworkMITRE, []string{"dumping", "credentials", "memory"}, 5)
	require.NotEmpty(t, matches)
	assert.Equal(t, "T1003", matches[0].Record.Code)
	for _, m := range matches {
		assert.Equal(t, model.FrameworkMITRE, m.Record.Framework)
	}

	ksa := c.Search(model.FrameworkKSA, []string{"credentials"}, 5)
	require.Len(t, ksa, 1)
	assert.Equal(t, "K0007", ksa[0].Record.Code)

	assert.Empty(t, c.Search("", []string{"the", "of", "a"}, 5), "stop words only")
}

func TestSearch_TiesBrokenByCode(t *testing.T) {
	c := New([]model.FrameworkRecord{
		{Code: "T1555", Framework: model.FrameworkMITRE, CanonicalText: "password stores"},
		{Code: "T1110", Framework: model.FrameworkMITRE, CanonicalText: "password guessing"},
	})

	matches := c.Search(model.FrameworkMITRE, []string{"password"}, 0)
	require.Len(t, matches, 2)
	assert.Equal(t, "T1110", matches[0].Record.Code)
	assert.Equal(t, "T1555", matches[1].Record.Code)
}

const stixSample = `{
  "type": "bundle",
  "objects": [
    {
      "type": "attack-pattern",
      "name": "Inhibit System Recovery",
      "description": "Adversaries may delete or remove built-in data.\n\nThis includes shadow copies.",
      "external_references": [
        {"source_name": "mitre-attack", "external_id": "T1490", "url": "https://attack.mitre.org/techniques/T1490"},
        {"source_name": "capec", "external_id": "CAPEC-1"}
      ]
    },
    {
      "type": "attack-pattern",
      "name": "PowerShell",
      "description": "Abuse PowerShell.",
      "external_references": [{"source_name": "mitre-attack", "external_id": "T1059.001"}]
    },
    {
      "type": "attack-pattern",
      "name": "Old Technique",
      "revoked": true,
      "external_references": [{"source_name": "mitre-attack", "external_id": "T9999"}]
    },
    {
      "type": "malware",
      "name": "Not a technique",
      "external_references": [{"source_name": "mitre-attack", "external_id": "S0001"}]
    }
  ]
}`

func TestImportSTIX(t *testing.T) {
	records, err := ImportSTIX(strings.NewReader(stixSample))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "T1059.001", records[0].Code)
	assert.Equal(t, "https://attack.mitre.org/techniques/T1059/001", records[0].URL)

	assert.Equal(t, "T1490", records[1].Code)
	assert.Equal(t, model.FrameworkMITRE, records[1].Framework)
	assert.Equal(t, "Adversaries may delete or remove built-in data. This includes shadow copies.", records[1].CanonicalText)
}

func TestImportSTIX_InvalidJSON(t *testing.T) {
	_, err := ImportSTIX(strings.NewReader("{"))
	assert.Error(t, err)
}

const niceSample = `{
  "elements": [
    {"element_identifier": "K0001", "element_type": "knowledge", "title": "", "text": "Knowledge of computer networking concepts"},
    {"element_identifier": "OG-WRL-001", "element_type": "work_role", "title": "Defensive Cybersecurity", "text": "Responsible for analyzing data"},
    {"element_identifier": "S0010", "element_type": "skill", "title": "Skill in scanning", "text": "Skill in scanning"},
    {"element_identifier": "X1", "element_type": "competency_area", "title": "ignored"}
  ]
}`

func TestImportNICE(t *testing.T) {
	records, err := ImportNICE(strings.NewReader(niceSample))
	require.NoError(t, err)
	require.Len(t, records, 3)

	byCode := make(map[string]model.FrameworkRecord)
	for _, r := range records {
		assert.Equal(t, model.FrameworkKSA, r.Framework)
		byCode[r.Code] = r
	}

	assert.Equal(t, "Defensive Cybersecurity: Responsible for analyzing data", byCode["OG-WRL-001"].CanonicalText)
	assert.Equal(t, model.KindRole, byCode["OG-WRL-001"].Kind)
	assert.Equal(t, "Skill in scanning", byCode["S0010"].CanonicalText)
	assert.Equal(t, model.KindKnowledge, byCode["K0001"].Kind)
}

func TestWriteRecords_RoundTripsThroughLoad(t *testing.T) {
	records, err := ImportSTIX(strings.NewReader(stixSample))
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, WriteRecords(filepath.Join(dir, "mitre.json"), records))

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, len(records), c.Len())

	rec, ok := c.Lookup(model.FrameworkMITRE, "T1059.001")
	require.True(t, ok)
	assert.Equal(t, "PowerShell", rec.Name)
	assert.Equal(t, model.KindTechnique, rec.Kind)
}

func TestSuggest(t *testing.T) {
	c := New([]model.FrameworkRecord{
		{Code: "T1490", Framework: model.FrameworkMITRE, Name: "Inhibit System Recovery", CanonicalText: "Adversaries may delete or remove built-in data to prevent recovery.", Kind: model.KindTechnique},
		{Code: "T1003", Framework: model.FrameworkMITRE, Name: "OS Credential Dumping", CanonicalText: "Adversaries may dump credentials from the operating system.", Kind: model.KindTechnique},
		{Code: "K0070", Framework: model.FrameworkKSA, CanonicalText: "Knowledge of system recovery and inhibit procedures", Kind: model.KindKnowledge},
	})

	rec, ok := c.Suggest(model.ClaimedMapping{Code: "T9999", ClaimedDescription: "Deleting backups to inhibit recovery", Framework: model.FrameworkMITRE})
	require.True(t, ok)
	assert.Equal(t, "T1490", rec.Code)

	_, ok = c.Suggest(model.ClaimedMapping{Code: "T9999", ClaimedDescription: "recovery", Framework: model.FrameworkMITRE})
	assert.True(t, ok, "single-term descriptions need one hit")

	_, ok = c.Suggest(model.ClaimedMapping{Code: "T9999", ClaimedDescription: "lateral movement across smb shares", Framework: model.FrameworkMITRE})
	assert.False(t, ok)

	_, ok = c.Suggest(model.ClaimedMapping{Code: "T9999", ClaimedDescription: "", Framework: model.FrameworkMITRE})
	assert.False(t, ok)

	_, ok = c.Suggest(model.ClaimedMapping{Code: "T1490", ClaimedDescription: "inhibit system recovery", Framework: model.FrameworkMITRE})
	assert.False(t, ok, "the claimed code itself is never suggested")
}

func TestRelated(t *testing.T) {
	c := New([]model.FrameworkRecord{
		{Code: "T1490", Framework: model.FrameworkMITRE, Name: "Inhibit System Recovery", CanonicalText: "delete backups and shadow copies to prevent recovery"},
		{Code: "T1485", Framework: model.FrameworkMITRE, Name: "Data Destruction", CanonicalText: "destroy data and backups"},
		{Code: "T1486", Framework: model.FrameworkMITRE, Name: "Data Encrypted for Impact", CanonicalText: "encrypt data and delete backups"},
		{Code: "K0049", Framework: model.FrameworkKSA, CanonicalText: "Knowledge of backup and recovery procedures"},
		{Code: "K0070", Framework: model.FrameworkKSA, CanonicalText: "Knowledge of application security threats"},
	})
	text := "they deleted the backups and shadow copies so recovery failed"

	got := c.Related(text, model.FocusMITRE, 4, nil)
	codes := make([]string, 0, len(got))
	for _, rec := range got {
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []string{"T1490", "T1486"}, codes, "single-term hits are left out")

	got = c.Related(text, model.FocusMITRE, 4, map[model.RecordKey]bool{{Framework: model.FrameworkMITRE, Code: "T1490"}: true})
	require.Len(t, got, 1)
	assert.Equal(t, "T1486", got[0].Code)

	got = c.Related(text, model.FocusBoth, 2, nil)
	require.Len(t, got, 2)
	assert.Equal(t, "T1490", got[0].Code)
	assert.Equal(t, "K0049", got[1].Code, "limit is shared between frameworks")

	assert.Empty(t, c.Related("", model.FocusBoth, 4, nil))
	assert.Empty(t, c.Related(text, model.FocusBoth, 0, nil))
}

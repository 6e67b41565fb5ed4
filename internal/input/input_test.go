package input

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	in := "  first line  \r\n\r\n\r\n\tsecond line\n\n\n" + string([]byte{0xff}) + "third\n  "
	assert.Equal(t, "first line\n\n\tsecond line\n\nthird", Normalize(in))
	assert.Equal(t, "", Normalize(" \n\t\n "))
}

func TestFromArgs(t *testing.T) {
	text, err := FromArgs([]string{"they", "dumped", "lsass"})
	require.NoError(t, err)
	assert.Equal(t, "they dumped lsass", text)

	_, err = FromArgs([]string{" ", ""})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReadFile_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("Operator wiped shadow copies.\n"), 0o644))

	text, err := ReadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "Operator wiped shadow copies.", text)
}

func TestReadFile_HTML(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>ignored</title><style>p{}</style></head>
<body><h1>Incident</h1><p>Attacker ran <b>mimikatz</b> against lsass.</p>
<script>alert(1)</script><p>Then deleted backups.</p></body></html>`
	path := filepath.Join(t.TempDir(), "report.html")
	require.NoError(t, os.WriteFile(path, []byte(page), 0o644))

	text, err := ReadFile(path, 0)
	require.NoError(t, err)
	assert.Contains(t, text, "Incident")
	assert.Contains(t, text, "Attacker ran mimikatz against lsass.")
	assert.Contains(t, text, "Then deleted backups.")
	assert.NotContains(t, text, "ignored")
	assert.NotContains(t, text, "alert")
}

func TestReadFile_SniffsHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved")
	require.NoError(t, os.WriteFile(path, []byte("<html><body><p>lateral movement over smb</p></body></html>"), 0o644))

	text, err := ReadFile(path, 0)
	require.NoError(t, err)
	assert.Equal(t, "lateral movement over smb", text)
}

func TestReadFile_Limit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("a", 100)), 0o644))

	text, err := ReadFile(path, 10)
	require.NoError(t, err)
	assert.Len(t, text, 10)
}

func TestReadFile_Errors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.txt"), 0)
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n "), 0o644))
	_, err = ReadFile(empty, 0)
	assert.True(t, errors.Is(err, ErrEmpty))
}

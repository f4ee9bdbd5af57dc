package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_GenericTerms(t *testing.T) {
	tbl := Default()
	assert.True(t, tbl.IsGeneric("UNIVERSITY"))
	assert.True(t, tbl.IsGeneric("INSTITUTE"))
	assert.True(t, tbl.IsGeneric("NATIONAL"))
	assert.False(t, tbl.IsGeneric("STANFORD"))
}

func TestDefault_GeographicTerms(t *testing.T) {
	tbl := Default()
	assert.True(t, tbl.IsGeographic("SHANDONG"))
	assert.True(t, tbl.IsGeographic("BEIJING"))
	assert.True(t, tbl.IsGeographic("PROVINCIAL"))
	assert.False(t, tbl.IsGeographic("PHYSICS"))
}

func TestDefault_JournalKeywords(t *testing.T) {
	tbl := Default()
	assert.True(t, tbl.IsJournalKeyword("JOURNAL"))
	assert.True(t, tbl.IsJournalKeyword("PROCEEDINGS"))
	assert.False(t, tbl.IsJournalKeyword("ACADEMY"))
}

func TestDefault_NoiseCombinesGenericAndGeographic(t *testing.T) {
	tbl := Default()
	assert.True(t, tbl.IsNoise("UNIVERSITY"))
	assert.True(t, tbl.IsNoise("SHANDONG"))
	assert.False(t, tbl.IsNoise("CALTECH"))
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	tbl, err := Load("")
	require.NoError(t, err)
	assert.True(t, tbl.IsGeneric("UNIVERSITY"))
}

func TestLoad_OverlayAddsAndRemoves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terms.yaml")
	overlay := `terms:
  generic:
    add: ["consortium"]
    remove: ["defense"]
  geographic:
    add: ["ruritania"]
  journal:
    add: ["digest"]
`
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0o644))

	tbl, err := Load(path)
	require.NoError(t, err)

	assert.True(t, tbl.IsGeneric("CONSORTIUM"))
	assert.False(t, tbl.IsGeneric("DEFENSE"))
	assert.True(t, tbl.IsGeographic("RURITANIA"))
	assert.True(t, tbl.IsJournalKeyword("DIGEST"))

	// Untouched defaults survive the overlay.
	assert.True(t, tbl.IsGeneric("UNIVERSITY"))
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/terms.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read overlay")
}

//go:build !integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainreactions/screener/internal/model"
)

func TestReadQueriesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	content := "National University of Defense Technology\n\n# watch this one\nCAEP\n   Beihang University   \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	queries, err := readQueriesFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"National University of Defense Technology",
		"CAEP",
		"Beihang University",
	}, queries)
}

func TestReadQueriesFile_Missing(t *testing.T) {
	_, err := readQueriesFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read queries file")
}

func TestFormatBatchResult(t *testing.T) {
	res := &model.BatchResult{
		Items: []model.BatchItem{
			{
				Query: "CAEP",
				Result: &model.MatchResult{
					Query: "CAEP",
					Matches: []model.ScoredMatch{
						{EntityID: "w-caep", Name: "China Academy of Engineering Physics", Confidence: 0.97},
					},
				},
			},
			{
				Query:  "Harmless Bakery",
				Result: &model.MatchResult{Query: "Harmless Bakery"},
			},
			{
				Query: "",
				Error: "match: invalid input: empty query",
			},
		},
		Succeeded: 2,
		Failed:    1,
		TookMS:    40,
	}

	var buf bytes.Buffer
	formatBatchResult(&buf, res)

	output := buf.String()
	assert.Contains(t, output, "QUERY")
	assert.Contains(t, output, "China Academy of Engineering Physics")
	assert.Contains(t, output, "0.970")
	assert.Contains(t, output, "empty query")
	assert.Contains(t, output, "2 succeeded, 1 failed (40ms)")
}

//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chainreactions/screener/internal/dataset"
)

func TestFormatImportStats(t *testing.T) {
	all := []*dataset.ImportStats{
		{
			Source:   "watchlist.csv",
			Read:     1200,
			Imported: 1180,
			Skipped:  20,
			Version:  4,
			Took:     820 * time.Millisecond,
		},
		{
			Source:   "https://example.org/entities.xlsx",
			Read:     300,
			Imported: 300,
			Version:  5,
			Took:     2400 * time.Millisecond,
		},
	}

	var buf bytes.Buffer
	formatImportStats(&buf, all)

	output := buf.String()
	assert.Contains(t, output, "SOURCE")
	assert.Contains(t, output, "watchlist.csv")
	assert.Contains(t, output, "1180")
	assert.Contains(t, output, "entities.xlsx")
	assert.Contains(t, output, "2.4s")
}

func TestFormatDatasetStatus(t *testing.T) {
	started := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	finished := started.Add(3 * time.Second)
	syncs := []dataset.SyncRecord{
		{
			Source:     "watchlist.csv",
			Status:     dataset.SyncComplete,
			Entities:   1180,
			Version:    4,
			StartedAt:  started,
			FinishedAt: &finished,
		},
		{
			Source:    "broken.xml",
			Status:    dataset.SyncFailed,
			StartedAt: started.Add(time.Hour),
			Error:     "xml: unexpected EOF",
		},
	}

	var buf bytes.Buffer
	formatDatasetStatus(&buf, "sqlite", 1180, 4, syncs)

	output := buf.String()
	assert.Contains(t, output, "Driver:")
	assert.Contains(t, output, "sqlite")
	assert.Contains(t, output, "Entities:")
	assert.Contains(t, output, "1180")
	assert.Contains(t, output, "Recent imports:")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "2026-03-10 09:30")
	assert.Contains(t, output, "3s")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "unexpected EOF")
}

func TestFormatDatasetStatus_NoImports(t *testing.T) {
	var buf bytes.Buffer
	formatDatasetStatus(&buf, "postgres", 0, 0, nil)

	output := buf.String()
	assert.Contains(t, output, "No imports recorded.")
	assert.NotContains(t, output, "Recent imports:")
}

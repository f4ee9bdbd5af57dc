package model

import (
	"strings"
	"time"
)

// ReferenceEntity is a single record from the curated watchlist dataset.
type ReferenceEntity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Aliases     []string  `json:"aliases,omitempty"`
	Country     string    `json:"country,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AliasList joins aliases with the list separator used by the upstream
// watchlist exports. Inverse of SplitAliases.
func (e *ReferenceEntity) AliasList() string {
	return strings.Join(e.Aliases, ";")
}

// SplitAliases parses a ";"-separated alias column into a clean slice,
// dropping empty segments and surrounding whitespace.
func SplitAliases(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	var aliases []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			aliases = append(aliases, p)
		}
	}
	return aliases
}

// DatasetInfo describes the reference dataset currently loaded by the engine.
type DatasetInfo struct {
	Version  int64     `json:"version"`
	Entities int       `json:"entities"`
	LoadedAt time.Time `json:"loaded_at"`
}

package model

import (
	"fmt"
	"strconv"
)

// Options are per-request matching knobs. Zero values fall back to the
// engine's configured defaults.
type Options struct {
	MinConfidence float64 `json:"min_confidence,omitempty"`
	MaxResults    int     `json:"max_results,omitempty"`
	ForceRefresh  bool    `json:"force_refresh,omitempty"`

	// AffiliatedBoost multiplies affiliated-match confidences to reflect
	// corroboration by the primary entity. 0 or 1 means no boost; values
	// above 1 are clamped so boosted confidence never exceeds 1.
	AffiliatedBoost float64 `json:"affiliated_boost,omitempty"`
}

// Canonical returns a deterministic string form of the options that affect
// the computed result, for use in cache keys. ForceRefresh changes how a
// result is obtained, not what it is, so it is excluded; AffiliatedBoost is
// applied to copies after cache retrieval, so it is excluded too.
func (o Options) Canonical() string {
	return fmt.Sprintf("mc=%s;mr=%d",
		strconv.FormatFloat(o.MinConfidence, 'f', -1, 64),
		o.MaxResults,
	)
}

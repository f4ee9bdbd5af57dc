package model

import "time"

// MatchType classifies which rule produced a candidate match.
type MatchType string

const (
	MatchExact        MatchType = "exact"
	MatchAliasExact   MatchType = "alias_exact"
	MatchCoreAcronym  MatchType = "core_acronym"
	MatchCore         MatchType = "core_match"
	MatchAliasPartial MatchType = "alias_partial"
	MatchPartial      MatchType = "partial"
	MatchWord         MatchType = "word_match"
	MatchFuzzy        MatchType = "fuzzy"
)

// matchTypePriority orders match types strongest-first for tie-breaking.
// Higher is stronger.
var matchTypePriority = map[MatchType]int{
	MatchExact:        8,
	MatchAliasExact:   7,
	MatchCoreAcronym:  6,
	MatchCore:         5,
	MatchAliasPartial: 4,
	MatchPartial:      3,
	MatchWord:         2,
	MatchFuzzy:        1,
}

// Priority returns the tie-break rank of the match type. Unknown types rank
// below every defined type.
func (t MatchType) Priority() int {
	return matchTypePriority[t]
}

// MatchedField identifies which side of a reference entity a hit came from.
const (
	FieldName    = "name"
	FieldAlias   = "alias"
	FieldAcronym = "acronym"
	FieldCore    = "core"
)

// MatchCandidate is a raw scorer hit before quality assessment. A single
// entity may produce several candidates from different scorers; they are
// merged during ranking.
type MatchCandidate struct {
	Entity       *ReferenceEntity
	MatchType    MatchType
	Score        float64 // raw scorer output in [0,1]
	MatchedText  string  // entity-side text that matched (name or alias)
	MatchedField string  // FieldName, FieldAlias, FieldAcronym, FieldCore
	Variant      string  // query-side variant that matched (full, paren_name, acronym, core, token)
}

// ScoredMatch is a candidate that passed quality assessment.
type ScoredMatch struct {
	EntityID     string             `json:"entity_id"`
	Name         string             `json:"name"`
	Country      string             `json:"country,omitempty"`
	Category     string             `json:"category,omitempty"`
	MatchType    MatchType          `json:"match_type"`
	Contributing []MatchType        `json:"contributing_types,omitempty"` // other rules that also hit this entity
	MatchedText  string             `json:"matched_text,omitempty"`
	MatchedField string             `json:"matched_field,omitempty"`
	Variant      string             `json:"matched_variant,omitempty"`
	Score        float64            `json:"score"`
	Confidence   float64            `json:"confidence"`
	Components   map[string]float64 `json:"components,omitempty"`

	IsGeneric        bool `json:"is_generic,omitempty"`
	IsGeographicOnly bool `json:"is_geographic_only,omitempty"`
	IsJournalName    bool `json:"is_journal_name,omitempty"`
}

// MatchResult is the ranked outcome for a single query.
type MatchResult struct {
	Query           string        `json:"query"`
	NormalizedQuery string        `json:"normalized_query"`
	Matches         []ScoredMatch `json:"matches"`
	DatasetVersion  int64         `json:"dataset_version"`
	FromCache       bool          `json:"from_cache"`
	TookMS          int64         `json:"took_ms"`
	Timestamp       time.Time     `json:"timestamp"`
}

// HasMatches reports whether any candidate survived ranking.
func (r *MatchResult) HasMatches() bool {
	return r != nil && len(r.Matches) > 0
}

// TopConfidence returns the confidence of the best match, or 0.
func (r *MatchResult) TopConfidence() float64 {
	if r == nil || len(r.Matches) == 0 {
		return 0
	}
	return r.Matches[0].Confidence
}

// BatchItem holds the per-query outcome of a batch match. Exactly one of
// Result and Error is set; a timed-out slot carries the timeout error.
type BatchItem struct {
	Query  string       `json:"query"`
	Result *MatchResult `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// BatchResult holds batch outcomes in input order.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	TookMS    int64       `json:"took_ms"`
}

// AffiliatedInput is one secondary organization associated with a primary
// query, matched independently.
type AffiliatedInput struct {
	CompanyName      string `json:"company_name"`
	RiskKeyword      string `json:"risk_keyword,omitempty"`
	RelationshipType string `json:"relationship_type,omitempty"`
}

// AffiliatedBreakdown is the per-affiliate outcome so callers can filter
// out non-matching affiliates entirely.
type AffiliatedBreakdown struct {
	CompanyName   string        `json:"company_name"`
	HasMatches    bool          `json:"has_matches"`
	MatchCount    int           `json:"match_count"`
	TopConfidence float64       `json:"top_confidence"`
	Matches       []ScoredMatch `json:"matches,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// MatchSummary aggregates an affiliated match call.
type MatchSummary struct {
	TotalAffiliated int     `json:"total_affiliated"`
	WithMatches     int     `json:"with_matches"`
	TotalMatches    int     `json:"total_matches"`
	TopConfidence   float64 `json:"top_confidence"`
}

// AffiliatedResult holds the primary match plus the per-affiliate breakdown.
type AffiliatedResult struct {
	DirectMatches     *MatchResult          `json:"direct_matches"`
	AffiliatedMatches []ScoredMatch         `json:"affiliated_matches,omitempty"`
	Breakdown         []AffiliatedBreakdown `json:"affiliated_breakdown"`
	Summary           MatchSummary          `json:"match_summary"`
	TookMS            int64                 `json:"took_ms"`
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchType_Priority(t *testing.T) {
	// Strongest to weakest; each type must outrank the next.
	ordered := []MatchType{
		MatchExact,
		MatchAliasExact,
		MatchCoreAcronym,
		MatchCore,
		MatchAliasPartial,
		MatchPartial,
		MatchWord,
		MatchFuzzy,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i-1].Priority(), ordered[i].Priority(),
			"%s should outrank %s", ordered[i-1], ordered[i])
	}
	assert.Equal(t, 0, MatchType("bogus").Priority())
	assert.Greater(t, MatchFuzzy.Priority(), MatchType("bogus").Priority())
}

func TestMatchResult_HasMatches(t *testing.T) {
	var nilResult *MatchResult
	assert.False(t, nilResult.HasMatches())
	assert.False(t, (&MatchResult{}).HasMatches())

	r := &MatchResult{Matches: []ScoredMatch{{EntityID: "E1", Confidence: 0.9}}}
	assert.True(t, r.HasMatches())
}

func TestMatchResult_TopConfidence(t *testing.T) {
	var nilResult *MatchResult
	assert.Zero(t, nilResult.TopConfidence())
	assert.Zero(t, (&MatchResult{}).TopConfidence())

	r := &MatchResult{Matches: []ScoredMatch{
		{EntityID: "E1", Confidence: 0.97},
		{EntityID: "E2", Confidence: 0.72},
	}}
	assert.Equal(t, 0.97, r.TopConfidence())
}

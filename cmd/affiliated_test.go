//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainreactions/screener/internal/model"
)

func TestFormatAffiliatedResult(t *testing.T) {
	res := &model.AffiliatedResult{
		DirectMatches: &model.MatchResult{Query: "Acme Trading Ltd"},
		Breakdown: []model.AffiliatedBreakdown{
			{
				CompanyName:   "China Electronics Technology Group",
				HasMatches:    true,
				MatchCount:    2,
				TopConfidence: 0.91,
			},
			{
				CompanyName: "Quiet Holdings",
			},
			{
				CompanyName: "",
				Error:       "match: invalid input: empty query",
			},
		},
		Summary: model.MatchSummary{
			TotalAffiliated: 3,
			WithMatches:     1,
			TotalMatches:    2,
			TopConfidence:   0.91,
		},
		TookMS: 25,
	}

	var buf bytes.Buffer
	formatAffiliatedResult(&buf, "Acme Trading Ltd", res)

	output := buf.String()
	assert.Contains(t, output, `Primary: "Acme Trading Ltd"`)
	assert.Contains(t, output, "No direct matches.")
	assert.Contains(t, output, "AFFILIATE")
	assert.Contains(t, output, "China Electronics Technology Group")
	assert.Contains(t, output, "0.910")
	assert.Contains(t, output, "empty query")
	assert.Contains(t, output, "1 of 3 affiliates matched, 2 watchlist hits total (25ms)")
}

func TestFormatAffiliatedResult_DirectHit(t *testing.T) {
	res := &model.AffiliatedResult{
		DirectMatches: &model.MatchResult{
			Query:           "CAEP",
			NormalizedQuery: "caep",
			DatasetVersion:  4,
			Matches: []model.ScoredMatch{
				{EntityID: "w-caep", Name: "China Academy of Engineering Physics", MatchType: model.MatchAliasExact, Confidence: 0.98},
			},
		},
		Breakdown: []model.AffiliatedBreakdown{
			{CompanyName: "Institute of Applied Physics", HasMatches: true, MatchCount: 1, TopConfidence: 0.88},
		},
		Summary: model.MatchSummary{TotalAffiliated: 1, WithMatches: 1, TotalMatches: 1, TopConfidence: 0.98},
	}

	var buf bytes.Buffer
	formatAffiliatedResult(&buf, "CAEP", res)

	output := buf.String()
	assert.Contains(t, output, "China Academy of Engineering Physics")
	assert.Contains(t, output, "alias_exact")
	assert.NotContains(t, output, "No direct matches.")
	assert.Contains(t, output, "Institute of Applied Physics")
}

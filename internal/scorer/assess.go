package scorer

import (
	"math"
	"strings"

	"github.com/chainreactions/screener/internal/index"
	"github.com/chainreactions/screener/internal/model"
	"github.com/chainreactions/screener/internal/normalize"
	"github.com/chainreactions/screener/internal/similarity"
)

// Component weight sets. Strong hits (alias_exact, core_acronym) skip
// the coverage and length components: matching a four-letter acronym
// against a forty-character name is the point, not a defect.
var (
	strongWeights = map[string]float64{
		"base":            0.55,
		"name_similarity": 0.25,
		"specificity":     0.20,
	}
	weakWeights = map[string]float64{
		"base":            0.45,
		"name_similarity": 0.20,
		"coverage":        0.15,
		"length_ratio":    0.05,
		"specificity":     0.15,
	}
)

// coverageFloor is the entity coverage above which a weak match is
// trusted even when every shared token is generic. A query carrying
// four fifths of an entity's name is specific regardless of the words.
const coverageFloor = 0.6

// Assess converts one raw candidate into a scored match with a final
// confidence, a component breakdown, and suppression flags.
func (s *Scorer) Assess(q *normalize.Query, c model.MatchCandidate, e *index.Entry) model.ScoredMatch {
	sm := model.ScoredMatch{
		EntityID:     c.Entity.ID,
		Name:         c.Entity.Name,
		Country:      c.Entity.Country,
		Category:     c.Entity.Category,
		MatchType:    c.MatchType,
		MatchedText:  c.MatchedText,
		MatchedField: c.MatchedField,
		Variant:      c.Variant,
		Score:        c.Score,
	}

	shared := similarity.SharedTokens(q.Tokens, e.Tokens)
	sharedSig := similarity.SharedTokens(q.SigTokens, e.SigTokens)
	sharedCore := similarity.SharedTokens(q.CoreTokens, e.CoreTokens)

	components := map[string]float64{
		"base":            c.Score,
		"name_similarity": similarityBlend(s.queryVariant(q, c), s.targetNorm(c, e)),
		"coverage":        tokenCoverage(shared, e.Tokens),
		"length_ratio":    lengthRatio(q.Compact, e.Compact),
		"specificity":     s.specificity(shared),
	}
	sm.Components = components

	if c.MatchType == model.MatchExact {
		// Exact equality is certainty; nothing downgrades it.
		sm.Confidence = 1.0
		return sm
	}

	weights := weakWeights
	if c.MatchType == model.MatchAliasExact || c.MatchType == model.MatchCoreAcronym {
		weights = strongWeights
	}

	var sum, weightSum float64
	for name, w := range weights {
		sum += w * components[name]
		weightSum += w
	}
	confidence := sum / weightSum

	if isWeak(c.MatchType) {
		confidence = s.applyPenalties(q, c, components, confidence, shared, sharedSig, sharedCore, &sm)
	}
	if boost, ok := s.locationAgreement(q, e); ok {
		components["location_boost"] = boost
		confidence += boost
	}

	sm.Confidence = round4(clamp01(confidence))
	return sm
}

func (s *Scorer) applyPenalties(q *normalize.Query, c model.MatchCandidate, components map[string]float64, confidence float64, shared, sharedSig, sharedCore []string, sm *model.ScoredMatch) float64 {
	coverage := components["coverage"]

	// A near-identical string is not a generic-overlap false positive,
	// whatever its tokens look like. Misspellings land here.
	highSimilarity := components["name_similarity"] >= s.params.FuzzyThreshold

	switch {
	case highSimilarity:
	case len(sharedSig) == 0 && coverage < coverageFloor:
		sm.IsGeneric = true
		components["generic_penalty"] = s.params.GenericPenalty
		confidence *= s.params.GenericPenalty
	case len(shared) > 0 && len(sharedCore) == 0 && s.anyGeographic(shared) && coverage < coverageFloor:
		sm.IsGeographicOnly = true
		components["geographic_penalty"] = s.params.GeographicPenalty
		confidence *= s.params.GeographicPenalty
	}

	for _, tok := range q.Tokens {
		if s.lex.IsJournalKeyword(tok) {
			sm.IsJournalName = true
			components["journal_penalty"] = s.params.JournalPenalty
			confidence *= s.params.JournalPenalty
			break
		}
	}
	return confidence
}

// locationAgreement reports whether the query's location hint shares a
// token with the entity's country or name. Disagreement is not
// penalized; absence of evidence is not evidence of mismatch.
func (s *Scorer) locationAgreement(q *normalize.Query, e *index.Entry) (float64, bool) {
	if q.Location == "" {
		return 0, false
	}
	locTokens := normalize.Tokens(q.Location)
	entityTokens := append([]string{}, e.Tokens...)
	if e.Entity.Country != "" {
		entityTokens = append(entityTokens, normalize.Tokens(strings.ToUpper(normalize.Fold(e.Entity.Country)))...)
	}
	if len(similarity.SharedTokens(locTokens, entityTokens)) == 0 {
		return 0, false
	}
	return s.params.LocationBoost, true
}

// specificity weighs how distinctive the shared tokens are: core tokens
// count fully, geographic tokens partially, generic terms barely. No
// shared tokens at all means the match came from an alias or acronym
// and is not penalized.
func (s *Scorer) specificity(shared []string) float64 {
	if len(shared) == 0 {
		return 1.0
	}
	var total float64
	for _, tok := range shared {
		switch {
		case s.lex.IsGeneric(tok):
			total += 0.2
		case s.lex.IsGeographic(tok):
			total += 0.4
		default:
			total += 1.0
		}
	}
	return total / float64(len(shared))
}

func (s *Scorer) anyGeographic(tokens []string) bool {
	for _, tok := range tokens {
		if s.lex.IsGeographic(tok) {
			return true
		}
	}
	return false
}

// queryVariant picks the query-side string the candidate actually
// matched with, so name_similarity compares like with like.
func (s *Scorer) queryVariant(q *normalize.Query, c model.MatchCandidate) string {
	switch c.Variant {
	case "paren_name":
		return q.ParenName
	case "paren_acronym", "paren_vs_initials":
		return q.ParenAcro
	case "initials_vs_initials", "initials_vs_alias":
		return q.Acronym
	default:
		return q.Norm
	}
}

// targetNorm resolves the entity-side string the candidate matched
// against.
func (s *Scorer) targetNorm(c model.MatchCandidate, e *index.Entry) string {
	switch c.MatchedField {
	case model.FieldAcronym:
		return e.Acronym
	case model.FieldCore:
		return e.Core
	case model.FieldAlias:
		for _, a := range e.Aliases {
			if a.Raw == c.MatchedText {
				return a.Norm
			}
		}
		return e.Norm
	default:
		return e.Norm
	}
}

func isWeak(mt model.MatchType) bool {
	switch mt {
	case model.MatchCore, model.MatchAliasPartial, model.MatchPartial, model.MatchWord, model.MatchFuzzy:
		return true
	}
	return false
}

func tokenCoverage(shared, entityTokens []string) float64 {
	if len(entityTokens) == 0 {
		return 0
	}
	return float64(len(shared)) / float64(len(entityTokens))
}

func lengthRatio(a, b string) float64 {
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

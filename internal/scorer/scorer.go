// Package scorer turns index candidates into confidence-ranked matches.
// Scoring runs a fixed, ordered list of passes over every candidate;
// passes accumulate raw match candidates, the assessor converts each
// into a confidence, and the ranker collapses them per entity.
package scorer

import (
	"strings"

	"github.com/chainreactions/screener/internal/index"
	"github.com/chainreactions/screener/internal/lexicon"
	"github.com/chainreactions/screener/internal/model"
	"github.com/chainreactions/screener/internal/normalize"
	"github.com/chainreactions/screener/internal/similarity"
)

// Params holds the tunable scoring knobs. Zero values are not usable;
// construct with DefaultParams and override from config.
type Params struct {
	// FuzzyThreshold gates the Jaro-Winkler/Levenshtein blend.
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
	// TrigramThreshold gates the trigram Dice alternative.
	TrigramThreshold float64 `mapstructure:"trigram_threshold"`
	// GenericPenalty multiplies confidence when a weak match shares only
	// generic terms with the entity.
	GenericPenalty float64 `mapstructure:"generic_penalty"`
	// GeographicPenalty multiplies confidence when the overlap is purely
	// geographic.
	GeographicPenalty float64 `mapstructure:"geographic_penalty"`
	// JournalPenalty multiplies confidence when the query looks like a
	// publication title rather than an organization.
	JournalPenalty float64 `mapstructure:"journal_penalty"`
	// LocationBoost is added when a location hint agrees with the
	// entity's country or geographic tokens.
	LocationBoost float64 `mapstructure:"location_boost"`
}

// DefaultParams returns the tuned defaults.
func DefaultParams() Params {
	return Params{
		FuzzyThreshold:    0.85,
		TrigramThreshold:  0.75,
		GenericPenalty:    0.3,
		GeographicPenalty: 0.3,
		JournalPenalty:    0.5,
		LocationBoost:     0.05,
	}
}

// Scorer scores query/candidate pairs. Safe for concurrent use; all
// state is read-only after construction.
type Scorer struct {
	lex    *lexicon.Table
	params Params
}

// New creates a Scorer over the given term table and parameters.
func New(lex *lexicon.Table, params Params) *Scorer {
	return &Scorer{lex: lex, params: params}
}

// pass is one scoring strategy. Every pass runs for every candidate;
// a pass that does not apply returns nil.
type pass func(s *Scorer, q *normalize.Query, e *index.Entry) []model.MatchCandidate

// passes is the fixed evaluation order, strongest signal first. The
// order carries no early-exit semantics; it only fixes accumulation
// order so results are reproducible.
var passes = []pass{
	(*Scorer).exactPass,
	(*Scorer).aliasExactPass,
	(*Scorer).acronymPass,
	(*Scorer).corePass,
	(*Scorer).aliasPartialPass,
	(*Scorer).partialPass,
	(*Scorer).wordPass,
	(*Scorer).fuzzyPass,
}

// Score runs every pass over every candidate and returns the
// accumulated raw candidates in pass order.
func (s *Scorer) Score(q *normalize.Query, entries []*index.Entry) []model.MatchCandidate {
	if q.Empty() {
		return nil
	}
	var out []model.MatchCandidate
	for _, p := range passes {
		for _, e := range entries {
			out = append(out, p(s, q, e)...)
		}
	}
	return out
}

// Match is the full pipeline: score, assess, rank.
func (s *Scorer) Match(q *normalize.Query, entries []*index.Entry, minConfidence float64, maxResults int) []model.ScoredMatch {
	raw := s.Score(q, entries)
	if len(raw) == 0 {
		return nil
	}
	byID := make(map[string]*index.Entry, len(entries))
	for _, e := range entries {
		byID[e.Entity.ID] = e
	}
	return s.Rank(q, raw, byID, minConfidence, maxResults)
}

func (s *Scorer) exactPass(q *normalize.Query, e *index.Entry) []model.MatchCandidate {
	var out []model.MatchCandidate
	if q.Norm == e.Norm {
		out = append(out, candidate(e, model.MatchExact, 1.0, e.Norm, model.FieldName, "norm"))
	} else if q.ParenName != "" && q.ParenName == e.Norm {
		out = append(out, candidate(e, model.MatchExact, 1.0, e.Norm, model.FieldName, "paren_name"))
	}
	return out
}

func (s *Scorer) aliasExactPass(q *normalize.Query, e *index.Entry) []model.MatchCandidate {
	var out []model.MatchCandidate
	for _, a := range e.Aliases {
		switch {
		case q.Norm == a.Norm:
			out = append(out, candidate(e, model.MatchAliasExact, 1.0, a.Raw, model.FieldAlias, "norm"))
		case q.ParenName != "" && q.ParenName == a.Norm:
			out = append(out, candidate(e, model.MatchAliasExact, 1.0, a.Raw, model.FieldAlias, "paren_name"))
		case q.ParenAcro != "" && q.ParenAcro == a.Norm:
			out = append(out, candidate(e, model.MatchAliasExact, 0.98, a.Raw, model.FieldAlias, "paren_acronym"))
		}
	}
	return out
}

// acronymPass matches query initials against entity initials and listed
// acronym aliases. Initials shorter than three characters are too
// ambiguous to score unless they are a listed alias, which the alias
// pass already covers.
func (s *Scorer) acronymPass(q *normalize.Query, e *index.Entry) []model.MatchCandidate {
	var out []model.MatchCandidate
	if e.Acronym != "" && len(e.Acronym) >= 3 {
		switch {
		case q.Norm == e.Acronym:
			out = append(out, candidate(e, model.MatchCoreAcronym, 0.95, e.Acronym, model.FieldAcronym, "query_vs_initials"))
		case q.ParenAcro != "" && q.ParenAcro == e.Acronym:
			out = append(out, candidate(e, model.MatchCoreAcronym, 0.95, e.Acronym, model.FieldAcronym, "paren_vs_initials"))
		case q.Acronym != "" && len(q.Acronym) >= 3 && q.Acronym == e.Acronym:
			out = append(out, candidate(e, model.MatchCoreAcronym, 0.85, e.Acronym, model.FieldAcronym, "initials_vs_initials"))
		}
	}
	if q.Acronym != "" && len(q.Acronym) >= 3 {
		for _, a := range e.Aliases {
			if q.Acronym == a.Norm {
				out = append(out, candidate(e, model.MatchCoreAcronym, 0.9, a.Raw, model.FieldAlias, "initials_vs_alias"))
			}
		}
	}
	return out
}

func (s *Scorer) corePass(q *normalize.Query, e *index.Entry) []model.MatchCandidate {
	if q.Core == "" || e.Core == "" || q.Core != e.Core || q.Norm == e.Norm {
		return nil
	}
	return []model.MatchCandidate{candidate(e, model.MatchCore, 0.9, e.Core, model.FieldCore, "core")}
}

func (s *Scorer) aliasPartialPass(q *normalize.Query, e *index.Entry) []model.MatchCandidate {
	var out []model.MatchCandidate
	for _, a := range e.Aliases {
		if a.Norm == q.Norm {
			continue
		}
		aTokens := normalize.Tokens(a.Norm)
		if score, ok := s.containmentScore(q, q.Tokens, aTokens, q.Compact, a.Compact, 0.55, 0.3); ok {
			out = append(out, candidate(e, model.MatchAliasPartial, score, a.Raw, model.FieldAlias, "token_containment"))
			continue
		}
		if score, ok := substringScore(q.Compact, a.Compact, 0.5, 0.3); ok {
			out = append(out, candidate(e, model.MatchAliasPartial, score, a.Raw, model.FieldAlias, "substring"))
		}
	}
	return out
}

func (s *Scorer) partialPass(q *normalize.Query, e *index.Entry) []model.MatchCandidate {
	if q.Norm == e.Norm {
		return nil
	}
	if score, ok := s.containmentScore(q, q.Tokens, e.Tokens, q.Compact, e.Compact, 0.5, 0.35); ok {
		return []model.MatchCandidate{candidate(e, model.MatchPartial, score, e.Norm, model.FieldName, "token_containment")}
	}
	if score, ok := substringScore(q.Compact, e.Compact, 0.5, 0.3); ok {
		return []model.MatchCandidate{candidate(e, model.MatchPartial, score, e.Norm, model.FieldName, "substring")}
	}
	return nil
}

func (s *Scorer) wordPass(q *normalize.Query, e *index.Entry) []model.MatchCandidate {
	if len(q.SigTokens) == 0 || len(e.SigTokens) == 0 {
		return nil
	}
	shared := similarity.SharedTokens(q.SigTokens, e.SigTokens)
	if len(shared) == 0 {
		return nil
	}
	jac := similarity.TokenJaccard(q.SigTokens, e.SigTokens)
	if jac < 1.0/3 {
		return nil
	}
	score := 0.4 + 0.4*jac
	return []model.MatchCandidate{candidate(e, model.MatchWord, score, strings.Join(shared, " "), model.FieldName, "token_overlap")}
}

// fuzzyPass emits at most one candidate per entity: the best-scoring
// similarity hit across the name, aliases, and core form.
func (s *Scorer) fuzzyPass(q *normalize.Query, e *index.Entry) []model.MatchCandidate {
	type target struct {
		norm    string
		compact string
		text    string
		field   string
	}
	targets := []target{{e.Norm, e.Compact, e.Norm, model.FieldName}}
	for _, a := range e.Aliases {
		targets = append(targets, target{a.Norm, a.Compact, a.Raw, model.FieldAlias})
	}
	if e.Core != "" && e.Core != e.Norm {
		targets = append(targets, target{e.Core, strings.ReplaceAll(e.Core, " ", ""), e.Core, model.FieldCore})
	}

	best := model.MatchCandidate{}
	for _, t := range targets {
		if t.norm == q.Norm {
			continue
		}
		blend := similarityBlend(q.Norm, t.norm)
		dice := similarity.TrigramDice(q.Compact, t.compact)
		if blend < s.params.FuzzyThreshold && dice < s.params.TrigramThreshold {
			continue
		}
		score, variant := blend, "blend"
		if dice > score {
			score, variant = dice, "trigram"
		}
		if score > best.Score {
			best = candidate(e, model.MatchFuzzy, score, t.text, t.field, variant)
		}
	}
	if best.Score == 0 {
		return nil
	}
	return []model.MatchCandidate{best}
}

// containmentScore checks whether the shorter token set is fully
// contained in the longer one. Requires a significant shared token, or
// two shared tokens of any kind, so a lone generic word does not count
// as containment.
func (s *Scorer) containmentScore(q *normalize.Query, qTokens, eTokens []string, qCompact, eCompact string, base, span float64) (float64, bool) {
	if len(qTokens) == 0 || len(eTokens) == 0 {
		return 0, false
	}
	shared := similarity.SharedTokens(qTokens, eTokens)
	shorter, longer := len(qTokens), len(eTokens)
	if shorter > longer {
		shorter, longer = longer, shorter
	}
	if len(shared) < shorter || shorter == longer {
		return 0, false
	}
	sigShared := 0
	for _, tok := range shared {
		if !s.lex.IsGeneric(tok) {
			sigShared++
		}
	}
	if sigShared == 0 && len(shared) < 2 {
		return 0, false
	}
	coverage := float64(len(shared)) / float64(longer)
	return base + span*coverage, true
}

// substringScore checks compact substring containment in either
// direction. Four characters is the floor; shorter fragments match too
// much to mean anything.
func substringScore(a, b string, base, span float64) (float64, bool) {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < 4 || len(shorter) == len(longer) {
		return 0, false
	}
	if !strings.Contains(longer, shorter) {
		return 0, false
	}
	ratio := float64(len(shorter)) / float64(len(longer))
	return base + span*ratio, true
}

// similarityBlend combines Jaro-Winkler and Levenshtein similarity.
// Jaro-Winkler dominates because organization names diverge most at
// their tails.
func similarityBlend(a, b string) float64 {
	return 0.6*similarity.JaroWinkler(a, b) + 0.4*similarity.LevenshteinSimilarity(a, b)
}

func candidate(e *index.Entry, mt model.MatchType, score float64, text, field, variant string) model.MatchCandidate {
	return model.MatchCandidate{
		Entity:       e.Entity,
		MatchType:    mt,
		Score:        score,
		MatchedText:  text,
		MatchedField: field,
		Variant:      variant,
	}
}

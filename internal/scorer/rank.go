package scorer

import (
	"sort"

	"github.com/chainreactions/screener/internal/index"
	"github.com/chainreactions/screener/internal/model"
	"github.com/chainreactions/screener/internal/normalize"
)

// Rank assesses raw candidates, collapses them to one scored match per
// entity, filters on minConfidence, and orders the survivors. The kept
// match is the candidate with the highest confidence; its Contributing
// list records every match type that fired for the entity, strongest
// first.
func (s *Scorer) Rank(q *normalize.Query, raw []model.MatchCandidate, byID map[string]*index.Entry, minConfidence float64, maxResults int) []model.ScoredMatch {
	best := make(map[string]model.ScoredMatch)
	contributed := make(map[string]map[model.MatchType]bool)

	for _, c := range raw {
		e := byID[c.Entity.ID]
		if e == nil {
			continue
		}
		sm := s.Assess(q, c, e)

		types := contributed[sm.EntityID]
		if types == nil {
			types = make(map[model.MatchType]bool)
			contributed[sm.EntityID] = types
		}
		types[sm.MatchType] = true

		cur, ok := best[sm.EntityID]
		if !ok || betterThan(sm, cur) {
			best[sm.EntityID] = sm
		}
	}

	out := make([]model.ScoredMatch, 0, len(best))
	for id, sm := range best {
		if sm.Confidence < minConfidence {
			continue
		}
		sm.Contributing = sortedTypes(contributed[id])
		out = append(out, sm)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		if pi, pj := out[i].MatchType.Priority(), out[j].MatchType.Priority(); pi != pj {
			return pi > pj
		}
		return out[i].EntityID < out[j].EntityID
	})

	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}

func betterThan(a, b model.ScoredMatch) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.MatchType.Priority() > b.MatchType.Priority()
}

func sortedTypes(set map[model.MatchType]bool) []model.MatchType {
	types := make([]model.MatchType, 0, len(set))
	for mt := range set {
		types = append(types, mt)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].Priority() > types[j].Priority()
	})
	return types
}

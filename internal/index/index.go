// Package index holds the in-memory lookup structures built over one
// dataset snapshot. An Index is immutable after Build; the engine swaps
// whole indexes when the dataset version changes.
package index

import (
	"sort"
	"strings"

	"github.com/chainreactions/screener/internal/model"
	"github.com/chainreactions/screener/internal/normalize"
	"github.com/chainreactions/screener/internal/similarity"
)

// maxTokenPostings bounds how many entries one token tier contributes per
// query token. Lists are id-ordered, so the cut is deterministic.
const maxTokenPostings = 256

// Alias is one normalized alias variant of an entity.
type Alias struct {
	Raw     string
	Norm    string
	Compact string
}

// Entry is an indexed entity with every precomputed variant the scoring
// passes compare against.
type Entry struct {
	Entity *model.ReferenceEntity

	Norm       string
	Compact    string
	Core       string
	Acronym    string
	Tokens     []string
	SigTokens  []string
	CoreTokens []string
	Aliases    []Alias
}

// Index is the immutable candidate index for one dataset version.
type Index struct {
	version int64
	entries []*Entry
	byID    map[string]*Entry

	exact   map[string][]*Entry // normalized name
	alias   map[string][]*Entry // normalized alias
	acronym map[string][]*Entry // derived name initials
	compact map[string][]*Entry // space-free name and alias forms
	core    map[string][]*Entry // generic/geographic-stripped name
	token   map[string][]*Entry // significant token postings
	trigram map[string][]*Entry // compact-name trigram postings
}

// Build indexes the given entities. Entities are ordered by id first so
// every posting list, and therefore candidate gathering, is
// deterministic.
func Build(entities []*model.ReferenceEntity, n *normalize.Normalizer, version int64) *Index {
	sorted := make([]*model.ReferenceEntity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	ix := &Index{
		version: version,
		entries: make([]*Entry, 0, len(sorted)),
		byID:    make(map[string]*Entry, len(sorted)),
		exact:   make(map[string][]*Entry),
		alias:   make(map[string][]*Entry),
		acronym: make(map[string][]*Entry),
		compact: make(map[string][]*Entry),
		core:    make(map[string][]*Entry),
		token:   make(map[string][]*Entry),
		trigram: make(map[string][]*Entry),
	}

	for _, ent := range sorted {
		norm := n.Name(ent.Name)
		if norm == "" {
			continue
		}
		tokens := normalize.Tokens(norm)
		e := &Entry{
			Entity:     ent,
			Norm:       norm,
			Compact:    strings.ReplaceAll(norm, " ", ""),
			Core:       n.Core(norm),
			Acronym:    normalize.Acronym(tokens),
			Tokens:     tokens,
			SigTokens:  n.SigTokens(norm),
			CoreTokens: normalize.Tokens(n.Core(norm)),
		}

		for _, raw := range ent.Aliases {
			an := n.Name(raw)
			if an == "" || an == e.Norm {
				continue
			}
			e.Aliases = append(e.Aliases, Alias{
				Raw:     raw,
				Norm:    an,
				Compact: strings.ReplaceAll(an, " ", ""),
			})
		}

		ix.entries = append(ix.entries, e)
		ix.byID[ent.ID] = e

		ix.exact[e.Norm] = append(ix.exact[e.Norm], e)
		ix.compact[e.Compact] = append(ix.compact[e.Compact], e)
		if e.Core != "" && e.Core != e.Norm {
			ix.core[e.Core] = append(ix.core[e.Core], e)
		}
		if e.Acronym != "" {
			ix.acronym[e.Acronym] = append(ix.acronym[e.Acronym], e)
		}
		for _, a := range e.Aliases {
			ix.alias[a.Norm] = append(ix.alias[a.Norm], e)
			ix.compact[a.Compact] = append(ix.compact[a.Compact], e)
		}
		for _, tok := range dedupe(e.SigTokens) {
			ix.token[tok] = append(ix.token[tok], e)
		}
		for g := range similarity.Trigrams(e.Compact) {
			ix.trigram[g] = append(ix.trigram[g], e)
		}
	}

	return ix
}

// Version returns the dataset version the index was built from.
func (ix *Index) Version() int64 { return ix.version }

// Size returns the number of indexed entities.
func (ix *Index) Size() int { return len(ix.entries) }

// Entries returns all indexed entries in id order.
func (ix *Index) Entries() []*Entry { return ix.entries }

// ByID returns the entry for an entity id, or nil.
func (ix *Index) ByID(id string) *Entry { return ix.byID[id] }

// LookupExact returns entries whose normalized name equals norm.
func (ix *Index) LookupExact(norm string) []*Entry { return ix.exact[norm] }

// LookupAlias returns entries with a normalized alias equal to norm.
func (ix *Index) LookupAlias(norm string) []*Entry { return ix.alias[norm] }

// LookupAcronym returns entries whose derived name initials equal a.
func (ix *Index) LookupAcronym(a string) []*Entry { return ix.acronym[a] }

// LookupCompact returns entries whose space-free name or alias equals c.
func (ix *Index) LookupCompact(c string) []*Entry { return ix.compact[c] }

// Candidates gathers up to limit entries worth scoring against q. Tiers
// run from strongest signal to weakest; within a tier entries arrive in
// id order, so output order is deterministic for a given index and
// query.
func (ix *Index) Candidates(q *normalize.Query, limit int) []*Entry {
	if q.Empty() || limit <= 0 {
		return nil
	}

	seen := make(map[string]bool)
	var out []*Entry
	add := func(entries []*Entry) {
		for _, e := range entries {
			if len(out) >= limit {
				return
			}
			if seen[e.Entity.ID] {
				continue
			}
			seen[e.Entity.ID] = true
			out = append(out, e)
		}
	}

	// Direct name and alias hits.
	add(ix.exact[q.Norm])
	add(ix.alias[q.Norm])
	if q.ParenName != "" {
		add(ix.exact[q.ParenName])
		add(ix.alias[q.ParenName])
	}
	if q.ParenAcro != "" {
		add(ix.alias[q.ParenAcro])
		add(ix.acronym[q.ParenAcro])
	}

	// Acronym and compact forms: a short query may be an entity's
	// initials, a long query's initials may be an indexed alias.
	add(ix.acronym[q.Norm])
	add(ix.compact[q.Compact])
	if q.Acronym != "" {
		add(ix.alias[q.Acronym])
	}

	// Core form, then token postings.
	if q.Core != "" {
		add(ix.core[q.Core])
		add(ix.exact[q.Core])
	}
	for _, tok := range dedupe(q.SigTokens) {
		postings := ix.token[tok]
		if len(postings) > maxTokenPostings {
			postings = postings[:maxTokenPostings]
		}
		add(postings)
	}

	// Trigram tier catches misspellings and partial forms the exact
	// tiers miss. Entries rank by trigram Jaccard, ties by id.
	if len(out) < limit {
		add(ix.trigramCandidates(q.Compact, limit-len(out), seen))
	}

	return out
}

func (ix *Index) trigramCandidates(compact string, limit int, seen map[string]bool) []*Entry {
	if compact == "" || limit <= 0 {
		return nil
	}

	counts := make(map[*Entry]int)
	for g := range similarity.Trigrams(compact) {
		for _, e := range ix.trigram[g] {
			if seen[e.Entity.ID] {
				continue
			}
			counts[e]++
		}
	}
	if len(counts) == 0 {
		return nil
	}

	// Require at least two shared grams so one coincidental gram does
	// not drag in the whole dataset. Rank by trigram Jaccard rather
	// than raw shared count, which favors long names just for having
	// more grams.
	ranked := make([]*Entry, 0, len(counts))
	score := make(map[*Entry]float64, len(counts))
	for e, c := range counts {
		if c < 2 {
			continue
		}
		ranked = append(ranked, e)
		score[e] = similarity.TrigramJaccard(compact, e.Compact)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if score[ranked[i]] != score[ranked[j]] {
			return score[ranked[i]] > score[ranked[j]]
		}
		return ranked[i].Entity.ID < ranked[j].Entity.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Stats describes index composition for the monitoring surface.
type Stats struct {
	Entities int `json:"entities"`
	Aliases  int `json:"aliases"`
	Acronyms int `json:"acronyms"`
	Tokens   int `json:"tokens"`
	Trigrams int `json:"trigrams"`
}

// Stats returns the index composition counts.
func (ix *Index) Stats() Stats {
	aliases := 0
	for _, e := range ix.entries {
		aliases += len(e.Aliases)
	}
	return Stats{
		Entities: len(ix.entries),
		Aliases:  aliases,
		Acronyms: len(ix.acronym),
		Tokens:   len(ix.token),
		Trigrams: len(ix.trigram),
	}
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	var out []string
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

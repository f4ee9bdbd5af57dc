package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainreactions/screener/internal/lexicon"
	"github.com/chainreactions/screener/internal/model"
	"github.com/chainreactions/screener/internal/normalize"
)

func testEntities() []*model.ReferenceEntity {
	return []*model.ReferenceEntity{
		{ID: "E1", Name: "National University of Defense Technology", Aliases: []string{"NUDT", "国防科技大学"}, Country: "China"},
		{ID: "E2", Name: "Chinese Academy of Engineering Physics", Aliases: []string{"CAEP", "Ninth Academy"}, Country: "China"},
		{ID: "E3", Name: "Stanford University", Country: "United States"},
		{ID: "E4", Name: "Harbin Institute of Technology", Aliases: []string{"HIT"}, Country: "China"},
		{ID: "E5", Name: "Shandong University of Technology", Country: "China"},
	}
}

func buildTestIndex(t *testing.T) (*Index, *normalize.Normalizer) {
	t.Helper()
	n := normalize.New(lexicon.Default())
	return Build(testEntities(), n, 7), n
}

func TestBuild_Variants(t *testing.T) {
	ix, _ := buildTestIndex(t)

	require.Equal(t, 5, ix.Size())
	assert.Equal(t, int64(7), ix.Version())

	e1 := ix.ByID("E1")
	require.NotNil(t, e1)
	assert.Equal(t, "NATIONAL UNIVERSITY OF DEFENSE TECHNOLOGY", e1.Norm)
	assert.Equal(t, "NUDT", e1.Acronym)
	require.Len(t, e1.Aliases, 2)
	assert.Equal(t, "NUDT", e1.Aliases[0].Norm)

	e3 := ix.ByID("E3")
	require.NotNil(t, e3)
	assert.Equal(t, "STANFORD", e3.Core)
	assert.Equal(t, []string{"STANFORD"}, e3.SigTokens)
}

func TestBuild_SortsById(t *testing.T) {
	n := normalize.New(lexicon.Default())
	ents := testEntities()
	// Reverse input order; index order must not change.
	for i, j := 0, len(ents)-1; i < j; i, j = i+1, j-1 {
		ents[i], ents[j] = ents[j], ents[i]
	}

	ix := Build(ents, n, 1)
	ids := make([]string, 0, ix.Size())
	for _, e := range ix.Entries() {
		ids = append(ids, e.Entity.ID)
	}
	assert.Equal(t, []string{"E1", "E2", "E3", "E4", "E5"}, ids)
}

func TestLookups(t *testing.T) {
	ix, _ := buildTestIndex(t)

	exact := ix.LookupExact("STANFORD UNIVERSITY")
	require.Len(t, exact, 1)
	assert.Equal(t, "E3", exact[0].Entity.ID)

	alias := ix.LookupAlias("NUDT")
	require.Len(t, alias, 1)
	assert.Equal(t, "E1", alias[0].Entity.ID)

	acro := ix.LookupAcronym("CAEP")
	require.Len(t, acro, 1)
	assert.Equal(t, "E2", acro[0].Entity.ID)

	compact := ix.LookupCompact("STANFORDUNIVERSITY")
	require.Len(t, compact, 1)
	assert.Equal(t, "E3", compact[0].Entity.ID)

	assert.Empty(t, ix.LookupExact("NO SUCH ENTITY"))
}

func TestCandidates_ExactFirst(t *testing.T) {
	ix, n := buildTestIndex(t)

	q := n.Query("Chinese Academy of Engineering Physics", "")
	cands := ix.Candidates(q, 50)
	require.NotEmpty(t, cands)
	assert.Equal(t, "E2", cands[0].Entity.ID)
}

func TestCandidates_AliasQuery(t *testing.T) {
	ix, n := buildTestIndex(t)

	cands := ix.Candidates(n.Query("CAEP", ""), 50)
	require.NotEmpty(t, cands)
	assert.Equal(t, "E2", cands[0].Entity.ID)
}

func TestCandidates_ParentheticalAcronym(t *testing.T) {
	ix, n := buildTestIndex(t)

	q := n.Query("National University of Defense Technology (NUDT)", "")
	cands := ix.Candidates(q, 50)
	require.NotEmpty(t, cands)
	assert.Equal(t, "E1", cands[0].Entity.ID)
}

func TestCandidates_TrigramCatchesMisspelling(t *testing.T) {
	ix, n := buildTestIndex(t)

	cands := ix.Candidates(n.Query("Stanfrod University", ""), 50)
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.Entity.ID)
	}
	assert.Contains(t, ids, "E3")
}

func TestCandidates_TokenTier(t *testing.T) {
	ix, n := buildTestIndex(t)

	// HARBIN is a significant token shared with E4 only.
	cands := ix.Candidates(n.Query("Harbin Physics Laboratory", ""), 50)
	ids := make([]string, 0, len(cands))
	for _, c := range cands {
		ids = append(ids, c.Entity.ID)
	}
	assert.Contains(t, ids, "E4")
}

func TestCandidates_LimitAndEmpty(t *testing.T) {
	ix, n := buildTestIndex(t)

	cands := ix.Candidates(n.Query("University of Technology", ""), 1)
	assert.LessOrEqual(t, len(cands), 1)

	assert.Nil(t, ix.Candidates(n.Query("", ""), 50))
	assert.Nil(t, ix.Candidates(n.Query("Stanford", ""), 0))
}

func TestCandidates_NoDuplicates(t *testing.T) {
	ix, n := buildTestIndex(t)

	// E1 is reachable through exact, alias, acronym, and compact tiers;
	// it must still appear once.
	q := n.Query("National University of Defense Technology (NUDT)", "")
	cands := ix.Candidates(q, 50)
	seen := make(map[string]int)
	for _, c := range cands {
		seen[c.Entity.ID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "entity %s gathered more than once", id)
	}
}

func TestStats(t *testing.T) {
	ix, _ := buildTestIndex(t)

	stats := ix.Stats()
	assert.Equal(t, 5, stats.Entities)
	assert.Equal(t, 5, stats.Aliases)
	assert.Positive(t, stats.Acronyms)
	assert.Positive(t, stats.Trigrams)
}

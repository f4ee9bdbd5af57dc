package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chainreactions/screener/internal/lexicon"
)

func newTestNormalizer() *Normalizer {
	return New(lexicon.Default())
}

func TestQuery_Norm(t *testing.T) {
	n := newTestNormalizer()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase folds up", "stanford university", "STANFORD UNIVERSITY"},
		{"whitespace collapses", "  Stanford   University  ", "STANFORD UNIVERSITY"},
		{"punctuation drops", "Harbin Eng. University", "HARBIN ENG UNIVERSITY"},
		{"ampersand expands", "Smith & Wesson", "SMITH AND WESSON"},
		{"hyphen splits", "Sino-Electronics", "SINO ELECTRONICS"},
		{"legal suffix strips", "Huawei Technologies Co., Ltd.", "HUAWEI TECHNOLOGIES"},
		{"gmbh strips", "Siemens GmbH", "SIEMENS"},
		{"diacritics fold", "Universidad Autónoma", "UNIVERSIDAD AUTONOMA"},
		{"fullwidth folds", "ＮＵＤＴ", "NUDT"},
		{"parens fold to space", "National University of Defense Technology (NUDT)", "NATIONAL UNIVERSITY OF DEFENSE TECHNOLOGY NUDT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Query(tc.in, "").Norm)
		})
	}
}

func TestQuery_Empty(t *testing.T) {
	n := newTestNormalizer()

	assert.True(t, n.Query("", "").Empty())
	assert.True(t, n.Query("   \t\n ", "").Empty())
	assert.False(t, n.Query("x", "").Empty())
}

func TestQuery_ParentheticalSplit(t *testing.T) {
	n := newTestNormalizer()

	q := n.Query("National University of Defense Technology (NUDT)", "")
	assert.Equal(t, "NATIONAL UNIVERSITY OF DEFENSE TECHNOLOGY", q.ParenName)
	assert.Equal(t, "NUDT", q.ParenAcro)

	q = n.Query("Chinese Academy of Engineering Physics (CAEP)", "")
	assert.Equal(t, "CHINESE ACADEMY OF ENGINEERING PHYSICS", q.ParenName)
	assert.Equal(t, "CAEP", q.ParenAcro)

	// No trailing parenthetical: both halves stay empty.
	q = n.Query("Stanford University", "")
	assert.Empty(t, q.ParenName)
	assert.Empty(t, q.ParenAcro)

	// Mid-string parenthetical is not a trailing split.
	q = n.Query("ABC (Holdings) Trading", "")
	assert.Empty(t, q.ParenName)
	assert.Equal(t, "ABC HOLDINGS TRADING", q.Norm)
}

func TestQuery_TokenClasses(t *testing.T) {
	n := newTestNormalizer()

	q := n.Query("Stanford University", "")
	assert.Equal(t, []string{"STANFORD", "UNIVERSITY"}, q.Tokens)
	assert.Equal(t, []string{"STANFORD"}, q.SigTokens)
	assert.Equal(t, []string{"STANFORD"}, q.CoreTokens)
	assert.Equal(t, "STANFORD", q.Core)

	// Every token generic: nothing significant survives.
	q = n.Query("National University of Defense Technology", "")
	assert.Empty(t, q.SigTokens)
	assert.Empty(t, q.Core)

	// Geographic tokens survive SigTokens but not CoreTokens.
	q = n.Query("Shandong Institute of Physics", "")
	assert.Equal(t, []string{"SHANDONG", "PHYSICS"}, q.SigTokens)
	assert.Equal(t, []string{"PHYSICS"}, q.CoreTokens)
}

func TestQuery_Acronym(t *testing.T) {
	n := newTestNormalizer()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"function words skipped", "National University of Defense Technology", "NUDT"},
		{"plain initials", "Chinese Academy of Engineering Physics", "CAEP"},
		{"two words", "Stanford University", "SU"},
		{"single word has none", "Stanford", ""},
		{"only stopwords has none", "The Of", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Query(tc.in, "").Acronym)
		})
	}
}

func TestQuery_Compact(t *testing.T) {
	n := newTestNormalizer()

	assert.Equal(t, "STANFORDUNIVERSITY", n.Query("Stanford University", "").Compact)
	assert.Equal(t, "SINOELECTRONICS", n.Query("Sino-Electronics", "").Compact)
}

func TestQuery_Location(t *testing.T) {
	n := newTestNormalizer()

	q := n.Query("Institute of Physics", "Mianyang, Sichuan")
	assert.Equal(t, "MIANYANG SICHUAN", q.Location)

	q = n.Query("Institute of Physics", "  ")
	assert.Empty(t, q.Location)
}

func TestName_Idempotent(t *testing.T) {
	n := newTestNormalizer()

	inputs := []string{
		"Huawei Technologies Co., Ltd.",
		"Universidad Autónoma",
		"National University of Defense Technology (NUDT)",
		"Sino-Electronics / Trading",
	}

	for _, in := range inputs {
		once := n.Name(in)
		assert.Equal(t, once, n.Name(once), "normalizing twice must equal normalizing once: %q", in)
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "Universite", Fold("Université"))
	assert.Equal(t, "NUDT", Fold("ＮＵＤＴ"))
	assert.Equal(t, "plain", Fold("plain"))
}

func TestAcronym_Direct(t *testing.T) {
	assert.Equal(t, "NUDT", Acronym([]string{"NATIONAL", "UNIVERSITY", "OF", "DEFENSE", "TECHNOLOGY"}))
	assert.Equal(t, "", Acronym([]string{"STANFORD"}))
	assert.Equal(t, "", Acronym(nil))
}

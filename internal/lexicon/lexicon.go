// Package lexicon holds the term tables (generic organizational terms,
// geographic names, academic-journal keywords) shared by the normalizer,
// scorers, and quality assessor. Tables are built once at startup and are
// immutable afterwards.
package lexicon

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Table is an immutable set of term classifications. All lookups expect
// normalized (uppercase) tokens.
type Table struct {
	generic    map[string]bool
	geographic map[string]bool
	journal    map[string]bool
}

// genericTerms are organizational words that carry no identity on their own.
// A match driven purely by these is noise ("University" matches every
// university on the list).
var genericTerms = []string{
	"UNIVERSITY", "INSTITUTE", "INSTITUTES", "ACADEMY", "COLLEGE", "SCHOOL",
	"CENTER", "CENTRE", "LABORATORY", "LABORATORIES", "LAB",
	"RESEARCH", "SCIENCE", "SCIENCES", "SCIENTIFIC", "TECHNOLOGY",
	"TECHNOLOGIES", "TECHNICAL", "ENGINEERING", "POLYTECHNIC",
	"NATIONAL", "STATE", "GENERAL", "CENTRAL", "INTERNATIONAL",
	"COMPANY", "CORPORATION", "GROUP", "HOLDINGS", "ENTERPRISE",
	"ENTERPRISES", "INDUSTRY", "INDUSTRIES", "INDUSTRIAL",
	"DEVELOPMENT", "ASSOCIATION", "ORGANIZATION", "ORGANISATION",
	"FOUNDATION", "SOCIETY", "COUNCIL", "COMMITTEE", "COMMISSION",
	"BUREAU", "AGENCY", "DEPARTMENT", "MINISTRY", "ADMINISTRATION",
	"OFFICE", "BRANCH", "DIVISION", "COOPERATIVE", "UNION",
	"DEFENSE", "DEFENCE", "MILITARY", "AND", "OF", "THE", "FOR",
}

// geographicTerms are place and nationality words. Shared geography alone
// must never produce a match: "Shandong Provincial Military Region" and
// "Shandong Textile Corporation" are unrelated organizations.
var geographicTerms = []string{
	"CHINA", "CHINESE", "PRC", "BEIJING", "SHANGHAI", "TIANJIN",
	"CHONGQING", "SHANDONG", "SICHUAN", "HUNAN", "HUBEI", "HENAN",
	"HEBEI", "SHAANXI", "SHANXI", "JIANGSU", "ZHEJIANG", "FUJIAN",
	"GUANGDONG", "GUANGXI", "YUNNAN", "GUIZHOU", "ANHUI", "JIANGXI",
	"LIAONING", "JILIN", "HEILONGJIANG", "GANSU", "QINGHAI", "HAINAN",
	"XINJIANG", "TIBET", "XIZANG", "NINGXIA", "HARBIN", "WUHAN",
	"NANJING", "CHANGSHA", "CHENGDU", "XIAN", "MIANYANG", "SHENZHEN",
	"GUANGZHOU", "HONG", "KONG", "MACAU", "TAIWAN",
	"RUSSIA", "RUSSIAN", "MOSCOW", "IRAN", "IRANIAN", "TEHRAN",
	"KOREA", "KOREAN", "PYONGYANG", "PAKISTAN", "PAKISTANI",
	"SYRIA", "SYRIAN", "IRAQ", "IRAQI", "LEBANON", "LEBANESE",
	"AFGHANISTAN", "AFGHAN", "YEMEN", "YEMENI", "LIBYA", "LIBYAN",
	"SOMALIA", "SOMALI", "SUDAN", "SUDANESE", "TURKEY", "TURKISH",
	"EGYPT", "EGYPTIAN", "CANADA", "CANADIAN", "AMERICA", "AMERICAN",
	"EUROPE", "EUROPEAN", "ASIA", "ASIAN", "AFRICA", "AFRICAN",
	"PROVINCE", "PROVINCIAL", "REGION", "REGIONAL", "MUNICIPAL",
	"CITY", "DISTRICT", "EASTERN", "WESTERN", "NORTHERN", "SOUTHERN",
	"NORTH", "SOUTH", "EAST", "WEST",
}

// journalKeywords flag publication names that collide with organization
// names ("Journal of Defence Technology" is not an institution).
var journalKeywords = []string{
	"JOURNAL", "PROCEEDINGS", "TRANSACTIONS", "LETTERS", "BULLETIN",
	"ANNALS", "REVIEW", "REVIEWS", "QUARTERLY", "MAGAZINE", "ACTA",
	"ARCHIVES", "ADVANCES", "FRONTIERS",
}

// Default returns the built-in term tables.
func Default() *Table {
	return &Table{
		generic:    toSet(genericTerms),
		geographic: toSet(geographicTerms),
		journal:    toSet(journalKeywords),
	}
}

// Load returns the default tables with the overlay file at path applied.
// An empty path returns the defaults unchanged.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "lexicon: read overlay %s", path)
	}

	var wrapper struct {
		Terms Overlay `yaml:"terms"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "lexicon: parse overlay %s", path)
	}

	applyPatch(t.generic, wrapper.Terms.Generic)
	applyPatch(t.geographic, wrapper.Terms.Geographic)
	applyPatch(t.journal, wrapper.Terms.Journal)
	return t, nil
}

// Overlay is the YAML shape for adding or removing terms, under a top-level
// "terms" key.
type Overlay struct {
	Generic    TermPatch `yaml:"generic"`
	Geographic TermPatch `yaml:"geographic"`
	Journal    TermPatch `yaml:"journal"`
}

// TermPatch adds and removes terms from one table.
type TermPatch struct {
	Add    []string `yaml:"add"`
	Remove []string `yaml:"remove"`
}

// IsGeneric reports whether the normalized token is a generic
// organizational term.
func (t *Table) IsGeneric(token string) bool {
	return t.generic[token]
}

// IsGeographic reports whether the normalized token is a place or
// nationality word.
func (t *Table) IsGeographic(token string) bool {
	return t.geographic[token]
}

// IsJournalKeyword reports whether the normalized token marks a
// publication name.
func (t *Table) IsJournalKeyword(token string) bool {
	return t.journal[token]
}

// IsNoise reports whether the token contributes no identity at all:
// generic or geographic.
func (t *Table) IsNoise(token string) bool {
	return t.generic[token] || t.geographic[token]
}

func toSet(terms []string) map[string]bool {
	m := make(map[string]bool, len(terms))
	for _, term := range terms {
		m[term] = true
	}
	return m
}

func applyPatch(set map[string]bool, patch TermPatch) {
	for _, term := range patch.Add {
		term = strings.ToUpper(strings.TrimSpace(term))
		if term != "" {
			set[term] = true
		}
	}
	for _, term := range patch.Remove {
		delete(set, strings.ToUpper(strings.TrimSpace(term)))
	}
}

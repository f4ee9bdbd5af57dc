// Package normalize canonicalizes raw organization names into the
// comparable variants the matching pipeline works on.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/chainreactions/screener/internal/lexicon"
)

// legalSuffixes lists legal entity suffixes to strip during name
// normalization. Checked after uppercasing; at most one is removed.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.",
	" LTD", " LTD.", " LIMITED",
	" CO LTD", " CO., LTD.", " CO., LTD", " CO,LTD",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" PLC", " P.L.C.",
	" CO", " CO.",
	" GMBH", " AG", " SA", " S.A.", " SARL", " S.A.R.L.",
	" BV", " B.V.", " PTE", " PTE.", " PTY", " KK", " K.K.",
}

// acronymStopwords are function words skipped when deriving initials, so
// "National University of Defense Technology" yields NUDT.
var acronymStopwords = map[string]bool{
	"OF": true, "THE": true, "AND": true, "FOR": true, "A": true,
	"AN": true, "DE": true, "DES": true, "DU": true, "LA": true,
	"LE": true, "EL": true, "AL": true,
}

var (
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
	trailingParen = regexp.MustCompile(`^(.*\S)\s*\(([^()]+)\)\s*$`)
)

// foldTransform strips diacritics and folds compatibility forms (full-width
// characters, ligatures) to their ASCII equivalents.
var foldTransform = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Query is the set of normalized variants derived from one raw input.
// Empty raw input yields a Query with Empty() == true; callers
// short-circuit to an empty result rather than erroring.
type Query struct {
	Raw      string
	Location string // optional hint, normalized; feeds the geographic filter

	Norm    string // canonical normalized form, parentheses folded to spaces
	Compact string // Norm with spaces removed
	Core    string // Norm minus generic and geographic tokens
	Acronym string // initials of non-stopword tokens ("" when < 2 tokens)

	// For a trailing parenthetical input "Name (ACRO)", the two halves
	// normalized separately. Both empty otherwise.
	ParenName string
	ParenAcro string

	Tokens     []string // all tokens of Norm
	SigTokens  []string // tokens minus generic terms
	CoreTokens []string // tokens minus generic and geographic terms
}

// Empty reports whether the input normalized to nothing.
func (q *Query) Empty() bool {
	return q.Norm == ""
}

// Normalizer derives query and entity name variants using a shared term
// table.
type Normalizer struct {
	lex *lexicon.Table
}

// New creates a Normalizer over the given term table.
func New(lex *lexicon.Table) *Normalizer {
	return &Normalizer{lex: lex}
}

// Query normalizes a raw name (plus optional location hint) into its full
// variant set.
func (n *Normalizer) Query(raw, location string) *Query {
	q := &Query{Raw: raw}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return q
	}

	upper := strings.ToUpper(Fold(trimmed))

	// Split a trailing parenthetical before punctuation folding erases it:
	// "Name (ACRO)" carries both a name and an acronym worth matching.
	if m := trailingParen.FindStringSubmatch(upper); m != nil {
		q.ParenName = n.finish(m[1])
		q.ParenAcro = n.finish(m[2])
	}

	q.Norm = n.finish(upper)
	q.Compact = strings.ReplaceAll(q.Norm, " ", "")
	q.Tokens = Tokens(q.Norm)
	q.SigTokens = filterTokens(q.Tokens, n.lex.IsGeneric)
	q.CoreTokens = filterTokens(q.Tokens, n.lex.IsNoise)
	q.Core = strings.Join(q.CoreTokens, " ")
	q.Acronym = Acronym(q.Tokens)

	if loc := strings.TrimSpace(location); loc != "" {
		q.Location = n.finish(strings.ToUpper(Fold(loc)))
	}

	return q
}

// Name normalizes an entity-side name to its canonical comparable form.
func (n *Normalizer) Name(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return n.finish(strings.ToUpper(Fold(trimmed)))
}

// Core returns the normalized name with generic and geographic tokens
// stripped. May be empty when every token is noise.
func (n *Normalizer) Core(normName string) string {
	return strings.Join(filterTokens(Tokens(normName), n.lex.IsNoise), " ")
}

// SigTokens returns the tokens of a normalized name minus generic terms.
func (n *Normalizer) SigTokens(normName string) []string {
	return filterTokens(Tokens(normName), n.lex.IsGeneric)
}

// finish applies suffix stripping, punctuation folding, and whitespace
// collapse to an already uppercased, Unicode-folded string.
func (n *Normalizer) finish(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"’", "",
		"\"", "",
		"&", " AND ",
		"-", " ",
		"/", " ",
		"(", " ",
		")", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Fold strips diacritics and folds compatibility characters to ASCII
// equivalents. Falls back to the input when the transform fails.
func Fold(s string) string {
	out, _, err := transform.String(foldTransform, s)
	if err != nil {
		return s
	}
	return out
}

// Tokens splits a normalized name on non-alphanumeric boundaries.
func Tokens(normName string) []string {
	return strings.FieldsFunc(normName, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Acronym derives the initials of the non-stopword tokens. Returns "" for
// fewer than two contributing tokens — a one-word name has no acronym.
func Acronym(tokens []string) string {
	var b strings.Builder
	contributing := 0
	for _, tok := range tokens {
		if acronymStopwords[tok] {
			continue
		}
		r := []rune(tok)
		if len(r) == 0 {
			continue
		}
		b.WriteRune(r[0])
		contributing++
	}
	if contributing < 2 {
		return ""
	}
	return b.String()
}

func filterTokens(tokens []string, drop func(string) bool) []string {
	var kept []string
	for _, tok := range tokens {
		if !drop(tok) {
			kept = append(kept, tok)
		}
	}
	return kept
}

// Package similarity provides text normalization and edit-distance scoring
// used by the dedupe pre-filter.
package similarity

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists common legal entity suffixes stripped during business
// name normalization so "Acme Plumbing LLC" and "Acme Plumbing Inc" block
// to the same key.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" LLP", " L.L.P.", " L.L.P",
	" PC", " P.C.", " P.C",
	" PA", " P.A.", " P.A",
	" CO", " CO.",
	" PLC", " P.L.C.",
	" DBA", " D/B/A",
	" PLLC",
}

var (
	multiSpaceRe = regexp.MustCompile(`\s{2,}`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9 ]`)
	nonDigitRe   = regexp.MustCompile(`[^0-9]`)

	// foldDiacritics decomposes accented characters and drops the combining
	// marks, so "Café" normalizes the same as "Cafe".
	foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize lowercases, folds diacritics, strips all non-alphanumeric
// characters except spaces, and collapses whitespace. Empty input yields
// the empty string.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	if folded, _, err := transform.String(foldDiacritics, text); err == nil {
		text = folded
	}

	text = strings.ToLower(text)
	text = nonAlnumRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// NormalizePhone strips everything but digits.
func NormalizePhone(text string) string {
	return nonDigitRe.ReplaceAllString(text, "")
}

// NormalizeName standardizes a business name for blocking and comparison:
// uppercase, legal suffix removed, punctuation stripped, spaces collapsed.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

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
		"\"", "",
		"&", "AND",
		"-", " ",
	).Replace(name)

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Ratio returns the edit-distance similarity of two already-normalized
// strings in [0, 1]. Two empty strings are vacuously identical (1.0); one
// empty string against a non-empty one scores 0.0.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}

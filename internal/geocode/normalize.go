package geocode

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// normalizeText lowercases, folds diacritics, drops markup and reduces
// everything that is not a letter or digit to single spaces.
func normalizeText(s string) string {
	s = strings.ToLower(s)
	s = tagPattern.ReplaceAllString(s, " ")

	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// includesLoose reports whether the normalized haystack contains the
// normalized needle. Empty inputs never match.
func includesLoose(haystack, needle string) bool {
	h := normalizeText(haystack)
	n := normalizeText(needle)
	if h == "" || n == "" {
		return false
	}
	return strings.Contains(h, n)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// cacheKey identifies a verification by normalized name and country plus
// coordinates rounded to 4 decimals.
func cacheKey(loc intel.Location, rounded intel.Coordinates) string {
	return "v1|" + normalizeText(loc.Name) + "|" + normalizeText(loc.Country) + "|" +
		formatCoord(rounded.Lon()) + "," + formatCoord(rounded.Lat())
}

package language

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"horse.fit/nycpedia/internal/langdetect"
)

// detect is swapped in tests so the pair heuristic stays deterministic.
var detect = langdetect.DetectEnglishOrSpanish

// Pair picks the primary and secondary wiki for a query. Accented letters
// mean the query was typed in Spanish; otherwise English wins unless the
// detector is confident the text is Spanish.
func Pair(query string) (primary, secondary string) {
	if HasAccents(query) {
		return Spanish, English
	}
	if detect(query) == Spanish {
		return Spanish, English
	}
	return English, Spanish
}

// HasAccents reports whether s carries combining marks once decomposed
// (á, é, ñ, ü ...).
func HasAccents(s string) bool {
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			return true
		}
	}
	return false
}

// FoldAccents strips combining marks and lowercases s ("Economía" -> "economia").
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(result)
}

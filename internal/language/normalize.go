package language

import "strings"

const (
	English = "en"
	Spanish = "es"
)

// NormalizeCode returns the lowercase primary subtag of a language tag
// ("en" from "EN_us"). Blank or non-alphabetic input yields "".
func NormalizeCode(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "_", "-")
	primary, _, _ := strings.Cut(trimmed, "-")
	if len(primary) < 2 || len(primary) > 3 || !isAlphaLower(primary) {
		return ""
	}
	return primary
}

// Supported reports whether code is one of the two wikis the resolver searches.
func Supported(code string) bool {
	switch NormalizeCode(code) {
	case English, Spanish:
		return true
	default:
		return false
	}
}

// Other returns the second language of the English/Spanish pair.
func Other(code string) string {
	if NormalizeCode(code) == Spanish {
		return English
	}
	return Spanish
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// MinLetters is the shortest sample the detector is asked about; shorter
// queries ("met", "moma") carry no usable signal.
const MinLetters = 8

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// DetectEnglishOrSpanish returns "en" or "es" when the detector is confident
// about the sample, and "" otherwise.
func DetectEnglishOrSpanish(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return ""
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < MinLetters {
		return ""
	}

	detected, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return ""
	}

	switch detected {
	case lingua.English:
		return "en"
	case lingua.Spanish:
		return "es"
	default:
		return ""
	}
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(lingua.English, lingua.Spanish).
			WithMinimumRelativeDistance(0.25).
			Build()
	})
	return detector
}

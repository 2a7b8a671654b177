package classifier

import (
	"fmt"
	"strings"

	"github.com/pemistahl/lingua-go"
)

// LanguageGate lets through only text detected as one of the allowed
// languages. Text whose language cannot be determined is let through.
type LanguageGate struct {
	detector lingua.LanguageDetector
	allowed  map[lingua.Language]bool
}

// NewLanguageGate builds a gate from ISO 639-1 codes such as "en".
func NewLanguageGate(codes []string) (*LanguageGate, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("at least one language code is required")
	}

	allowed := make(map[lingua.Language]bool, len(codes))
	for _, code := range codes {
		iso := lingua.GetIsoCode639_1FromValue(strings.ToLower(strings.TrimSpace(code)))
		lang := lingua.GetLanguageFromIsoCode639_1(iso)
		if lang == lingua.Unknown {
			return nil, fmt.Errorf("unknown language code %q", code)
		}
		allowed[lang] = true
	}

	detector := lingua.NewLanguageDetectorBuilder().
		FromAllLanguages().
		WithLowAccuracyMode().
		Build()

	return &LanguageGate{detector: detector, allowed: allowed}, nil
}

// Accept reports whether text should be sent to the engine.
func (g *LanguageGate) Accept(text string) bool {
	lang, ok := g.detector.DetectLanguageOf(text)
	if !ok {
		return true
	}
	return g.allowed[lang]
}

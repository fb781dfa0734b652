package forms

import (
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLanguageCode parses code as a BCP 47 tag and returns it upper-cased,
// e.g. "en" -> "EN", "pt-br" -> "PT-BR".
func NormalizeLanguageCode(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", newValidationError("languageCode", "language code is required")
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", newValidationError("languageCode", "invalid language code %q", code)
	}
	return strings.ToUpper(tag.String()), nil
}

// normalizeLanguages normalizes and de-duplicates codes, keeping first-seen order.
func normalizeLanguages(codes []string) ([]string, error) {
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		n, err := NormalizeLanguageCode(c)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[n]; dup {
			return nil, newValidationError("languages", "duplicate language %s", n)
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}

func containsLanguage(langs []string, code string) bool {
	for _, l := range langs {
		if l == code {
			return true
		}
	}
	return false
}

package utils

import (
	"strings"

	"golang.org/x/text/language"
)

// DetermineLocale resolves a locale from an explicit query value, then the Accept-Language
// header, then def, against supported. Results are upper-case BCP 47 codes ("EN", "PT-BR").
// A regional request falls back to its base language when only that is supported.
func DetermineLocale(queryLang, acceptLang string, supported []string, def string) string {
	sup := map[string]struct{}{}
	var first string
	for _, s := range supported {
		if code := normalize(s); code != "" {
			sup[code] = struct{}{}
			if first == "" {
				first = code
			}
		}
	}

	pick := func(lang string) (string, bool) {
		t, err := language.Parse(strings.TrimSpace(lang))
		if err != nil || t == language.Und {
			return "", false
		}
		if code := strings.ToUpper(t.String()); code != "" {
			if _, ok := sup[code]; ok {
				return code, true
			}
		}
		base, _ := t.Base()
		code := strings.ToUpper(base.String())
		if _, ok := sup[code]; ok {
			return code, true
		}
		return "", false
	}

	if v, ok := pick(queryLang); ok {
		return v
	}
	// ParseAcceptLanguage orders tags by descending q
	tags, _, _ := language.ParseAcceptLanguage(acceptLang)
	for _, t := range tags {
		if v, ok := pick(t.String()); ok {
			return v
		}
	}
	if v, ok := pick(def); ok {
		return v
	}
	if first != "" {
		return first
	}
	return "EN"
}

// PreferredLanguage returns the highest ranked Accept-Language tag, upper-cased, or "".
func PreferredLanguage(acceptLang string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLang)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return strings.ToUpper(tags[0].String())
}

func normalize(s string) string {
	t, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return strings.ToUpper(t.String())
}

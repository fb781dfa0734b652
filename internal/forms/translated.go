package forms

import (
	"sort"
	"strings"
)

// TranslatedText maps a language code to its text. Within a Form every TranslatedText
// holds exactly the form's language set as keys.
type TranslatedText map[string]string

// Clone returns a copy; a nil receiver stays nil.
func (t TranslatedText) Clone() TranslatedText {
	if t == nil {
		return nil
	}
	out := make(TranslatedText, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Languages returns the keys in sorted order.
func (t TranslatedText) Languages() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the text for lang, falling back to fallback when the slot is missing or blank.
func (t TranslatedText) Get(lang, fallback string) string {
	if v := t[lang]; strings.TrimSpace(v) != "" {
		return v
	}
	return t[fallback]
}

func (t TranslatedText) Equal(other TranslatedText) bool {
	if len(t) != len(other) {
		return false
	}
	for k, v := range t {
		ov, ok := other[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// withLanguage returns a copy with code added and seeded.
func (t TranslatedText) withLanguage(code string, seed SeedFunc) TranslatedText {
	out := t.Clone()
	if out == nil {
		out = TranslatedText{}
	}
	value := ""
	if seed != nil {
		value = seed(t)
	}
	out[code] = value
	return out
}

func (t TranslatedText) withoutLanguage(code string) TranslatedText {
	if t == nil {
		return nil
	}
	out := t.Clone()
	delete(out, code)
	return out
}

// keyViolations lists missing and extraneous keys against langs.
func (t TranslatedText) keyViolations(path string, langs []string) []Violation {
	var vs []Violation
	for _, l := range langs {
		if _, ok := t[l]; !ok {
			vs = append(vs, Violation{Path: path, Message: "missing translation for " + l})
		}
	}
	for _, k := range t.Languages() {
		if !containsLanguage(langs, k) {
			vs = append(vs, Violation{Path: path, Message: "unexpected translation for " + k})
		}
	}
	return vs
}

// emptyText seeds an empty slot for every language.
func emptyText(langs []string) TranslatedText {
	out := make(TranslatedText, len(langs))
	for _, l := range langs {
		out[l] = ""
	}
	return out
}

// normalizeKeys upper-cases keys via NormalizeLanguageCode; invalid keys are kept as-is so
// validation reports them.
func (t TranslatedText) normalizeKeys() TranslatedText {
	if t == nil {
		return nil
	}
	out := make(TranslatedText, len(t))
	for k, v := range t {
		if n, err := NormalizeLanguageCode(k); err == nil {
			k = n
		}
		out[k] = v
	}
	return out
}

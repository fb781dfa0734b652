package forms

import (
	"fmt"
	"strings"
)

// SeedFunc produces the initial value of a new language slot from the existing text.
type SeedFunc func(existing TranslatedText) string

// SeedPolicy decides what a newly added language slot holds.
type SeedPolicy string

const (
	// SeedEmpty leaves new slots empty so that untranslated content is visible as such.
	SeedEmpty SeedPolicy = "empty"
	// SeedFromDefault copies the default-language text into new slots.
	SeedFromDefault SeedPolicy = "default"
)

func ParseSeedPolicy(s string) (SeedPolicy, error) {
	switch SeedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SeedEmpty:
		return SeedEmpty, nil
	case SeedFromDefault:
		return SeedFromDefault, nil
	}
	return "", fmt.Errorf("unknown seed policy %q", s)
}

// TranslationManager is the only component that changes a form's language set. Every
// operation works on a staged copy of the whole form and hands it out only once the copy
// validates, so a partially translated form is never observable.
type TranslationManager struct {
	policy SeedPolicy
}

func NewTranslationManager(policy SeedPolicy) *TranslationManager {
	if policy == "" {
		policy = SeedEmpty
	}
	return &TranslationManager{policy: policy}
}

func (m *TranslationManager) Policy() SeedPolicy { return m.policy }

func (m *TranslationManager) seed(f *Form) SeedFunc {
	if m.policy != SeedFromDefault {
		return nil
	}
	def := f.DefaultLanguage
	return func(existing TranslatedText) string { return existing[def] }
}

// AddLanguage adds code to the form and to every text it owns.
func (m *TranslationManager) AddLanguage(f *Form, code string) (*Form, error) {
	return m.AddLanguages(f, code)
}

// AddLanguages adds several languages at once; all of them are added or none.
func (m *TranslationManager) AddLanguages(f *Form, codes ...string) (*Form, error) {
	if len(codes) == 0 {
		return nil, newValidationError("languages", "at least one language code is required")
	}
	added := make([]string, 0, len(codes))
	for _, c := range codes {
		n, err := NormalizeLanguageCode(c)
		if err != nil {
			return nil, err
		}
		if containsLanguage(f.Languages, n) || containsLanguage(added, n) {
			return nil, &DuplicateLanguageError{Code: n}
		}
		added = append(added, n)
	}
	seed := m.seed(f)
	staged := f.mapTexts(func(_ string, t TranslatedText) TranslatedText {
		out := t.Clone()
		for _, code := range added {
			out = out.withLanguage(code, seed)
		}
		return out
	})
	staged.Languages = append(staged.Languages, added...)
	return commit(staged)
}

// RemoveLanguage removes code from the form and from every text it owns. The default
// language cannot be removed.
func (m *TranslationManager) RemoveLanguage(f *Form, code string) (*Form, error) {
	n, err := NormalizeLanguageCode(code)
	if err != nil {
		return nil, &LanguageNotFoundError{Code: strings.TrimSpace(code)}
	}
	if n == f.DefaultLanguage {
		return nil, &CannotRemoveDefaultLanguageError{Code: n}
	}
	if !containsLanguage(f.Languages, n) {
		return nil, &LanguageNotFoundError{Code: n}
	}
	staged := f.mapTexts(func(_ string, t TranslatedText) TranslatedText { return t.withoutLanguage(n) })
	kept := make([]string, 0, len(staged.Languages)-1)
	for _, l := range staged.Languages {
		if l != n {
			kept = append(kept, l)
		}
	}
	staged.Languages = kept
	return commit(staged)
}

// LanguageStatus counts the non-blank slots of one language.
type LanguageStatus struct {
	Language   string `json:"language"`
	Translated int    `json:"translated"`
	Total      int    `json:"total"`
}

func (s LanguageStatus) Complete() bool { return s.Translated == s.Total }

// TranslationStatus reports, per form language in form order, how many texts are filled in.
func TranslationStatus(f *Form) []LanguageStatus {
	out := make([]LanguageStatus, len(f.Languages))
	for i, l := range f.Languages {
		out[i].Language = l
	}
	f.eachText(func(_ string, t TranslatedText) {
		for i, l := range f.Languages {
			out[i].Total++
			if strings.TrimSpace(t[l]) != "" {
				out[i].Translated++
			}
		}
	})
	return out
}

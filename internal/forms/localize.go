package forms

import "time"

// LocalizedOption is an option rendered in one language.
type LocalizedOption struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	IsFreeText bool   `json:"isFreeText,omitempty"`
	IsFlagged  bool   `json:"isFlagged,omitempty"`
}

// LocalizedQuestion is a question rendered in one language. Blank slots fall back to the
// form's default language.
type LocalizedQuestion struct {
	ID               string            `json:"id"`
	Kind             QuestionKind      `json:"$questionType"`
	Code             string            `json:"code"`
	Text             string            `json:"text"`
	HelpText         string            `json:"helpText,omitempty"`
	InputPlaceholder string            `json:"inputPlaceholder,omitempty"`
	DisplayLogic     *DisplayLogic     `json:"displayLogic,omitempty"`
	Min              *float64          `json:"min,omitempty"`
	Max              *float64          `json:"max,omitempty"`
	MinDate          *time.Time        `json:"minDate,omitempty"`
	MaxDate          *time.Time        `json:"maxDate,omitempty"`
	Scale            *RatingScale      `json:"scale,omitempty"`
	Options          []LocalizedOption `json:"options,omitempty"`
}

type LocalizedForm struct {
	ID          string              `json:"id"`
	Code        string              `json:"code"`
	FormType    FormType            `json:"formType"`
	Status      FormStatus          `json:"status"`
	Language    string              `json:"language"`
	Languages   []string            `json:"languages"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Questions   []LocalizedQuestion `json:"questions"`
}

// Localize renders f in lang. A lang the form does not carry selects the default language.
func Localize(f *Form, lang string) *LocalizedForm {
	def := f.DefaultLanguage
	code, err := NormalizeLanguageCode(lang)
	if err != nil || !containsLanguage(f.Languages, code) {
		code = def
	}
	out := &LocalizedForm{
		ID:          f.ID,
		Code:        f.Code,
		FormType:    f.FormType,
		Status:      f.Status,
		Language:    code,
		Languages:   append([]string(nil), f.Languages...),
		Name:        f.Name.Get(code, def),
		Description: f.Description.Get(code, def),
		Questions:   make([]LocalizedQuestion, 0, len(f.Questions)),
	}
	for _, q := range f.Questions {
		c := q.Clone()
		lq := LocalizedQuestion{
			ID:               c.ID,
			Kind:             c.Kind,
			Code:             c.Code,
			Text:             c.Text.Get(code, def),
			HelpText:         c.HelpText.Get(code, def),
			InputPlaceholder: c.InputPlaceholder.Get(code, def),
			DisplayLogic:     c.DisplayLogic,
			Min:              c.Min,
			Max:              c.Max,
			MinDate:          c.MinDate,
			MaxDate:          c.MaxDate,
			Scale:            c.Scale,
		}
		for _, o := range c.Options {
			lq.Options = append(lq.Options, LocalizedOption{
				ID:         o.ID,
				Text:       o.Text.Get(code, def),
				IsFreeText: o.IsFreeText,
				IsFlagged:  o.IsFlagged,
			})
		}
		out.Questions = append(out.Questions, lq)
	}
	return out
}

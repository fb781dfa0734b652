package forms

import (
	"bytes"
	"encoding/json"
)

// DecodeForm parses the JSON representation of a form and validates it. Language codes in
// the language list and in every text are normalized before validation, so a round trip
// through EncodeForm yields an equal form.
func DecodeForm(data []byte) (*Form, error) {
	var f Form
	if err := json.Unmarshal(bytes.TrimSpace(data), &f); err != nil {
		return nil, newValidationError("", "malformed form document: %v", err)
	}
	out := f.normalized()
	if out.Questions == nil {
		out.Questions = []Question{}
	}
	if out.Status == "" {
		out.Status = StatusDrafted
	}
	if out.FormType == "" {
		out.FormType = FormTypeOther
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// EncodeForm renders f as JSON. Questions carry their kind in "$questionType".
func EncodeForm(f *Form) ([]byte, error) {
	return json.Marshal(f)
}

// DecodeQuestion parses a single question document. It does not validate; the owning form
// does that when the question is added.
func DecodeQuestion(data []byte) (Question, error) {
	var q Question
	if err := json.Unmarshal(bytes.TrimSpace(data), &q); err != nil {
		return Question{}, newValidationError("", "malformed question document: %v", err)
	}
	return q.mapTexts(func(_ string, t TranslatedText) TranslatedText { return t.normalizeKeys() }), nil
}

// Input converts q back into the fields accepted by NewQuestion.
func (q Question) Input() QuestionInput {
	c := q.Clone()
	return QuestionInput{
		ID:               c.ID,
		Code:             c.Code,
		Text:             c.Text,
		HelpText:         c.HelpText,
		InputPlaceholder: c.InputPlaceholder,
		DisplayLogic:     c.DisplayLogic,
		Min:              c.Min,
		Max:              c.Max,
		MinDate:          c.MinDate,
		MaxDate:          c.MaxDate,
		Scale:            c.Scale,
		Options:          c.Options,
	}
}

func (f *Form) normalized() *Form {
	out := f.mapTexts(func(_ string, t TranslatedText) TranslatedText { return t.normalizeKeys() })
	for i, l := range out.Languages {
		if n, err := NormalizeLanguageCode(l); err == nil {
			out.Languages[i] = n
		}
	}
	if n, err := NormalizeLanguageCode(f.DefaultLanguage); err == nil {
		out.DefaultLanguage = n
	}
	return out
}

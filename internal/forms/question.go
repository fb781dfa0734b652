package forms

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuestionKind is the closed set of question variants. The values double as the
// `$questionType` discriminator on the wire.
type QuestionKind string

const (
	KindText         QuestionKind = "textQuestion"
	KindNumber       QuestionKind = "numberQuestion"
	KindDate         QuestionKind = "dateQuestion"
	KindSingleSelect QuestionKind = "singleSelectQuestion"
	KindMultiSelect  QuestionKind = "multiSelectQuestion"
	KindRating       QuestionKind = "ratingQuestion"
)

func (k QuestionKind) Valid() bool {
	switch k {
	case KindText, KindNumber, KindDate, KindSingleSelect, KindMultiSelect, KindRating:
		return true
	}
	return false
}

func (k QuestionKind) IsSelect() bool {
	return k == KindSingleSelect || k == KindMultiSelect
}

func (k QuestionKind) hasPlaceholder() bool {
	return k == KindText || k == KindNumber
}

const maxRatingScale = 10

// RatingScale bounds a rating answer, inclusive.
type RatingScale struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Question is one question of exactly one Kind. Fields that do not belong to Kind stay zero.
type Question struct {
	ID               string         `json:"id"`
	Kind             QuestionKind   `json:"$questionType"`
	Code             string         `json:"code"`
	Text             TranslatedText `json:"text"`
	HelpText         TranslatedText `json:"helpText,omitempty"`
	InputPlaceholder TranslatedText `json:"inputPlaceholder,omitempty"`
	DisplayLogic     *DisplayLogic  `json:"displayLogic,omitempty"`

	Min     *float64     `json:"min,omitempty"`
	Max     *float64     `json:"max,omitempty"`
	MinDate *time.Time   `json:"minDate,omitempty"`
	MaxDate *time.Time   `json:"maxDate,omitempty"`
	Scale   *RatingScale `json:"scale,omitempty"`

	Options []SelectOption `json:"options,omitempty"`
}

// QuestionInput carries the fields accepted by NewQuestion. Fields not used by the
// requested kind must be left empty.
type QuestionInput struct {
	ID               string
	Code             string
	Text             TranslatedText
	HelpText         TranslatedText
	InputPlaceholder TranslatedText
	DisplayLogic     *DisplayLogic
	Min              *float64
	Max              *float64
	MinDate          *time.Time
	MaxDate          *time.Time
	Scale            *RatingScale
	Options          []SelectOption
}

// NewQuestion builds and validates a question of kind against the expected language set.
// Empty question and option ids are generated.
func NewQuestion(kind QuestionKind, in QuestionInput, languages []string) (Question, error) {
	q := Question{
		ID:               strings.TrimSpace(in.ID),
		Kind:             kind,
		Code:             strings.TrimSpace(in.Code),
		Text:             in.Text.normalizeKeys(),
		HelpText:         in.HelpText.normalizeKeys(),
		InputPlaceholder: in.InputPlaceholder.normalizeKeys(),
		DisplayLogic:     in.DisplayLogic.clone(),
		Min:              cloneFloat(in.Min),
		Max:              cloneFloat(in.Max),
		MinDate:          cloneTime(in.MinDate),
		MaxDate:          cloneTime(in.MaxDate),
	}
	if in.Scale != nil {
		s := *in.Scale
		q.Scale = &s
	}
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if in.Options != nil {
		q.Options = make([]SelectOption, len(in.Options))
		for i, o := range in.Options {
			o = o.clone()
			o.ID = strings.TrimSpace(o.ID)
			if o.ID == "" {
				o.ID = uuid.NewString()
			}
			o.Text = o.Text.normalizeKeys()
			q.Options[i] = o
		}
	}
	if err := asError(q.violations(languages)); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (q Question) path() string { return "questions/" + q.ID }

// violations runs the validator for q's kind. Form-level checks (code uniqueness,
// logic references) live in the form validator.
func (q Question) violations(languages []string) []Violation {
	p := q.path()
	var vs []Violation
	if q.ID == "" {
		vs = append(vs, Violation{Path: p, Message: "id is required"})
	}
	if strings.TrimSpace(q.Code) == "" {
		vs = append(vs, Violation{Path: p + "/code", Message: "code is required"})
	}
	if q.Text == nil {
		vs = append(vs, Violation{Path: p + "/text", Message: "text is required"})
	} else {
		vs = append(vs, q.Text.keyViolations(p+"/text", languages)...)
	}
	if q.HelpText != nil {
		vs = append(vs, q.HelpText.keyViolations(p+"/helpText", languages)...)
	}
	if q.DisplayLogic != nil {
		vs = append(vs, q.DisplayLogic.shapeViolations(p+"/displayLogic")...)
		if q.DisplayLogic.QuestionID == q.ID {
			vs = append(vs, Violation{Path: p + "/displayLogic", Message: "question cannot reference itself"})
		}
	}
	if q.InputPlaceholder != nil {
		if q.Kind.hasPlaceholder() {
			vs = append(vs, q.InputPlaceholder.keyViolations(p+"/inputPlaceholder", languages)...)
		} else {
			vs = append(vs, Violation{Path: p + "/inputPlaceholder", Message: "input placeholder is not allowed on " + string(q.Kind)})
		}
	}

	switch q.Kind {
	case KindText:
		vs = append(vs, q.unusedFieldViolations(false, false, false, false)...)
	case KindNumber:
		vs = append(vs, q.unusedFieldViolations(true, false, false, false)...)
		if q.Min != nil && q.Max != nil && *q.Min > *q.Max {
			vs = append(vs, Violation{Path: p, Message: fmt.Sprintf("min %v is greater than max %v", *q.Min, *q.Max)})
		}
	case KindDate:
		vs = append(vs, q.unusedFieldViolations(false, true, false, false)...)
		if q.MinDate != nil && q.MaxDate != nil && q.MinDate.After(*q.MaxDate) {
			vs = append(vs, Violation{Path: p, Message: "minDate is after maxDate"})
		}
	case KindRating:
		vs = append(vs, q.unusedFieldViolations(false, false, true, false)...)
		switch {
		case q.Scale == nil:
			vs = append(vs, Violation{Path: p + "/scale", Message: "scale is required"})
		case q.Scale.Min < 0 || q.Scale.Max > maxRatingScale || q.Scale.Min >= q.Scale.Max:
			vs = append(vs, Violation{Path: p + "/scale", Message: fmt.Sprintf("scale must satisfy 0 <= min < max <= %d", maxRatingScale)})
		}
	case KindSingleSelect, KindMultiSelect:
		vs = append(vs, q.unusedFieldViolations(false, false, false, true)...)
		vs = append(vs, optionViolations(p, q.Options, languages)...)
	default:
		vs = append(vs, Violation{Path: p, Message: fmt.Sprintf("unknown question type %q", q.Kind)})
	}
	return vs
}

func (q Question) unusedFieldViolations(numeric, date, scale, options bool) []Violation {
	p := q.path()
	var vs []Violation
	if !numeric && (q.Min != nil || q.Max != nil) {
		vs = append(vs, Violation{Path: p, Message: "min/max are only allowed on number questions"})
	}
	if !date && (q.MinDate != nil || q.MaxDate != nil) {
		vs = append(vs, Violation{Path: p, Message: "minDate/maxDate are only allowed on date questions"})
	}
	if !scale && q.Scale != nil {
		vs = append(vs, Violation{Path: p, Message: "scale is only allowed on rating questions"})
	}
	if !options && len(q.Options) > 0 {
		vs = append(vs, Violation{Path: p, Message: "options are only allowed on select questions"})
	}
	return vs
}

func optionViolations(path string, opts []SelectOption, languages []string) []Violation {
	var vs []Violation
	if len(opts) < 2 {
		vs = append(vs, Violation{Path: path + "/options", Message: "at least 2 options are required"})
	}
	seen := make(map[string]struct{}, len(opts))
	for i, o := range opts {
		if o.ID == "" {
			vs = append(vs, Violation{Path: fmt.Sprintf("%s/options/%d", path, i), Message: "option id is required"})
			continue
		}
		if _, dup := seen[o.ID]; dup {
			vs = append(vs, Violation{Path: path + "/options/" + o.ID, Message: "duplicate option id"})
		}
		seen[o.ID] = struct{}{}
		if o.Text == nil {
			vs = append(vs, Violation{Path: path + "/options/" + o.ID + "/text", Message: "text is required"})
			continue
		}
		vs = append(vs, o.Text.keyViolations(path+"/options/"+o.ID+"/text", languages)...)
	}
	return vs
}

// Equal reports whether both questions are the same variant with identical fields.
// Options compare as sequences.
func (q Question) Equal(other Question) bool {
	return q.ID == other.ID &&
		q.Kind == other.Kind &&
		q.Code == other.Code &&
		q.Text.Equal(other.Text) &&
		(q.HelpText == nil) == (other.HelpText == nil) && q.HelpText.Equal(other.HelpText) &&
		(q.InputPlaceholder == nil) == (other.InputPlaceholder == nil) && q.InputPlaceholder.Equal(other.InputPlaceholder) &&
		q.DisplayLogic.Equal(other.DisplayLogic) &&
		floatPtrEqual(q.Min, other.Min) && floatPtrEqual(q.Max, other.Max) &&
		timePtrEqual(q.MinDate, other.MinDate) && timePtrEqual(q.MaxDate, other.MaxDate) &&
		scaleEqual(q.Scale, other.Scale) &&
		optionsEqual(q.Options, other.Options)
}

// Clone returns a deep copy.
func (q Question) Clone() Question {
	return q.mapTexts(func(_ string, t TranslatedText) TranslatedText { return t.Clone() })
}

// AddTranslation returns a copy with code added to every owned text, options included.
func (q Question) AddTranslation(code string, seed SeedFunc) Question {
	return q.mapTexts(func(_ string, t TranslatedText) TranslatedText { return t.withLanguage(code, seed) })
}

// RemoveTranslation returns a copy with code removed from every owned text, options included.
func (q Question) RemoveTranslation(code string) Question {
	return q.mapTexts(func(_ string, t TranslatedText) TranslatedText { return t.withoutLanguage(code) })
}

// mapTexts is the single walk over everything translatable a question owns. It returns a
// deep copy with fn applied to each present text; absent optional texts stay absent.
func (q Question) mapTexts(fn func(path string, t TranslatedText) TranslatedText) Question {
	p := q.path()
	out := q
	out.DisplayLogic = q.DisplayLogic.clone()
	out.Min, out.Max = cloneFloat(q.Min), cloneFloat(q.Max)
	out.MinDate, out.MaxDate = cloneTime(q.MinDate), cloneTime(q.MaxDate)
	if q.Scale != nil {
		s := *q.Scale
		out.Scale = &s
	}
	out.Text = fn(p+"/text", q.Text)
	if q.HelpText != nil {
		out.HelpText = fn(p+"/helpText", q.HelpText)
	}
	if q.InputPlaceholder != nil && q.Kind.hasPlaceholder() {
		out.InputPlaceholder = fn(p+"/inputPlaceholder", q.InputPlaceholder)
	} else {
		out.InputPlaceholder = q.InputPlaceholder.Clone()
	}
	switch q.Kind {
	case KindSingleSelect, KindMultiSelect:
		out.Options = make([]SelectOption, len(q.Options))
		for i, o := range q.Options {
			o.Text = fn(p+"/options/"+o.ID+"/text", o.Text)
			out.Options[i] = o
		}
	default:
		out.Options = cloneOptions(q.Options)
	}
	return out
}

// eachText visits every owned text without copying.
func (q Question) eachText(fn func(path string, t TranslatedText)) {
	q.mapTexts(func(path string, t TranslatedText) TranslatedText {
		fn(path, t)
		return t
	})
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func scaleEqual(a, b *RatingScale) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

package forms

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type FormType string

const (
	FormTypeOpening            FormType = "Opening"
	FormTypeVoting             FormType = "Voting"
	FormTypeClosingAndCounting FormType = "ClosingAndCounting"
	FormTypeOther              FormType = "Other"
)

func (t FormType) Valid() bool {
	switch t {
	case FormTypeOpening, FormTypeVoting, FormTypeClosingAndCounting, FormTypeOther:
		return true
	}
	return false
}

type FormStatus string

const (
	StatusDrafted   FormStatus = "Drafted"
	StatusPublished FormStatus = "Published"
	StatusObsolete  FormStatus = "Obsolete"
)

// Form is the aggregate root: an ordered list of questions plus the language set every
// translatable text must cover. Mutating methods return a new Form and never modify the
// receiver; a failed mutation returns the error and no form.
type Form struct {
	ID              string         `json:"id"`
	Code            string         `json:"code"`
	FormType        FormType       `json:"formType"`
	Status          FormStatus     `json:"status"`
	Name            TranslatedText `json:"name"`
	Description     TranslatedText `json:"description"`
	DefaultLanguage string         `json:"defaultLanguage"`
	Languages       []string       `json:"languages"`
	Questions       []Question     `json:"questions"`
	Version         int            `json:"version"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type FormInput struct {
	ID              string
	Code            string
	FormType        FormType
	Name            TranslatedText
	Description     TranslatedText
	Languages       []string
	DefaultLanguage string
}

// NewForm creates a drafted form with no questions. Name and Description default to an
// empty slot per language.
func NewForm(in FormInput) (*Form, error) {
	langs, err := normalizeLanguages(in.Languages)
	if err != nil {
		return nil, err
	}
	def, err := NormalizeLanguageCode(in.DefaultLanguage)
	if err != nil {
		return nil, newValidationError("defaultLanguage", "invalid default language %q", in.DefaultLanguage)
	}
	f := &Form{
		ID:              strings.TrimSpace(in.ID),
		Code:            strings.TrimSpace(in.Code),
		FormType:        in.FormType,
		Status:          StatusDrafted,
		Name:            in.Name.normalizeKeys(),
		Description:     in.Description.normalizeKeys(),
		DefaultLanguage: def,
		Languages:       langs,
		Questions:       []Question{},
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.FormType == "" {
		f.FormType = FormTypeOther
	}
	if f.Name == nil {
		f.Name = emptyText(langs)
	}
	if f.Description == nil {
		f.Description = emptyText(langs)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks every invariant of the form and its questions.
func (f *Form) Validate() error {
	return asError(f.violations())
}

func (f *Form) violations() []Violation {
	var vs []Violation
	if f.ID == "" {
		vs = append(vs, Violation{Path: "id", Message: "id is required"})
	}
	if !f.FormType.Valid() {
		vs = append(vs, Violation{Path: "formType", Message: fmt.Sprintf("unknown form type %q", f.FormType)})
	}
	switch f.Status {
	case StatusDrafted, StatusPublished, StatusObsolete:
	default:
		vs = append(vs, Violation{Path: "status", Message: fmt.Sprintf("unknown status %q", f.Status)})
	}
	if len(f.Languages) == 0 {
		vs = append(vs, Violation{Path: "languages", Message: "at least one language is required"})
	}
	seenLang := map[string]struct{}{}
	for _, l := range f.Languages {
		if n, err := NormalizeLanguageCode(l); err != nil || n != l {
			vs = append(vs, Violation{Path: "languages", Message: fmt.Sprintf("invalid language code %q", l)})
		}
		if _, dup := seenLang[l]; dup {
			vs = append(vs, Violation{Path: "languages", Message: "duplicate language " + l})
		}
		seenLang[l] = struct{}{}
	}
	if !containsLanguage(f.Languages, f.DefaultLanguage) {
		vs = append(vs, Violation{Path: "defaultLanguage", Message: fmt.Sprintf("default language %q is not one of the form languages", f.DefaultLanguage)})
	}
	if f.Name == nil {
		vs = append(vs, Violation{Path: "name", Message: "name is required"})
	} else {
		vs = append(vs, f.Name.keyViolations("name", f.Languages)...)
	}
	if f.Description != nil {
		vs = append(vs, f.Description.keyViolations("description", f.Languages)...)
	}

	ids := make(map[string]int, len(f.Questions))
	codes := make(map[string]struct{}, len(f.Questions))
	for i, q := range f.Questions {
		vs = append(vs, q.violations(f.Languages)...)
		if _, dup := ids[q.ID]; dup {
			vs = append(vs, Violation{Path: q.path(), Message: "duplicate question id"})
		}
		code := strings.TrimSpace(q.Code)
		if _, dup := codes[code]; dup && code != "" {
			vs = append(vs, Violation{Path: q.path() + "/code", Message: fmt.Sprintf("duplicate question code %q", code)})
		}
		codes[code] = struct{}{}
		if q.DisplayLogic != nil {
			vs = append(vs, f.logicViolations(q, ids)...)
		}
		if _, dup := ids[q.ID]; !dup {
			ids[q.ID] = i
		}
	}
	return vs
}

// logicViolations checks q's rule against the questions before it. earlier maps the ids
// seen so far to their index.
func (f *Form) logicViolations(q Question, earlier map[string]int) []Violation {
	p := q.path() + "/displayLogic"
	idx, ok := earlier[q.DisplayLogic.QuestionID]
	if !ok {
		if _, later := f.indexOf(q.DisplayLogic.QuestionID); later {
			return []Violation{{Path: p, Message: fmt.Sprintf("references question %s which does not come before it", q.DisplayLogic.QuestionID)}}
		}
		return []Violation{{Path: p, Message: fmt.Sprintf("references unknown question %s", q.DisplayLogic.QuestionID)}}
	}
	target := f.Questions[idx]
	if !target.Kind.IsSelect() {
		return nil
	}
	var vs []Violation
	for _, v := range q.DisplayLogic.referencedValues() {
		if v != "" && !hasOption(target.Options, v) {
			vs = append(vs, Violation{Path: p, Message: fmt.Sprintf("value %q is not an option of question %s", v, target.ID)})
		}
	}
	return vs
}

func (f *Form) indexOf(questionID string) (int, bool) {
	for i, q := range f.Questions {
		if q.ID == questionID {
			return i, true
		}
	}
	return -1, false
}

// Question returns the question with id.
func (f *Form) Question(id string) (Question, bool) {
	if i, ok := f.indexOf(id); ok {
		return f.Questions[i], true
	}
	return Question{}, false
}

// Clone returns a deep copy.
func (f *Form) Clone() *Form {
	return f.mapTexts(func(_ string, t TranslatedText) TranslatedText { return t.Clone() })
}

// mapTexts walks every text reachable from the form and returns a deep copy with fn applied.
func (f *Form) mapTexts(fn func(path string, t TranslatedText) TranslatedText) *Form {
	out := *f
	out.Languages = append([]string(nil), f.Languages...)
	out.Name = fn("name", f.Name)
	if f.Description != nil {
		out.Description = fn("description", f.Description)
	}
	out.Questions = make([]Question, len(f.Questions))
	for i, q := range f.Questions {
		out.Questions[i] = q.mapTexts(fn)
	}
	return &out
}

// eachText visits every text reachable from the form.
func (f *Form) eachText(fn func(path string, t TranslatedText)) {
	fn("name", f.Name)
	if f.Description != nil {
		fn("description", f.Description)
	}
	for _, q := range f.Questions {
		q.eachText(fn)
	}
}

// commit validates a staged copy; the staged copy is only handed out when valid.
func commit(staged *Form) (*Form, error) {
	if err := staged.Validate(); err != nil {
		return nil, err
	}
	return staged, nil
}

// AddQuestion appends a new question of kind.
func (f *Form) AddQuestion(kind QuestionKind, in QuestionInput) (*Form, error) {
	q, err := NewQuestion(kind, in, f.Languages)
	if err != nil {
		return nil, err
	}
	if _, exists := f.indexOf(q.ID); exists {
		return nil, newValidationError(q.path(), "duplicate question id")
	}
	staged := f.Clone()
	staged.Questions = append(staged.Questions, q)
	return commit(staged)
}

// UpdateQuestion replaces the question with id, keeping its id, kind and position.
func (f *Form) UpdateQuestion(id string, in QuestionInput) (*Form, error) {
	i, ok := f.indexOf(id)
	if !ok {
		return nil, newValidationError("questions/"+id, "question not found")
	}
	in.ID = id
	q, err := NewQuestion(f.Questions[i].Kind, in, f.Languages)
	if err != nil {
		return nil, err
	}
	staged := f.Clone()
	staged.Questions[i] = q
	return commit(staged)
}

// RemoveQuestion removes the question with id. It fails while another question's display
// logic references it.
func (f *Form) RemoveQuestion(id string) (*Form, error) {
	i, ok := f.indexOf(id)
	if !ok {
		return nil, newValidationError("questions/"+id, "question not found")
	}
	var vs []Violation
	for _, q := range f.Questions {
		if q.DisplayLogic != nil && q.DisplayLogic.QuestionID == id {
			vs = append(vs, Violation{Path: q.path() + "/displayLogic", Message: "references question " + id})
		}
	}
	if err := asError(vs); err != nil {
		return nil, err
	}
	staged := f.Clone()
	staged.Questions = append(staged.Questions[:i], staged.Questions[i+1:]...)
	return commit(staged)
}

// MoveQuestion moves the question with id to index. Moves that would put a question
// before one its display logic references, or after one that references it, fail.
func (f *Form) MoveQuestion(id string, index int) (*Form, error) {
	i, ok := f.indexOf(id)
	if !ok {
		return nil, newValidationError("questions/"+id, "question not found")
	}
	if index < 0 || index >= len(f.Questions) {
		return nil, newValidationError("questions/"+id, "position %d out of range", index)
	}
	staged := f.Clone()
	q := staged.Questions[i]
	rest := append(staged.Questions[:i:i], staged.Questions[i+1:]...)
	moved := make([]Question, 0, len(f.Questions))
	moved = append(moved, rest[:index]...)
	moved = append(moved, q)
	moved = append(moved, rest[index:]...)
	staged.Questions = moved
	return commit(staged)
}

// AddOption appends an option to a select question.
func (f *Form) AddOption(questionID string, opt SelectOption) (*Form, error) {
	i, ok := f.indexOf(questionID)
	if !ok {
		return nil, newValidationError("questions/"+questionID, "question not found")
	}
	if !f.Questions[i].Kind.IsSelect() {
		return nil, newValidationError("questions/"+questionID, "options are only allowed on select questions")
	}
	opt = opt.clone()
	opt.ID = strings.TrimSpace(opt.ID)
	if opt.ID == "" {
		opt.ID = uuid.NewString()
	}
	opt.Text = opt.Text.normalizeKeys()
	staged := f.Clone()
	staged.Questions[i].Options = append(staged.Questions[i].Options, opt)
	return commit(staged)
}

// RemoveOption removes an option from a select question and prunes it from every display
// logic rule that compares against it; a rule left with nothing to compare is dropped.
func (f *Form) RemoveOption(questionID, optionID string) (*Form, error) {
	i, ok := f.indexOf(questionID)
	if !ok {
		return nil, newValidationError("questions/"+questionID, "question not found")
	}
	if !hasOption(f.Questions[i].Options, optionID) {
		return nil, newValidationError("questions/"+questionID+"/options/"+optionID, "option not found")
	}
	staged := f.Clone()
	kept := make([]SelectOption, 0, len(staged.Questions[i].Options))
	for _, o := range staged.Questions[i].Options {
		if o.ID != optionID {
			kept = append(kept, o)
		}
	}
	staged.Questions[i].Options = kept
	for j := range staged.Questions {
		l := staged.Questions[j].DisplayLogic
		if l != nil && l.QuestionID == questionID {
			staged.Questions[j].DisplayLogic = l.withoutValue(optionID)
		}
	}
	return commit(staged)
}

// ApplyTranslations sets the code slot of every text addressed in values (path -> text).
// Unknown paths fail the whole call.
func (f *Form) ApplyTranslations(code string, values map[string]string) (*Form, error) {
	lang, err := NormalizeLanguageCode(code)
	if err != nil {
		return nil, err
	}
	if !containsLanguage(f.Languages, lang) {
		return nil, &LanguageNotFoundError{Code: lang}
	}
	known := map[string]struct{}{}
	f.eachText(func(path string, _ TranslatedText) { known[path] = struct{}{} })
	var vs []Violation
	for path := range values {
		if _, ok := known[path]; !ok {
			vs = append(vs, Violation{Path: path, Message: "unknown translation path"})
		}
	}
	if err := asError(vs); err != nil {
		return nil, err
	}
	staged := f.mapTexts(func(path string, t TranslatedText) TranslatedText {
		out := t.Clone()
		if v, ok := values[path]; ok {
			out[lang] = v
		}
		return out
	})
	return commit(staged)
}

// Publish marks a drafted form as published. A form needs at least one question.
func (f *Form) Publish() (*Form, error) {
	if f.Status != StatusDrafted {
		return nil, newValidationError("status", "only drafted forms can be published, form is %s", f.Status)
	}
	if len(f.Questions) == 0 {
		return nil, newValidationError("questions", "a form needs at least one question to be published")
	}
	staged := f.Clone()
	staged.Status = StatusPublished
	return commit(staged)
}

// Obsolete retires a published form.
func (f *Form) Obsolete() (*Form, error) {
	if f.Status != StatusPublished {
		return nil, newValidationError("status", "only published forms can be made obsolete, form is %s", f.Status)
	}
	staged := f.Clone()
	staged.Status = StatusObsolete
	return commit(staged)
}

// TextEntry is one translatable text addressed by its path.
type TextEntry struct {
	Path string
	Text TranslatedText
}

// Texts lists every translatable text of the form in document order.
func (f *Form) Texts() []TextEntry {
	var out []TextEntry
	f.eachText(func(path string, t TranslatedText) {
		out = append(out, TextEntry{Path: path, Text: t.Clone()})
	})
	return out
}

package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tudoramariei/votemonitor/internal/forms"
)

type FormStore interface {
	FormReader
	InsertForm(ctx context.Context, ngoID string, f *forms.Form) error
	ListForms(ctx context.Context, ngoID string) ([]*forms.Form, error)
	// UpdateForm stores f if the stored version still equals f.Version and bumps f.Version.
	// A mismatch returns ErrStaleVersion.
	UpdateForm(ctx context.Context, f *forms.Form) error
	DeleteForm(ctx context.Context, id string) error
	AddAudit(ctx context.Context, entry AuditEntry)
	ListAudit(ctx context.Context, target string) ([]AuditEntry, error)
}

type FormService struct {
	store        FormStore
	translations *forms.TranslationManager
	now          func() time.Time
}

func NewFormService(store FormStore, translations *forms.TranslationManager) *FormService {
	if translations == nil {
		translations = forms.NewTranslationManager(forms.SeedEmpty)
	}
	return &FormService{
		store:        store,
		translations: translations,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *FormService) CreateForm(ctx context.Context, ngoID, actor string, in forms.FormInput) (*forms.Form, error) {
	if ngoID == "" {
		return nil, NewForbiddenError("unauthorized")
	}
	if strings.TrimSpace(in.Code) == "" {
		return nil, NewInvalidError("code required")
	}
	f, err := forms.NewForm(in)
	if err != nil {
		return nil, fromDomainError(err)
	}
	return s.insert(ctx, ngoID, actor, "create_form", f)
}

// ImportForm stores a complete form document, questions included, as a new draft.
func (s *FormService) ImportForm(ctx context.Context, ngoID, actor string, data []byte) (*forms.Form, error) {
	if ngoID == "" {
		return nil, NewForbiddenError("unauthorized")
	}
	f, err := forms.DecodeForm(data)
	if err != nil {
		return nil, fromDomainError(err)
	}
	f.Status = forms.StatusDrafted
	if existing, err := s.store.GetForm(ctx, f.ID); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, NewConflictError("form " + f.ID + " already exists")
	}
	return s.insert(ctx, ngoID, actor, "import_form", f)
}

func (s *FormService) insert(ctx context.Context, ngoID, actor, action string, f *forms.Form) (*forms.Form, error) {
	now := s.now()
	f.CreatedAt, f.UpdatedAt = now, now
	f.Version = 1
	if err := s.store.InsertForm(ctx, ngoID, f); err != nil {
		return nil, err
	}
	s.store.AddAudit(ctx, AuditEntry{Time: now, Actor: actor, Action: action, Target: f.ID, Note: f.Code})
	return f, nil
}

func (s *FormService) GetForm(ctx context.Context, ngoID, id string) (*forms.Form, error) {
	return loadForm(ctx, s.store, ngoID, id)
}

func (s *FormService) ListForms(ctx context.Context, ngoID string) ([]*forms.Form, error) {
	if ngoID == "" {
		return nil, NewForbiddenError("unauthorized")
	}
	return s.store.ListForms(ctx, ngoID)
}

func (s *FormService) DeleteForm(ctx context.Context, ngoID, id, actor string) error {
	if _, err := loadForm(ctx, s.store, ngoID, id); err != nil {
		return err
	}
	if err := s.store.DeleteForm(ctx, id); err != nil {
		return err
	}
	s.store.AddAudit(ctx, AuditEntry{Time: s.now(), Actor: actor, Action: "delete_form", Target: id})
	return nil
}

// History lists the audit trail of a form, oldest first.
func (s *FormService) History(ctx context.Context, ngoID, id string) ([]AuditEntry, error) {
	if _, err := loadForm(ctx, s.store, ngoID, id); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, id)
}

// mutation describes one change applied through update.
type mutation struct {
	action    string
	note      string
	draftOnly bool
	apply     func(f *forms.Form) (*forms.Form, error)
}

// update loads the form, applies m and stores the result with a version check. A failed
// apply leaves the stored form untouched.
func (s *FormService) update(ctx context.Context, ngoID, id, actor string, m mutation) (*forms.Form, error) {
	f, err := loadForm(ctx, s.store, ngoID, id)
	if err != nil {
		return nil, err
	}
	if m.draftOnly && f.Status != forms.StatusDrafted {
		return nil, NewConflictError("form is " + strings.ToLower(string(f.Status)) + "; questions can only be changed on drafts")
	}
	next, err := m.apply(f)
	if err != nil {
		return nil, fromDomainError(err)
	}
	next.Version = f.Version
	next.UpdatedAt = s.now()
	if err := s.store.UpdateForm(ctx, next); err != nil {
		return nil, fromDomainError(err)
	}
	s.store.AddAudit(ctx, AuditEntry{Time: next.UpdatedAt, Actor: actor, Action: m.action, Target: id, Note: m.note})
	return next, nil
}

func (s *FormService) AddQuestion(ctx context.Context, ngoID, id, actor string, q forms.Question) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action:    "add_question",
		note:      q.Code,
		draftOnly: true,
		apply:     func(f *forms.Form) (*forms.Form, error) { return f.AddQuestion(q.Kind, q.Input()) },
	})
}

func (s *FormService) UpdateQuestion(ctx context.Context, ngoID, id, questionID, actor string, q forms.Question) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action:    "update_question",
		note:      questionID,
		draftOnly: true,
		apply: func(f *forms.Form) (*forms.Form, error) {
			existing, ok := f.Question(questionID)
			if ok && q.Kind != "" && q.Kind != existing.Kind {
				return nil, NewInvalidError("question type cannot be changed")
			}
			return f.UpdateQuestion(questionID, q.Input())
		},
	})
}

func (s *FormService) RemoveQuestion(ctx context.Context, ngoID, id, questionID, actor string) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action:    "remove_question",
		note:      questionID,
		draftOnly: true,
		apply:     func(f *forms.Form) (*forms.Form, error) { return f.RemoveQuestion(questionID) },
	})
}

func (s *FormService) MoveQuestion(ctx context.Context, ngoID, id, questionID string, position int, actor string) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action:    "move_question",
		note:      questionID + "@" + strconv.Itoa(position),
		draftOnly: true,
		apply:     func(f *forms.Form) (*forms.Form, error) { return f.MoveQuestion(questionID, position) },
	})
}

func (s *FormService) AddOption(ctx context.Context, ngoID, id, questionID, actor string, opt forms.SelectOption) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action:    "add_option",
		note:      questionID,
		draftOnly: true,
		apply:     func(f *forms.Form) (*forms.Form, error) { return f.AddOption(questionID, opt) },
	})
}

func (s *FormService) RemoveOption(ctx context.Context, ngoID, id, questionID, optionID, actor string) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action:    "remove_option",
		note:      questionID + "/" + optionID,
		draftOnly: true,
		apply:     func(f *forms.Form) (*forms.Form, error) { return f.RemoveOption(questionID, optionID) },
	})
}

// AddLanguages is allowed on published forms: adding a language only adds empty or seeded
// slots and never changes existing content.
func (s *FormService) AddLanguages(ctx context.Context, ngoID, id, actor string, codes []string) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action: "add_languages",
		note:   strings.Join(codes, ","),
		apply:  func(f *forms.Form) (*forms.Form, error) { return s.translations.AddLanguages(f, codes...) },
	})
}

func (s *FormService) RemoveLanguage(ctx context.Context, ngoID, id, actor, code string) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action: "remove_language",
		note:   code,
		apply:  func(f *forms.Form) (*forms.Form, error) { return s.translations.RemoveLanguage(f, code) },
	})
}

func (s *FormService) ApplyTranslations(ctx context.Context, ngoID, id, actor, code string, values map[string]string) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action: "apply_translations",
		note:   code + ":" + strconv.Itoa(len(values)),
		apply:  func(f *forms.Form) (*forms.Form, error) { return f.ApplyTranslations(code, values) },
	})
}

// ImportTranslationSheet applies a sheet produced by ExportTranslationSheet. All rows are
// applied or none.
func (s *FormService) ImportTranslationSheet(ctx context.Context, ngoID, id, actor string, data []byte) (*forms.Form, error) {
	code, values, err := ParseTranslationSheet(data)
	if err != nil {
		return nil, err
	}
	return s.ApplyTranslations(ctx, ngoID, id, actor, code, values)
}

func (s *FormService) ExportTranslationSheet(ctx context.Context, ngoID, id, lang string) ([]byte, error) {
	f, err := loadForm(ctx, s.store, ngoID, id)
	if err != nil {
		return nil, err
	}
	b, err := ExportTranslationSheet(f, lang)
	return b, fromDomainError(err)
}

func (s *FormService) TranslationStatus(ctx context.Context, ngoID, id string) ([]forms.LanguageStatus, error) {
	f, err := loadForm(ctx, s.store, ngoID, id)
	if err != nil {
		return nil, err
	}
	return forms.TranslationStatus(f), nil
}

func (s *FormService) Publish(ctx context.Context, ngoID, id, actor string) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action: "publish_form",
		apply:  func(f *forms.Form) (*forms.Form, error) { return f.Publish() },
	})
}

func (s *FormService) Obsolete(ctx context.Context, ngoID, id, actor string) (*forms.Form, error) {
	return s.update(ctx, ngoID, id, actor, mutation{
		action: "obsolete_form",
		apply:  func(f *forms.Form) (*forms.Form, error) { return f.Obsolete() },
	})
}

// View renders the form in lang, falling back to the default language.
func (s *FormService) View(ctx context.Context, ngoID, id, lang string) (*forms.LocalizedForm, error) {
	f, err := loadForm(ctx, s.store, ngoID, id)
	if err != nil {
		return nil, err
	}
	return forms.Localize(f, lang), nil
}

// Visibility evaluates display logic for a partial set of answers.
func (s *FormService) Visibility(ctx context.Context, ngoID, id string, answers forms.Answers) (*forms.SubmissionReport, error) {
	f, err := loadForm(ctx, s.store, ngoID, id)
	if err != nil {
		return nil, err
	}
	r := forms.CheckSubmission(f, answers)
	return &r, nil
}

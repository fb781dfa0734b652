package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tudoramariei/votemonitor/internal/forms"
	"github.com/tudoramariei/votemonitor/internal/services"
)

func sampleForm(t *testing.T, id string) *forms.Form {
	t.Helper()
	f, err := forms.NewForm(forms.FormInput{
		ID:              id,
		Code:            "OPEN",
		FormType:        forms.FormTypeOpening,
		Name:            forms.TranslatedText{"en": "Opening"},
		Languages:       []string{"en"},
		DefaultLanguage: "en",
	})
	if err != nil {
		t.Fatalf("NewForm returned error: %v", err)
	}
	f, err = f.AddQuestion(forms.KindSingleSelect, forms.QuestionInput{
		ID:   "q1",
		Code: "A1",
		Text: forms.TranslatedText{"en": "Open?"},
		Options: []forms.SelectOption{
			{ID: "yes", Text: forms.TranslatedText{"en": "Yes"}},
			{ID: "no", Text: forms.TranslatedText{"en": "No"}, IsFlagged: true},
		},
	})
	if err != nil {
		t.Fatalf("AddQuestion returned error: %v", err)
	}
	f.CreatedAt = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	f.UpdatedAt = f.CreatedAt
	return f
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	f := sampleForm(t, "F1")
	if err := s.InsertForm(ctx, "N1", f); err != nil {
		t.Fatalf("InsertForm returned error: %v", err)
	}
	f.Name["EN"] = "mutated"

	rec, err := s.GetForm(ctx, "F1")
	if err != nil || rec == nil {
		t.Fatalf("GetForm = %v, %v", rec, err)
	}
	if rec.Form.Name["EN"] != "Opening" || rec.NGOID != "N1" {
		t.Fatalf("stored form shares state: %+v", rec)
	}
	rec.Form.Questions[0].Options[0].ID = "changed"
	again, _ := s.GetForm(ctx, "F1")
	if again.Form.Questions[0].Options[0].ID != "yes" {
		t.Fatalf("GetForm returned shared options")
	}

	if err := s.InsertForm(ctx, "N1", f); err == nil {
		t.Fatalf("duplicate InsertForm succeeded")
	}
	if missing, err := s.GetForm(ctx, "nope"); missing != nil || err != nil {
		t.Fatalf("GetForm(nope) = %v, %v", missing, err)
	}
}

func TestMemoryStoreVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.InsertForm(ctx, "N1", sampleForm(t, "F1")); err != nil {
		t.Fatalf("InsertForm returned error: %v", err)
	}
	rec, _ := s.GetForm(ctx, "F1")
	first := rec.Form.Clone()
	second := rec.Form.Clone()
	if err := s.UpdateForm(ctx, first); err != nil {
		t.Fatalf("UpdateForm returned error: %v", err)
	}
	if first.Version != rec.Form.Version+1 {
		t.Fatalf("version = %d, want %d", first.Version, rec.Form.Version+1)
	}
	if err := s.UpdateForm(ctx, second); !errors.Is(err, services.ErrStaleVersion) {
		t.Fatalf("stale UpdateForm = %v, want ErrStaleVersion", err)
	}
	ghost := sampleForm(t, "ghost")
	if err := s.UpdateForm(ctx, ghost); err == nil {
		t.Fatalf("UpdateForm on missing form succeeded")
	}
}

func TestMemoryStoreScopesAndDeletes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.InsertForm(ctx, "N1", sampleForm(t, "F1"))
	_ = s.InsertForm(ctx, "N2", sampleForm(t, "F2"))
	list, _ := s.ListForms(ctx, "N1")
	if len(list) != 1 || list[0].ID != "F1" {
		t.Fatalf("ListForms(N1) = %v", list)
	}

	sub := &services.Submission{ID: "S1", FormID: "F1", NGOID: "N1", Answers: forms.Answers{"q1": forms.Scalar("yes")}}
	if err := s.InsertSubmission(ctx, sub); err != nil {
		t.Fatalf("InsertSubmission returned error: %v", err)
	}
	orphan := &services.Submission{ID: "S2", FormID: "missing"}
	if err := s.InsertSubmission(ctx, orphan); err == nil {
		t.Fatalf("InsertSubmission for missing form succeeded")
	}
	if err := s.DeleteForm(ctx, "F1"); err != nil {
		t.Fatalf("DeleteForm returned error: %v", err)
	}
	subs, _ := s.ListSubmissions(ctx, "F1")
	if len(subs) != 0 {
		t.Fatalf("submissions survived delete: %d", len(subs))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	f := sampleForm(t, "F1")
	_ = s.InsertForm(ctx, "N1", f)
	_ = s.InsertSubmission(ctx, &services.Submission{
		ID: "S1", FormID: "F1", NGOID: "N1", Complete: true,
		Answers:     forms.Answers{"q1": forms.Scalar("no")},
		SubmittedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	})
	s.AddAudit(ctx, services.AuditEntry{Time: f.CreatedAt, Actor: "a@ngo.org", Action: "create_form", Target: "F1"})
	s.AddAudit(ctx, services.AuditEntry{Time: f.CreatedAt, Actor: "a@ngo.org", Action: "create_form", Target: "F9"})

	path := filepath.Join(t.TempDir(), "data", "snapshot.json")
	if err := s.SaveSnapshot(path); err != nil {
		t.Fatalf("SaveSnapshot returned error: %v", err)
	}
	loaded, err := NewMemoryStoreFromPath(ctx, path)
	if err != nil {
		t.Fatalf("NewMemoryStoreFromPath returned error: %v", err)
	}
	rec, _ := loaded.GetForm(ctx, "F1")
	if rec == nil || rec.NGOID != "N1" {
		t.Fatalf("restored form = %+v", rec)
	}
	if len(rec.Form.Questions) != 1 || len(rec.Form.Questions[0].Options) != 2 {
		t.Fatalf("restored questions = %+v", rec.Form.Questions)
	}
	subs, _ := loaded.ListSubmissions(ctx, "F1")
	if len(subs) != 1 || subs[0].Answers["q1"].Scalar != "no" || !subs[0].Complete {
		t.Fatalf("restored submissions = %+v", subs)
	}
	entries, _ := loaded.ListAudit(ctx, "F1")
	if len(entries) != 1 || entries[0].Action != "create_form" {
		t.Fatalf("restored audit = %+v", entries)
	}
}

func TestNewMemoryStoreFromMissingPath(t *testing.T) {
	s, err := NewMemoryStoreFromPath(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("NewMemoryStoreFromPath returned error: %v", err)
	}
	list, _ := s.ListForms(context.Background(), "N1")
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %d forms", len(list))
	}
}

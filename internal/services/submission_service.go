package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tudoramariei/votemonitor/internal/forms"
)

// SubmissionStore abstracts persistence operations required by SubmissionService.
type SubmissionStore interface {
	FormReader
	InsertSubmission(ctx context.Context, sub *Submission) error
	ListSubmissions(ctx context.Context, formID string) ([]*Submission, error)
	AddAudit(ctx context.Context, entry AuditEntry)
}

// SubmitRequest transports the sanitized handler input into the service layer.
type SubmitRequest struct {
	PollingStationID string
	ObserverID       string
	Answers          forms.Answers
}

// SubmitResult is the stored submission plus the evaluation it was stored with.
type SubmitResult struct {
	Submission *Submission            `json:"submission"`
	Report     forms.SubmissionReport `json:"report"`
	Progress   forms.Progress         `json:"progress"`
}

// ErrFormNotPublished is returned when answers are sent for a draft or obsolete form.
var ErrFormNotPublished = errors.New("form is not published")

type SubmissionService struct {
	store       SubmissionStore
	now         func() time.Time
	idGenerator func() string
}

func NewSubmissionService(store SubmissionStore) *SubmissionService {
	return &SubmissionService{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: uuid.NewString,
	}
}

// Submit validates answers against the form and stores them. Answers to hidden or unknown
// questions are reported and dropped; incomplete submissions are stored as incomplete.
func (s *SubmissionService) Submit(ctx context.Context, ngoID, formID string, req SubmitRequest) (*SubmitResult, error) {
	f, err := loadForm(ctx, s.store, ngoID, formID)
	if err != nil {
		return nil, err
	}
	if f.Status != forms.StatusPublished {
		return nil, &ServiceError{Code: ErrorInvalid, Message: ErrFormNotPublished.Error(), Err: ErrFormNotPublished}
	}
	if err := forms.ValidateAnswers(f, req.Answers); err != nil {
		return nil, fromDomainError(err)
	}
	report := forms.CheckSubmission(f, req.Answers)
	kept := make(forms.Answers, len(report.Visible))
	for _, id := range report.Visible {
		if a, ok := req.Answers[id]; ok && a.Recorded() {
			kept[id] = a
		}
	}
	sub := &Submission{
		ID:               s.idGenerator(),
		FormID:           f.ID,
		NGOID:            ngoID,
		PollingStationID: strings.TrimSpace(req.PollingStationID),
		ObserverID:       strings.TrimSpace(req.ObserverID),
		Answers:          kept,
		Complete:         report.Complete,
		SubmittedAt:      s.now(),
	}
	if err := s.store.InsertSubmission(ctx, sub); err != nil {
		return nil, err
	}
	note := "incomplete"
	if sub.Complete {
		note = "complete"
	}
	s.store.AddAudit(ctx, AuditEntry{Time: sub.SubmittedAt, Actor: sub.ObserverID, Action: "submit", Target: f.ID, Note: note})
	return &SubmitResult{Submission: sub, Report: report, Progress: forms.FormProgress(f, kept)}, nil
}

func (s *SubmissionService) ListSubmissions(ctx context.Context, ngoID, formID string) ([]*Submission, error) {
	if _, err := loadForm(ctx, s.store, ngoID, formID); err != nil {
		return nil, err
	}
	return s.store.ListSubmissions(ctx, formID)
}

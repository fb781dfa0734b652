package services

import (
	"context"
	"errors"
	"time"

	"github.com/tudoramariei/votemonitor/internal/forms"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorBadGateway   ErrorCode = "bad_gateway"
)

// ServiceError carries a transport-neutral error code. Err, when set, is the domain error
// it was mapped from.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }

func (e *ServiceError) Unwrap() error { return e.Err }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewBadGatewayError(msg string) error { return &ServiceError{Code: ErrorBadGateway, Message: msg} }

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// ErrStaleVersion is returned by stores when an update was based on an outdated form version.
var ErrStaleVersion = errors.New("form was modified concurrently")

// fromDomainError maps form-model errors onto service codes. Other errors pass through.
func fromDomainError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsServiceError(err); ok {
		return err
	}
	var (
		ve *forms.ValidationError
		dl *forms.DuplicateLanguageError
		nf *forms.LanguageNotFoundError
		cr *forms.CannotRemoveDefaultLanguageError
	)
	switch {
	case errors.As(err, &ve):
		return &ServiceError{Code: ErrorInvalid, Message: err.Error(), Err: err}
	case errors.As(err, &dl):
		return &ServiceError{Code: ErrorConflict, Message: err.Error(), Err: err}
	case errors.As(err, &nf):
		return &ServiceError{Code: ErrorNotFound, Message: err.Error(), Err: err}
	case errors.As(err, &cr):
		return &ServiceError{Code: ErrorInvalid, Message: err.Error(), Err: err}
	case errors.Is(err, ErrStaleVersion):
		return &ServiceError{Code: ErrorConflict, Message: err.Error(), Err: err}
	}
	return err
}

// FormRecord is a stored form together with the NGO that owns it.
type FormRecord struct {
	NGOID string
	Form  *forms.Form
}

// Submission is one observer's set of answers to a published form.
type Submission struct {
	ID               string        `json:"id"`
	FormID           string        `json:"formId"`
	NGOID            string        `json:"ngoId"`
	PollingStationID string        `json:"pollingStationId,omitempty"`
	ObserverID       string        `json:"observerId,omitempty"`
	Answers          forms.Answers `json:"answers"`
	Complete         bool          `json:"complete"`
	SubmittedAt      time.Time     `json:"submittedAt"`
}

type AuditEntry struct {
	Time   time.Time `json:"time"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Target string    `json:"target"`
	Note   string    `json:"note,omitempty"`
}

// FormReader is the read side shared by every service that needs a form.
type FormReader interface {
	GetForm(ctx context.Context, id string) (*FormRecord, error)
}

// loadForm fetches a form and checks it belongs to ngoID.
func loadForm(ctx context.Context, store FormReader, ngoID, id string) (*forms.Form, error) {
	if ngoID == "" {
		return nil, NewForbiddenError("unauthorized")
	}
	rec, err := store.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Form == nil {
		return nil, NewNotFoundError("form not found")
	}
	if rec.NGOID != ngoID {
		return nil, NewForbiddenError("forbidden")
	}
	return rec.Form, nil
}

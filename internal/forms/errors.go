package forms

import (
	"fmt"
	"strings"
)

// Violation is a single broken invariant, addressed by the path of the offending node.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// ValidationError reports structural or content violations. It is not retryable without changing the input.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func newValidationError(path, format string, args ...any) *ValidationError {
	return &ValidationError{Violations: []Violation{{Path: path, Message: fmt.Sprintf(format, args...)}}}
}

// asError returns nil for an empty violation list.
func asError(vs []Violation) error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

type DuplicateLanguageError struct {
	Code string
}

func (e *DuplicateLanguageError) Error() string {
	return fmt.Sprintf("language %s already exists on form", e.Code)
}

type LanguageNotFoundError struct {
	Code string
}

func (e *LanguageNotFoundError) Error() string {
	return fmt.Sprintf("language %s not found on form", e.Code)
}

type CannotRemoveDefaultLanguageError struct {
	Code string
}

func (e *CannotRemoveDefaultLanguageError) Error() string {
	return fmt.Sprintf("cannot remove default language %s", e.Code)
}

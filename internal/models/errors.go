package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrNotAuthorized   = errors.New("not authorized")
	ErrAlreadyAccepted = errors.New("chat is already accepted")
	ErrDuplicateChat   = errors.New("a private chat already exists between these users")
)

// ValidationError marks malformed or missing input. It is always detected
// before any mutation takes place.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UnknownParticipantsError lists every email that did not resolve to a user
// when creating a chat.
type UnknownParticipantsError struct {
	Emails []string
}

func (e *UnknownParticipantsError) Error() string {
	return fmt.Sprintf("one or more users not found: %v", e.Emails)
}

// UpstreamError wraps a failed call to a collaborator (store, cache, object
// storage, AI endpoint).
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError unless it is nil or already
// classified.
func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}

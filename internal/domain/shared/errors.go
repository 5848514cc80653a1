// Package shared contains the error taxonomy, domain events and value objects
// used by every LingoFin domain package. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the domain or the data-access port
// matches exactly one of the first three through errors.Is.
var (
	ErrNetworkOrServiceFailure = errors.New("network or service failure")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrNotFound                = errors.New("not found")

	ErrAlreadyExists = errors.New("already exists")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTimeout       = errors.New("operation timeout")
	ErrUnavailable   = errors.New("service unavailable")
)

// DomainError carries the failing domain and operation together with its kind.
type DomainError struct {
	Domain  string // "course", "challenge", "community", "user", "dataaccess"
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches on Kind first, then on the wrapped cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// InvalidArgument is shorthand for a validation failure.
func InvalidArgument(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// NotFound is shorthand for a missing entity.
func NotFound(domain, op, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, ErrNotFound, fmt.Sprintf(format, args...))
}

// ServiceFailure wraps a backend rejection. The message of err is kept as is.
func ServiceFailure(domain, op string, err error) *DomainError {
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	return &DomainError{Domain: domain, Op: op, Kind: ErrNetworkOrServiceFailure, Message: msg}
}

// Classify converts an arbitrary backend error into the taxonomy. Errors that
// already carry an argument or not-found kind keep it; everything else
// becomes a service failure.
func Classify(domain, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsInvalidArgument(err), IsNotFound(err), IsServiceFailure(err):
		return err
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrUnavailable):
		return WrapError(domain, op, ErrNetworkOrServiceFailure, "backend unavailable", err)
	default:
		return ServiceFailure(domain, op, err)
	}
}

// Course domain errors
var (
	ErrCourseNotFound   = NewDomainError("course", "Find", ErrNotFound, "course not found")
	ErrLessonNotFound   = NewDomainError("course", "FindLesson", ErrNotFound, "lesson not found")
	ErrAlreadyEnrolled  = NewDomainError("course", "Enroll", ErrAlreadyExists, "user already enrolled")
	ErrNotEnrolled      = NewDomainError("course", "Access", ErrUnauthorized, "user is not enrolled in course")
	ErrInvalidCourseRow = NewDomainError("course", "Import", ErrInvalidArgument, "invalid catalog row")
)

// Challenge domain errors
var (
	ErrChallengeNotFound = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
	ErrChallengeFull     = NewDomainError("challenge", "Join", ErrInvalidArgument, "challenge is full")
	ErrNegativeScore     = NewDomainError("challenge", "UpdateScore", ErrInvalidArgument, "score cannot be negative")
)

// Community domain errors
var (
	ErrPostNotFound = NewDomainError("community", "Find", ErrNotFound, "post not found")
	ErrEmptyContent = NewDomainError("community", "Validate", ErrInvalidArgument, "content cannot be empty")
)

// User domain errors
var (
	ErrUserNotFound       = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrEmailTaken         = NewDomainError("user", "SignUp", ErrInvalidArgument, "email already registered")
	ErrInvalidCredentials = NewDomainError("user", "SignIn", ErrInvalidArgument, "invalid email or password")
	ErrNoSession          = NewDomainError("user", "Session", ErrInvalidArgument, "no active session")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsServiceFailure(err error) bool {
	return errors.Is(err, ErrNetworkOrServiceFailure)
}

// IsRetryable reports whether repeating the same call may succeed.
// Argument and not-found errors never become retryable.
func IsRetryable(err error) bool {
	if err == nil || IsInvalidArgument(err) || IsNotFound(err) {
		return false
	}
	return errors.Is(err, ErrNetworkOrServiceFailure) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

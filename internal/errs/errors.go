// Package errs defines the error taxonomy shared by the ledger and cycle services.
//
// Domain packages declare sentinel values with the constructors below. errors.Is matches
// two *Error values by code, so a sentinel still matches after WithMessage or WithField
// has attached caller-facing detail.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that only care about recovery strategy.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindConfiguration Kind = "configuration"
	KindIntegrity     Kind = "integrity"
	KindInvalidState  Kind = "invalid_state"
	KindNotFound      Kind = "not_found"
)

// Error is a classified domain error.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Fields   map[string]any
	Problems []string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the stable code, safe to export in traces.
func (e *Error) ErrorCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e carrying message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	clone := e.clone()
	clone.Message = fmt.Sprintf(format, args...)
	return clone
}

// WithField returns a copy of e carrying an extra field.
func (e *Error) WithField(key string, value any) *Error {
	clone := e.clone()
	clone.Fields[key] = value
	return clone
}

// WithProblems returns a copy of e carrying the given problem list.
func (e *Error) WithProblems(problems []string) *Error {
	clone := e.clone()
	clone.Problems = append([]string(nil), problems...)
	return clone
}

func (e *Error) clone() *Error {
	fields := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	return &Error{
		Kind:     e.Kind,
		Code:     e.Code,
		Message:  e.Message,
		Fields:   fields,
		Problems: append([]string(nil), e.Problems...),
	}
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error    { return newError(KindValidation, code, message) }
func Conflict(code, message string) *Error      { return newError(KindConflict, code, message) }
func Configuration(code, message string) *Error { return newError(KindConfiguration, code, message) }
func Integrity(code, message string) *Error     { return newError(KindIntegrity, code, message) }
func InvalidState(code, message string) *Error  { return newError(KindInvalidState, code, message) }
func NotFound(code, message string) *Error      { return newError(KindNotFound, code, message) }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

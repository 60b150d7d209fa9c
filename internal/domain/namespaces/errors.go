package namespaces

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is the stable taxonomy code surfaced to callers.
type ErrorCode string

const (
	CodeDuplicate     ErrorCode = "duplicate"
	CodeNotFound      ErrorCode = "not_found"
	CodeNotActive     ErrorCode = "not_active"
	CodeTooRecent     ErrorCode = "too_recent"
	CodeLockContended ErrorCode = "lock_contended"
	CodeProtected     ErrorCode = "protected"
	CodeMergeFailed   ErrorCode = "merge_failed"
	CodeValidation    ErrorCode = "validation"
	CodeRetryable     ErrorCode = "retryable"
	CodeInternal      ErrorCode = "internal"
)

// Error is the canonical orchestrator error. Two errors match under errors.Is when their codes match,
// so callers compare against the sentinels below.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Cause   error
}

var (
	ErrDuplicate     = &Error{Code: CodeDuplicate, Message: "namespace already exists"}
	ErrNotFound      = &Error{Code: CodeNotFound, Message: "not found"}
	ErrNotActive     = &Error{Code: CodeNotActive, Message: "namespace is not active"}
	ErrTooRecent     = &Error{Code: CodeTooRecent, Message: "merge triggered too recently"}
	ErrLockContended = &Error{Code: CodeLockContended, Message: "operation already in progress"}
	ErrProtected     = &Error{Code: CodeProtected, Message: "namespace is guardian protected"}
	ErrMergeFailed   = &Error{Code: CodeMergeFailed, Message: "merge computation failed"}
	ErrValidation    = &Error{Code: CodeValidation, Message: "invalid argument"}
	ErrRetryable     = &Error{Code: CodeRetryable, Message: "transient failure"}
	ErrInternal      = &Error{Code: CodeInternal, Message: "internal error"}
)

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	op := strings.TrimSpace(e.Op)
	msg := strings.TrimSpace(e.Message)
	switch {
	case op != "" && msg != "":
		return fmt.Sprintf("%s: %s (%s)", op, msg, e.Code)
	case op != "":
		return fmt.Sprintf("%s (%s)", op, e.Code)
	case msg != "":
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// NewError builds an error with explicit code + operation.
func NewError(code ErrorCode, op, message string, cause error) error {
	return &Error{
		Code:    code,
		Op:      strings.TrimSpace(op),
		Message: strings.TrimSpace(message),
		Cause:   cause,
	}
}

// Wrap annotates an existing error with a taxonomy code.
func Wrap(code ErrorCode, op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(code, op, err.Error(), err)
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the taxonomy code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// IsRetryable reports whether a caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case CodeLockContended, CodeRetryable:
		return true
	default:
		return false
	}
}

package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
)

type Error struct {
	Status    int
	Code      string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

var statusByCode = map[domain.ErrorCode]int{
	domain.CodeValidation:    http.StatusBadRequest,
	domain.CodeNotActive:     http.StatusBadRequest,
	domain.CodeTooRecent:     http.StatusBadRequest,
	domain.CodeNotFound:      http.StatusNotFound,
	domain.CodeDuplicate:     http.StatusConflict,
	domain.CodeProtected:     http.StatusConflict,
	domain.CodeLockContended: http.StatusConflict,
	domain.CodeMergeFailed:   http.StatusUnprocessableEntity,
	domain.CodeRetryable:     http.StatusServiceUnavailable,
	domain.CodeInternal:      http.StatusInternalServerError,
}

// FromDomain maps an orchestrator error onto a transport error. Errors outside the taxonomy are internal.
func FromDomain(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	code := domain.CodeOf(err)
	if code == "" {
		code = domain.CodeInternal
	}
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{Status: status, Code: string(code), Retryable: domain.IsRetryable(err), Err: err}
}

// MissingAsBadRequest is for commands addressed at an owner, where an unknown owner is a bad argument
// rather than a missing resource.
func (e *Error) MissingAsBadRequest() *Error {
	if e != nil && e.Code == string(domain.CodeNotFound) {
		e.Status = http.StatusBadRequest
	}
	return e
}

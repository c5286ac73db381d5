package apierr

import (
	"fmt"
	"net/http"
)

// Error codes from the error taxonomy: every terminal or rejected outcome
// the core produces is one of these, carrying the HTTP status it surfaces
// as when a caller hits the HTTP surface directly.
const (
	CodeValidationError           = "validation_error"
	CodeQueueFullError            = "queue_full"
	CodeScriptTemporarilyBlocked  = "script_temporarily_blocked"
	CodeBrowserUnavailable        = "browser_unavailable"
	CodeExecutionTimeout          = "execution_timeout"
	CodeExecutionError            = "execution_error"
	CodeWebhookTransient          = "webhook_transient"
	CodeNotFound                  = "not_found"
	CodeForbidden                 = "forbidden"
	CodeUnauthorized              = "unauthorized"
	CodeInternal                  = "internal_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
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

func ValidationError(err error) *Error {
	return New(http.StatusBadRequest, CodeValidationError, err)
}

func QueueFullError(err error) *Error {
	return New(http.StatusServiceUnavailable, CodeQueueFullError, err)
}

func ScriptTemporarilyBlocked(err error) *Error {
	return New(http.StatusTooManyRequests, CodeScriptTemporarilyBlocked, err)
}

func BrowserUnavailable(err error) *Error {
	return New(http.StatusInternalServerError, CodeBrowserUnavailable, err)
}

func ExecutionTimeout(err error) *Error {
	return New(http.StatusInternalServerError, CodeExecutionTimeout, err)
}

func ExecutionError(err error) *Error {
	return New(http.StatusInternalServerError, CodeExecutionError, err)
}

func WebhookTransient(err error) *Error {
	return New(http.StatusBadGateway, CodeWebhookTransient, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func Forbidden(err error) *Error {
	return New(http.StatusForbidden, CodeForbidden, err)
}

func Unauthorized(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, CodeInternal, err)
}

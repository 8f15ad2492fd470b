// Package apperr defines the error taxonomy shared by the request path
// and the ingestion workers. Handlers map kinds to HTTP statuses; the
// LLM gateway uses the Retryable flag to decide whether a failed
// provider call may be attempted again.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindPayloadTooLarge   Kind = "payload_too_large"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindCorruptDocument   Kind = "corrupt_document"
	KindQuestionTooLong   Kind = "question_too_long"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindProvider          Kind = "provider_error"
	KindInvalidModel      Kind = "invalid_model"
	KindModelNotPulled    Kind = "model_not_pulled"
	KindDimensionMismatch Kind = "dimension_mismatch"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Transient marks a provider failure that may succeed on retry
// (network errors, timeouts, 5xx-equivalent responses).
func Transient(err error, format string, args ...any) *Error {
	return &Error{Kind: KindProvider, Message: fmt.Sprintf(format, args...), Err: err, Retryable: true}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

// UserMessage returns text safe to show an end user. Internal and
// provider errors are replaced with an opaque message so upstream
// payloads never leak.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong. Please try again later."
	}
	switch e.Kind {
	case KindInternal, KindProvider:
		return "Something went wrong. Please try again later."
	default:
		return e.Message
	}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidModel, KindQuestionTooLong, KindCorruptDocument, KindDimensionMismatch:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindProvider, KindModelNotPulled:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

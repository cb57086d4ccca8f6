package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures so callers can decide whether to retry, degrade or abandon.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation_error"
	KindStorageUnavailable  Kind = "storage_unavailable"
	KindCaptureFailed       Kind = "capture_failed"
	KindTranscriptionFailed Kind = "transcription_failed"
	KindAudioTooLarge       Kind = "audio_too_large"
	KindSummarizationFailed Kind = "summarization_failed"
	KindTimeout             Kind = "timeout"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

type Error struct {
	Kind   Kind
	Op     string
	Msg    string
	Detail string // diagnostic output from an external tool or engine
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.NotFound) works
// against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	NotFound            = &Error{Kind: KindNotFound}
	Validation          = &Error{Kind: KindValidation}
	StorageUnavailable  = &Error{Kind: KindStorageUnavailable}
	CaptureFailed       = &Error{Kind: KindCaptureFailed}
	TranscriptionFailed = &Error{Kind: KindTranscriptionFailed}
	AudioTooLarge       = &Error{Kind: KindAudioTooLarge}
	SummarizationFailed = &Error{Kind: KindSummarizationFailed}
	Timeout             = &Error{Kind: KindTimeout}
	Conflict            = &Error{Kind: KindConflict}
)

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}

// DetailOf returns the diagnostic detail attached to err, if any.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// FromContext converts a deadline expiry on ctx into a Timeout error and
// otherwise wraps err with the given kind.
func FromContext(ctx context.Context, kind Kind, op string, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindAudioTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case KindCaptureFailed, KindTranscriptionFailed, KindSummarizationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies every failure a composite run can end with.
type Kind string

const (
	KindAcquisitionFailed Kind = "acquisition_failed"
	KindTransport         Kind = "transport_error"
	KindUpstream          Kind = "upstream_error"
	KindGenerationEmpty   Kind = "generation_empty"
	KindPersistenceFailed Kind = "persistence_failed"
	KindConfiguration     Kind = "configuration_error"
	KindInvalidRequest    Kind = "invalid_request"
	KindInternal          Kind = "internal_error"
)

var (
	ErrAcquisitionFailed = errors.New("acquisition failed")
	ErrTransport         = errors.New("upstream transport error")
	ErrUpstream          = errors.New("upstream error")
	ErrGenerationEmpty   = errors.New("generation returned no image")
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrConfiguration     = errors.New("configuration error")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNotFound          = errors.New("not found")
)

var kindSentinels = map[Kind]error{
	KindAcquisitionFailed: ErrAcquisitionFailed,
	KindTransport:         ErrTransport,
	KindUpstream:          ErrUpstream,
	KindGenerationEmpty:   ErrGenerationEmpty,
	KindPersistenceFailed: ErrPersistenceFailed,
	KindConfiguration:     ErrConfiguration,
	KindInvalidRequest:    ErrInvalidRequest,
}

// Error is the single error type surfaced by the composite pipeline.
// Source names the input for acquisition failures; Status and Body are
// populated for upstream failures.
type Error struct {
	Kind   Kind
	Source string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindAcquisitionFailed:
		if e.Err != nil {
			return fmt.Sprintf("acquire %s: %v", e.Source, e.Err)
		}
		return fmt.Sprintf("acquire %s failed", e.Source)
	case KindUpstream:
		body := strings.TrimSpace(e.Body)
		if body == "" {
			return fmt.Sprintf("upstream returned status %d", e.Status)
		}
		return fmt.Sprintf("upstream returned status %d: %s", e.Status, body)
	}
	sentinel := kindSentinels[e.Kind]
	prefix := string(e.Kind)
	if sentinel != nil {
		prefix = sentinel.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", prefix, e.Err)
	}
	return prefix
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func AcquisitionFailed(source string, cause error) *Error {
	return &Error{Kind: KindAcquisitionFailed, Source: source, Err: cause}
}

func TransportError(cause error) *Error {
	return &Error{Kind: KindTransport, Err: cause}
}

func UpstreamError(status int, body string) *Error {
	return &Error{Kind: KindUpstream, Status: status, Body: body}
}

func GenerationEmpty(reason string) *Error {
	var cause error
	if reason = strings.TrimSpace(reason); reason != "" {
		cause = errors.New(reason)
	}
	return &Error{Kind: KindGenerationEmpty, Err: cause}
}

func PersistenceFailed(cause error) *Error {
	return &Error{Kind: KindPersistenceFailed, Err: cause}
}

func ConfigurationError(msg string) *Error {
	return &Error{Kind: KindConfiguration, Err: errors.New(msg)}
}

func InvalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Err: errors.New(msg)}
}

// KindOf reports the kind carried by err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) && de != nil {
		return de.Kind
	}
	return KindInternal
}

// HTTPStatus maps a failure kind onto the status code of the error envelope.
// The table is fixed so a given kind always yields the same response.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindAcquisitionFailed, KindTransport, KindUpstream, KindGenerationEmpty:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

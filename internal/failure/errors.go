package failure

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind names the class of a processing failure.
type Kind string

const (
	KindInvalidFormat  Kind = "invalid_format"
	KindInvalidRequest Kind = "invalid_request"
	KindTooLarge       Kind = "too_large"
	KindStorage        Kind = "storage"
	KindExtraction     Kind = "extraction"
	KindClassification Kind = "classification"
	KindEncoding       Kind = "encoding"
	KindUnavailable    Kind = "unavailable"
	KindUnexpected     Kind = "unexpected"
)

// ErrModelNotLoaded is returned while the inference engine is still initializing.
var ErrModelNotLoaded = errors.New("model not loaded")

// Error carries the kind, the stage that produced it, and any diagnostic
// output captured from an external tool.
type Error struct {
	Kind       Kind
	Stage      string
	Operation  string
	Message    string
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, detail)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind satisfies the classifier contract used by KindOf.
func (e *Error) ErrorKind() string { return string(e.Kind) }

// Wrap builds a classified error. An empty kind is treated as KindUnexpected.
func Wrap(kind Kind, stage, operation, message string, err error) error {
	if kind == "" {
		kind = KindUnexpected
	}
	return &Error{
		Kind:      kind,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// WithDiagnostic attaches external tool output to a classified error. Errors
// that are not *Error are returned unchanged.
func WithDiagnostic(err error, diagnostic string) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return err
	}
	clone := *fe
	clone.Diagnostic = strings.TrimSpace(diagnostic)
	return &clone
}

// KindOf reports the kind of err, defaulting to KindUnexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var classifier interface{ ErrorKind() string }
	if errors.As(err, &classifier) {
		if kind := Kind(classifier.ErrorKind()); kind != "" {
			return kind
		}
	}
	if errors.Is(err, ErrModelNotLoaded) {
		return KindUnavailable
	}
	return KindUnexpected
}

// StageOf returns the stage recorded on a classified error, if any.
func StageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Stage
	}
	return ""
}

// DiagnosticOf returns captured tool output recorded on a classified error.
func DiagnosticOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Diagnostic
	}
	return ""
}

// HTTPStatus maps a kind onto the response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidFormat, KindInvalidRequest:
		return http.StatusBadRequest
	case KindTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicDetail returns the caller-facing message for err. Validation errors
// keep their message; later-stage failures only name the stage that failed.
func PublicDetail(err error) string {
	if err == nil {
		return ""
	}
	kind := KindOf(err)
	switch kind {
	case KindInvalidFormat, KindInvalidRequest, KindTooLarge:
		var fe *Error
		if errors.As(err, &fe) && fe.Message != "" {
			return fe.Message
		}
		return "invalid request"
	case KindStorage:
		return "failed to store uploaded video"
	case KindExtraction:
		return "failed to extract frame from video"
	case KindClassification:
		return "failed to classify extracted frame"
	case KindEncoding:
		return "failed to encode thumbnail"
	case KindUnavailable:
		return "model not loaded"
	default:
		return "internal processing error"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "processing failure"
	}
	return strings.Join(parts, ": ")
}

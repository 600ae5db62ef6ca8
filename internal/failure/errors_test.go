package failure_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"vidisnap/internal/failure"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := failure.Wrap(failure.KindExtraction, "extract", "ffmpeg", "exit status 1", base)
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	if kind := failure.KindOf(err); kind != failure.KindExtraction {
		t.Fatalf("expected extraction kind, got %s", kind)
	}
	msg := err.Error()
	for _, fragment := range []string{"extract", "ffmpeg", "exit status 1", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindOfSurvivesFurtherWrapping(t *testing.T) {
	inner := failure.Wrap(failure.KindStorage, "store", "write", "disk full", nil)
	outer := fmt.Errorf("process upload: %w", inner)
	if kind := failure.KindOf(outer); kind != failure.KindStorage {
		t.Fatalf("expected storage kind, got %s", kind)
	}
	if stage := failure.StageOf(outer); stage != "store" {
		t.Fatalf("expected stage store, got %q", stage)
	}
}

func TestKindOfDefaults(t *testing.T) {
	if kind := failure.KindOf(nil); kind != "" {
		t.Fatalf("expected empty kind for nil, got %s", kind)
	}
	if kind := failure.KindOf(errors.New("plain")); kind != failure.KindUnexpected {
		t.Fatalf("expected unexpected kind, got %s", kind)
	}
	if kind := failure.KindOf(failure.ErrModelNotLoaded); kind != failure.KindUnavailable {
		t.Fatalf("expected unavailable kind, got %s", kind)
	}
	if kind := failure.KindOf(failure.Wrap("", "x", "", "", nil)); kind != failure.KindUnexpected {
		t.Fatalf("expected empty kind to default to unexpected, got %s", kind)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind failure.Kind
		want int
	}{
		{failure.KindInvalidFormat, http.StatusBadRequest},
		{failure.KindInvalidRequest, http.StatusBadRequest},
		{failure.KindStorage, http.StatusInternalServerError},
		{failure.KindExtraction, http.StatusInternalServerError},
		{failure.KindClassification, http.StatusInternalServerError},
		{failure.KindEncoding, http.StatusInternalServerError},
		{failure.KindUnexpected, http.StatusInternalServerError},
		{failure.KindUnavailable, http.StatusServiceUnavailable},
		{failure.KindTooLarge, http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		if got := failure.HTTPStatus(tc.kind); got != tc.want {
			t.Errorf("kind %s: expected %d, got %d", tc.kind, tc.want, got)
		}
	}
}

func TestPublicDetailIsSanitized(t *testing.T) {
	err := failure.Wrap(failure.KindExtraction, "extract", "ffmpeg", "exit status 1", errors.New("/tmp/secret/path.mp4: Invalid data"))
	err = failure.WithDiagnostic(err, "moov atom not found")
	detail := failure.PublicDetail(err)
	if strings.Contains(detail, "/tmp") || strings.Contains(detail, "moov") {
		t.Fatalf("expected sanitized detail, got %q", detail)
	}
	if !strings.Contains(detail, "extract") {
		t.Fatalf("expected detail to name the failing stage, got %q", detail)
	}
	if diag := failure.DiagnosticOf(err); diag != "moov atom not found" {
		t.Fatalf("expected diagnostic to be retained, got %q", diag)
	}

	validation := failure.Wrap(failure.KindInvalidFormat, "validate", "", "unsupported extension \".gif\"", nil)
	if got := failure.PublicDetail(validation); got != "unsupported extension \".gif\"" {
		t.Fatalf("expected validation message passthrough, got %q", got)
	}
}

func TestWithDiagnosticIgnoresUnclassified(t *testing.T) {
	plain := errors.New("plain")
	if got := failure.WithDiagnostic(plain, "ignored"); got != plain {
		t.Fatalf("expected unclassified error to be returned unchanged")
	}
}

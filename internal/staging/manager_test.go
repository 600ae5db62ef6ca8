package staging

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidisnap/internal/failure"
	"vidisnap/internal/logging"
)

type failingReader struct{ after int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := min(len(p), r.after)
	for i := range n {
		p[i] = 'x'
	}
	r.after -= n
	return n, nil
}

func TestStoreWritesUnderToken(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, logging.NewNop())
	token := NewToken()

	video, err := m.Store(context.Background(), token, strings.NewReader("payload"), ".MP4")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if video.Kind != KindVideo {
		t.Fatalf("expected video kind, got %q", video.Kind)
	}
	if want := filepath.Join(dir, token+"-video.mp4"); video.Path != want {
		t.Fatalf("expected path %q, got %q", want, video.Path)
	}
	data, err := os.ReadFile(video.Path)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected stored content %q (%v)", data, err)
	}

	frame := m.FramePath(video)
	if frame.Kind != KindFrame || frame.Token != token {
		t.Fatalf("unexpected frame artifact: %+v", frame)
	}
	if want := filepath.Join(dir, token+"-frame.jpg"); frame.Path != want {
		t.Fatalf("expected frame path %q, got %q", want, frame.Path)
	}
}

func TestStoreIdenticalFilenamesDoNotCollide(t *testing.T) {
	m := NewManager(t.TempDir(), logging.NewNop())
	a, err := m.Store(context.Background(), NewToken(), strings.NewReader("a"), ".mp4")
	if err != nil {
		t.Fatalf("Store a: %v", err)
	}
	b, err := m.Store(context.Background(), NewToken(), strings.NewReader("b"), ".mp4")
	if err != nil {
		t.Fatalf("Store b: %v", err)
	}
	if a.Path == b.Path {
		t.Fatalf("expected distinct paths, both %q", a.Path)
	}
}

func TestStoreRemovesPartialFileOnReadError(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, logging.NewNop())

	_, err := m.Store(context.Background(), NewToken(), &failingReader{after: 10}, ".mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := failure.KindOf(err); kind != failure.KindStorage {
		t.Fatalf("expected storage kind, got %q", kind)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no leftover files, found %d", len(entries))
	}
}

func TestStoreFailsWhenDirectoryMissing(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "gone"), logging.NewNop())
	_, err := m.Store(context.Background(), NewToken(), strings.NewReader("x"), ".mp4")
	if failure.KindOf(err) != failure.KindStorage {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestStoreRejectsInvalidToken(t *testing.T) {
	m := NewManager(t.TempDir(), logging.NewNop())
	_, err := m.Store(context.Background(), "../escape", strings.NewReader("x"), ".mp4")
	if failure.KindOf(err) != failure.KindStorage {
		t.Fatalf("expected storage failure, got %v", err)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, logging.NewNop())
	video, err := m.Store(context.Background(), NewToken(), strings.NewReader("v"), ".mkv")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	frame := m.FramePath(video)
	if err := os.WriteFile(frame.Path, []byte("f"), 0o600); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	m.Cleanup(video, frame)
	m.Cleanup(video, frame)
	m.Cleanup(Artifact{})

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected empty staging dir, found %d entries", len(entries))
	}
	if m.CleanupFailures() != 0 {
		t.Fatalf("expected no cleanup failures, got %d", m.CleanupFailures())
	}
}

func TestCleanupToleratesPartialCompletion(t *testing.T) {
	m := NewManager(t.TempDir(), logging.NewNop())
	video, err := m.Store(context.Background(), NewToken(), strings.NewReader("v"), ".mp4")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	// Frame was never extracted.
	m.Cleanup(video, m.FramePath(video))
	if _, err := os.Stat(video.Path); !os.IsNotExist(err) {
		t.Fatal("expected video removed")
	}
}

func TestCleanupCountsFailures(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, logging.NewNop())
	nonEmpty := filepath.Join(dir, "blocked")
	if err := os.MkdirAll(filepath.Join(nonEmpty, "child"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	m.Cleanup(Artifact{Path: nonEmpty, Kind: KindFrame})
	if m.CleanupFailures() != 1 {
		t.Fatalf("expected 1 cleanup failure, got %d", m.CleanupFailures())
	}
}

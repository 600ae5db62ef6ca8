package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"vidisnap/internal/logging"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("test"), 0o644); err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("set time on %s: %v", path, err)
	}
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldArtifacts(t *testing.T) {
	tmpDir := t.TempDir()
	token := uuid.NewString()

	oldVideo := filepath.Join(tmpDir, token+"-video.mp4")
	oldFrame := filepath.Join(tmpDir, token+"-frame.jpg")
	writeAged(t, oldVideo, 2*time.Hour)
	writeAged(t, oldFrame, 2*time.Hour)

	recent := filepath.Join(tmpDir, uuid.NewString()+"-video.mkv")
	writeAged(t, recent, time.Minute)

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())

	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed, got %d (%v)", len(result.Removed), result.Removed)
	}
	for _, path := range []string{oldVideo, oldFrame} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", path)
		}
	}
	if _, err := os.Stat(recent); err != nil {
		t.Error("recent artifact should still exist")
	}
}

func TestCleanStaleIgnoresForeignFiles(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{".vidisnap.lock", "notes.txt", "clip.mp4", "frame_clip.mp4.jpg"} {
		writeAged(t, filepath.Join(tmpDir, name), 5*time.Hour)
	}
	if err := os.Mkdir(filepath.Join(tmpDir, uuid.NewString()+"-video"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	result := CleanStale(context.Background(), tmpDir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected no removals, got %v", result.Removed)
	}
}

func TestCleanStaleDisabledWithZeroAge(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, uuid.NewString()+"-frame.jpg")
	writeAged(t, path, 24*time.Hour)

	result := CleanStale(context.Background(), tmpDir, 0, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected sweep to be disabled, removed %v", result.Removed)
	}
}

func TestIsArtifactName(t *testing.T) {
	token := uuid.NewString()
	tests := []struct {
		name string
		want bool
	}{
		{token + "-video.mp4", true},
		{token + "-video", true},
		{token + "-frame.jpg", true},
		{token + "-frame.png", false},
		{token, false},
		{"clip.mp4", false},
		{"not-a-uuid-but-thirty-six-chars-long-video.mp4", false},
	}
	for _, tc := range tests {
		if got := IsArtifactName(tc.name); got != tc.want {
			t.Errorf("IsArtifactName(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMeasure(t *testing.T) {
	tmpDir := t.TempDir()
	writeAged(t, filepath.Join(tmpDir, uuid.NewString()+"-video.mp4"), time.Hour)
	writeAged(t, filepath.Join(tmpDir, uuid.NewString()+"-frame.jpg"), time.Minute)
	writeAged(t, filepath.Join(tmpDir, "other.txt"), time.Hour)

	usage, err := Measure(tmpDir)
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if usage.Files != 2 {
		t.Fatalf("expected 2 artifacts, got %d", usage.Files)
	}
	if usage.Bytes != 8 {
		t.Fatalf("expected 8 bytes, got %d", usage.Bytes)
	}
	if time.Since(usage.Oldest) < 50*time.Minute {
		t.Fatalf("expected oldest to be about an hour ago, got %v", usage.Oldest)
	}

	missing, err := Measure(filepath.Join(tmpDir, "missing"))
	if err != nil || missing.Files != 0 {
		t.Fatalf("expected empty usage for missing dir, got %+v, %v", missing, err)
	}
}

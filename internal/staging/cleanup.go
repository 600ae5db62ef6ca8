package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidisnap/internal/logging"
)

// CleanStaleResult contains the outcome of a stale artifact sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a file path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes request artifacts older than maxAge. Files that do not
// look like artifacts (the lock file, anything an operator dropped in) are
// left alone. A non-positive maxAge disables the sweep.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" || maxAge <= 0 {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.Type().IsRegular() || !IsArtifactName(entry.Name()) {
			continue
		}

		path := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale artifact",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale artifact",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}

	return result
}

// IsArtifactName reports whether name follows the <token>-video<ext> or
// <token>-frame.jpg layout used by Manager.
func IsArtifactName(name string) bool {
	if len(name) <= 36 {
		return false
	}
	if _, err := uuid.Parse(name[:36]); err != nil {
		return false
	}
	rest := name[36:]
	return rest == frameSuffix || strings.HasPrefix(rest, videoSuffix)
}

// Usage summarizes the artifacts currently present in the staging directory.
type Usage struct {
	Files  int
	Bytes  int64
	Oldest time.Time
}

// Measure returns the current artifact usage of stagingDir.
func Measure(stagingDir string) (Usage, error) {
	var usage Usage
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return usage, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return usage, nil
		}
		return usage, err
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() || !IsArtifactName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		usage.Files++
		usage.Bytes += info.Size()
		if usage.Oldest.IsZero() || info.ModTime().Before(usage.Oldest) {
			usage.Oldest = info.ModTime()
		}
	}
	return usage, nil
}

package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"vidisnap/internal/failure"
	"vidisnap/internal/logging"
)

// Kind identifies what an artifact holds.
type Kind string

const (
	KindVideo Kind = "video"
	KindFrame Kind = "frame"
)

const (
	videoSuffix = "-video"
	frameSuffix = "-frame.jpg"
)

// Artifact is a file created on behalf of one request.
type Artifact struct {
	Token string
	Path  string
	Kind  Kind
}

// Manager writes and removes request artifacts inside a single directory.
type Manager struct {
	dir      string
	logger   *slog.Logger
	failures atomic.Int64
}

// NewManager returns a manager rooted at dir. The directory must already exist.
func NewManager(dir string, logger *slog.Logger) *Manager {
	return &Manager{
		dir:    filepath.Clean(dir),
		logger: logging.NewComponentLogger(logger, "staging"),
	}
}

// Dir returns the staging directory.
func (m *Manager) Dir() string { return m.dir }

// NewToken returns a fresh request-scoped token.
func NewToken() string { return uuid.NewString() }

// Store streams body into a new video artifact named by token. Partial files
// are removed before an error is returned.
func (m *Manager) Store(ctx context.Context, token string, body io.Reader, ext string) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, failure.Wrap(failure.KindStorage, "store", "write upload", "request cancelled", err)
	}
	if _, err := uuid.Parse(token); err != nil {
		return Artifact{}, failure.Wrap(failure.KindStorage, "store", "write upload", "invalid artifact token", err)
	}
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	artifact := Artifact{
		Token: token,
		Path:  filepath.Join(m.dir, token+videoSuffix+ext),
		Kind:  KindVideo,
	}

	file, err := os.OpenFile(artifact.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return Artifact{}, failure.Wrap(failure.KindStorage, "store", "create file", "", err)
	}
	written, copyErr := io.Copy(file, body)
	closeErr := file.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		m.Cleanup(artifact)
		return Artifact{}, failure.Wrap(failure.KindStorage, "store", "write upload", "", copyErr)
	}

	m.logger.Debug("stored upload",
		logging.String("path", artifact.Path),
		logging.Int64("bytes", written),
	)
	return artifact, nil
}

// FramePath returns the frame artifact that belongs to the same request as video.
func (m *Manager) FramePath(video Artifact) Artifact {
	return Artifact{
		Token: video.Token,
		Path:  filepath.Join(m.dir, video.Token+frameSuffix),
		Kind:  KindFrame,
	}
}

// Cleanup removes every artifact that is present. Missing files are ignored,
// so calling it again with the same artifacts is a no-op.
func (m *Manager) Cleanup(artifacts ...Artifact) {
	for _, artifact := range artifacts {
		if strings.TrimSpace(artifact.Path) == "" {
			continue
		}
		if err := os.Remove(artifact.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			m.failures.Add(1)
			logging.WarnWithContext(m.logger, "failed to remove request artifact", "artifact_cleanup_failed",
				logging.String("path", artifact.Path),
				logging.String("artifact_kind", string(artifact.Kind)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed until the next stale sweep"),
			)
			continue
		}
		m.logger.Debug("removed request artifact",
			logging.String("path", artifact.Path),
			logging.String("artifact_kind", string(artifact.Kind)),
		)
	}
}

// CleanupFailures reports how many artifact removals have failed since start.
func (m *Manager) CleanupFailures() int64 { return m.failures.Load() }

// String is used in log lines.
func (a Artifact) String() string {
	return fmt.Sprintf("%s:%s", a.Kind, filepath.Base(a.Path))
}

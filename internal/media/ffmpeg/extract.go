package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"vidisnap/internal/failure"
	"vidisnap/internal/logging"
)

const maxDiagnosticBytes = 2048

// Extractor runs ffmpeg to pull still frames out of uploaded videos.
type Extractor struct {
	binary string
	logger *slog.Logger
}

// NewExtractor returns an extractor that executes binary (defaults to "ffmpeg").
func NewExtractor(binary string, logger *slog.Logger) *Extractor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Extractor{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Binary returns the executable the extractor invokes.
func (e *Extractor) Binary() string { return e.binary }

// Args returns the ffmpeg argument list used to extract the first frame.
func Args(videoPath, framePath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-v", "error",
		"-i", videoPath,
		"-vf", `select=eq(n\,0)`,
		"-frames:v", "1",
		"-y",
		framePath,
	}
}

// ExtractFirstFrame writes frame 0 of videoPath to framePath as a JPEG.
func (e *Extractor) ExtractFirstFrame(ctx context.Context, videoPath, framePath string) error {
	videoPath = strings.TrimSpace(videoPath)
	framePath = strings.TrimSpace(framePath)
	if videoPath == "" || framePath == "" {
		return failure.Wrap(failure.KindExtraction, "extract", "ffmpeg", "empty input or output path", nil)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.binary, Args(videoPath, framePath)...)
	output, err := cmd.CombinedOutput()
	diagnostic := truncate(output)
	if err != nil {
		var exitErr *exec.ExitError
		message := "ffmpeg failed"
		if errors.As(err, &exitErr) {
			message = fmt.Sprintf("ffmpeg exited with status %d", exitErr.ExitCode())
		}
		return failure.WithDiagnostic(
			failure.Wrap(failure.KindExtraction, "extract", "ffmpeg", message, err),
			diagnostic,
		)
	}

	info, statErr := os.Stat(framePath)
	switch {
	case statErr != nil:
		return failure.WithDiagnostic(
			failure.Wrap(failure.KindExtraction, "extract", "ffmpeg", "ffmpeg produced no frame", statErr),
			diagnostic,
		)
	case info.Size() == 0:
		return failure.WithDiagnostic(
			failure.Wrap(failure.KindExtraction, "extract", "ffmpeg", "ffmpeg produced an empty frame", nil),
			diagnostic,
		)
	}

	e.logger.Debug("extracted first frame",
		logging.String("frame", framePath),
		logging.Int64("bytes", info.Size()),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func truncate(output []byte) string {
	output = bytes.TrimSpace(output)
	if len(output) > maxDiagnosticBytes {
		output = append([]byte("..."), output[len(output)-maxDiagnosticBytes:]...)
	}
	return string(output)
}

// Version runs `ffmpeg -version` and returns its first line.
func Version(ctx context.Context, binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	output, err := exec.CommandContext(ctx, binary, "-hide_banner", "-version").Output()
	if err != nil {
		return "", fmt.Errorf("ffmpeg version: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	return strings.TrimSpace(line), nil
}

package preflight

import (
	"context"
	"time"

	"vidisnap/internal/deps"
	"vidisnap/internal/media/ffmpeg"
)

// CheckFFmpeg resolves the ffmpeg binary and reports its version string.
func CheckFFmpeg(ctx context.Context, binary string) Result {
	const name = "FFmpeg"

	status := deps.CheckFFmpeg(binary)
	if !status.Available {
		return Result{Name: name, Detail: status.Detail}
	}

	versionCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	version, err := ffmpeg.Version(versionCtx, status.Resolved)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if version == "" {
		version = status.Resolved
	}
	return Result{Name: name, Passed: true, Detail: version}
}

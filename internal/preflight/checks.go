package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"vidisnap/internal/config"
	"vidisnap/internal/deps"
	"vidisnap/internal/inference"
	"vidisnap/internal/inference/kserve"
)

const modelCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minMiB
// available. A zero minimum only reports the current figure.
func CheckFreeSpace(name, path string, minMiB int64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := fmt.Sprintf("%s free", humanize.IBytes(free))
	if minMiB > 0 {
		required := uint64(minMiB) << 20
		if free < required {
			return Result{Name: name, Detail: fmt.Sprintf("%s (below %s minimum)", detail, humanize.IBytes(required))}
		}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckLabels verifies the label file parses.
func CheckLabels(path string) Result {
	const name = "Labels"
	labels, err := inference.LoadLabels(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d classes from %s", len(labels), path)}
}

// CheckModelServer verifies the inference server is live and the configured
// model reports ready.
func CheckModelServer(ctx context.Context, cfg *config.Config) Result {
	const name = "Model server"

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	client := kserve.NewClient(kserve.Config{
		BaseURL:        cfg.Model.ServerURL,
		Model:          cfg.Model.Name,
		Version:        cfg.Model.Version,
		TimeoutSeconds: int(modelCheckTimeout / time.Second),
	})
	if err := client.Live(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeModelError(cfg.Model.ServerURL, err)}
	}
	if err := client.Ready(checkCtx); err != nil {
		if code := kserve.StatusCode(err); code != 0 {
			return Result{Name: name, Detail: fmt.Sprintf("model %q not ready (%d)", cfg.Model.Name, code)}
		}
		return Result{Name: name, Detail: summarizeModelError(cfg.Model.ServerURL, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("model %q ready at %s", cfg.Model.Name, cfg.Model.ServerURL)}
}

// CheckSystemDeps evaluates the binaries the service shells out to. Both the
// daemon and the CLI status command use this list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return []deps.Status{deps.CheckFFmpeg(cfg.FFmpegBinary())}
}

func summarizeModelError(url string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("%s timed out", url)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("%s unreachable (timeout)", url)
	}
	return fmt.Sprintf("%s unreachable (%v)", url, err)
}

package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"vidisnap/internal/config"
	"vidisnap/internal/daemon"
	"vidisnap/internal/deps"
	"vidisnap/internal/history"
	"vidisnap/internal/logging"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	Version  string
}

// Run starts the vidisnap daemon and blocks until SIGINT/SIGTERM or until
// the model fails to load.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runCfg := *cfg
	if opts.LogLevel != "" {
		runCfg.Logging.Level = opts.LogLevel
	}
	if err := runCfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	logger, err := logging.NewFromConfig(&runCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, &runCfg)
	pidPath := filepath.Join(runCfg.Paths.LogDir, "vidisnap.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var store *history.Store
	if runCfg.History.Enabled {
		store, err = history.Open(runCfg.HistoryPath())
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		if removed, err := store.Prune(signalCtx, runCfg.History.Retain); err != nil {
			logging.WarnWithContext(logger, "history prune failed", "history_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "history keeps growing until the next restart"),
			)
		} else if removed > 0 {
			logger.Info("history pruned", logging.Int64("removed", removed))
		}
	}

	stack, err := NewStack(&runCfg, logger, store)
	if err != nil {
		closeStore(store)
		return fmt.Errorf("build pipeline: %w", err)
	}
	d, err := daemon.New(daemon.Options{
		Config:   &runCfg,
		Logger:   logger,
		Pipeline: stack.Pipeline,
		Holder:   stack.Holder,
		Backend:  stack.Backend,
		Staging:  stack.Staging,
		Metrics:  stack.Metrics,
		History:  store,
		Pools:    stack.Pools,
		Version:  opts.Version,
	})
	if err != nil {
		closeStore(store)
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	loadErr := make(chan error, 1)
	go func() { loadErr <- d.LoadModel(signalCtx) }()

	select {
	case err := <-loadErr:
		if err != nil && signalCtx.Err() == nil {
			return fmt.Errorf("load model: %w", err)
		}
		<-signalCtx.Done()
	case <-signalCtx.Done():
	}

	logger.Info("vidisnap daemon shutting down")
	return nil
}

func closeStore(store *history.Store) {
	if store != nil {
		_ = store.Close()
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := deps.CheckFFmpeg(cfg.FFmpegBinary())
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", ffmpeg.Available),
		logging.String("ffmpeg_binary", ffmpeg.Command),
		logging.String("model_server", cfg.Model.ServerURL),
		logging.String("model", cfg.Model.Name),
		logging.String("staging_dir", cfg.Paths.StagingDir),
		logging.Bool("history_enabled", cfg.History.Enabled),
	)
}

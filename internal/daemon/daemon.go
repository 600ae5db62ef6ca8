package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"vidisnap/internal/api"
	"vidisnap/internal/config"
	"vidisnap/internal/history"
	"vidisnap/internal/inference"
	"vidisnap/internal/logging"
	"vidisnap/internal/metrics"
	"vidisnap/internal/pipeline"
	"vidisnap/internal/preflight"
	"vidisnap/internal/staging"
	"vidisnap/internal/workpool"
)

const (
	defaultLoadTimeout   = 2 * time.Minute
	defaultRequestsLimit = 20
	maxRequestsLimit     = 500
)

// Options wires the daemon's collaborators. Config, Pipeline, Holder,
// Backend and Staging are required.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pipeline *pipeline.Orchestrator
	Holder   *inference.Holder
	Backend  inference.Backend
	Staging  *staging.Manager
	Metrics  *metrics.Metrics
	History  *history.Store
	Pools    []*workpool.Pool
	Version  string
	// ReadyPoll overrides how often LoadModel re-checks the model server.
	ReadyPoll time.Duration
}

// Daemon serves the HTTP API and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Orchestrator
	holder   *inference.Holder
	backend  inference.Backend
	staging  *staging.Manager
	metrics  *metrics.Metrics
	history  *history.Store
	pools    []*workpool.Pool
	version  string
	poll     time.Duration

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running   atomic.Bool
	startedAt time.Time

	mu        sync.RWMutex
	loadErr   error
	preflight []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Pipeline == nil || opts.Holder == nil || opts.Backend == nil || opts.Staging == nil {
		return nil, errors.New("daemon requires config, pipeline, holder, backend, and staging manager")
	}
	logger := logging.NewComponentLogger(opts.Logger, "daemon")
	lockPath := opts.Config.LockPath()
	d := &Daemon{
		cfg:      opts.Config,
		logger:   logger,
		pipeline: opts.Pipeline,
		holder:   opts.Holder,
		backend:  opts.Backend,
		staging:  opts.Staging,
		metrics:  opts.Metrics,
		history:  opts.History,
		pools:    opts.Pools,
		version:  opts.Version,
		poll:     opts.ReadyPoll,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(opts.Config.Paths.APIBind, d, logger)
	d.metrics.TrackPools(opts.Pools...)
	d.metrics.TrackCleanupFailures(opts.Staging.CleanupFailures)
	return d, nil
}

// Start acquires the daemon lock, sweeps stale artifacts, runs preflight
// checks and starts the HTTP listener. The model is loaded separately by
// LoadModel; until then /process answers 503.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another vidisnap daemon is already using %s", d.cfg.Paths.StagingDir)
	}

	maxAge := time.Duration(d.cfg.Staging.StaleAfterMinutes) * time.Minute
	staging.CleanStale(ctx, d.staging.Dir(), maxAge, d.logger)

	results := preflight.RunAll(ctx, d.cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "requests depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "run `vidisnap status` for details"),
		)
	}
	d.mu.Lock()
	d.preflight = results
	d.mu.Unlock()

	if err := d.api.start(ctx); err != nil {
		_ = d.lock.Unlock()
		return err
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("vidisnap daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.Addr()),
		logging.String("version", d.version),
	)
	return nil
}

// LoadModel waits for the model server and verifies the served model
// against the labels. Success flips the health endpoint to model_loaded.
func (d *Daemon) LoadModel(ctx context.Context) error {
	timeout := defaultLoadTimeout
	if d.cfg.Model.LoadTimeoutSeconds > 0 {
		timeout = time.Duration(d.cfg.Model.LoadTimeoutSeconds) * time.Second
	}
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	engine, err := inference.Load(loadCtx, inference.Options{
		LabelsPath: d.cfg.Model.LabelsPath,
		ImageSize:  d.cfg.Model.ImageSize,
		Mean:       d.cfg.Model.Mean,
		Std:        d.cfg.Model.Std,
		ReadyPoll:  d.poll,
		Logger:     d.logger,
	}, d.backend)

	d.mu.Lock()
	d.loadErr = err
	d.mu.Unlock()
	if err != nil {
		logging.ErrorWithContext(d.logger, "model load failed", "model_load_failed",
			logging.String("model", d.cfg.Model.Name),
			logging.String("server", d.cfg.Model.ServerURL),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the model server is running and serves the configured model"),
		)
		return err
	}
	d.holder.Set(engine)
	d.metrics.SetModelLoaded(true)
	return nil
}

// ModelLoaded reports whether classification requests can be served.
func (d *Daemon) ModelLoaded() bool {
	return d.holder.Loaded()
}

// Addr returns the bound listener address, or the configured bind before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Stop shuts down the HTTP listener and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("vidisnap daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.history != nil {
		return d.history.Close()
	}
	return nil
}

// Status aggregates runtime information for GET /status.
func (d *Daemon) Status(ctx context.Context) api.StatusResponse {
	model := api.ModelStatus{
		Name:   d.cfg.Model.Name,
		Server: d.cfg.Model.ServerURL,
	}
	if engine := d.holder.Engine(); engine != nil {
		model = api.FromModelMetadata(model, engine.Metadata(), engine.Classes())
	}

	d.mu.RLock()
	if d.loadErr != nil && !model.Loaded {
		model.LoadError = d.loadErr.Error()
	}
	checks := api.FromPreflight(d.preflight)
	d.mu.RUnlock()

	stats := make([]workpool.Stats, 0, len(d.pools))
	for _, pool := range d.pools {
		stats = append(stats, pool.Stats())
	}
	usage, usageErr := staging.Measure(d.staging.Dir())

	status := api.StatusResponse{
		Version:         d.version,
		PID:             os.Getpid(),
		Model:           model,
		Pools:           api.FromPoolStats(stats),
		Dependencies:    api.FromDependencies(preflight.CheckSystemDeps(d.cfg)),
		Preflight:       checks,
		Staging:         api.FromUsage(d.staging.Dir(), usage, usageErr),
		CleanupFailures: d.staging.CleanupFailures(),
	}
	if !d.startedAt.IsZero() {
		status.StartedAt = d.startedAt.UTC().Format(time.RFC3339)
		status.UptimeSeconds = int64(time.Since(d.startedAt).Seconds())
	}
	if d.history != nil {
		if summary, err := d.history.Summarize(ctx); err == nil {
			s := api.FromSummary(summary)
			status.History = &s
		} else {
			d.logger.Warn("history summary failed", logging.Error(err))
		}
	}
	return status
}

// errHistoryDisabled is returned by Requests when no history store is wired.
var errHistoryDisabled = errors.New("request history is disabled")

// Requests returns the most recent processed requests, newest first.
func (d *Daemon) Requests(ctx context.Context, limit int) (api.RequestsResponse, error) {
	if d.history == nil {
		return api.RequestsResponse{}, errHistoryDisabled
	}
	switch {
	case limit <= 0:
		limit = defaultRequestsLimit
	case limit > maxRequestsLimit:
		limit = maxRequestsLimit
	}
	records, err := d.history.Recent(ctx, limit)
	if err != nil {
		return api.RequestsResponse{}, fmt.Errorf("recent requests: %w", err)
	}
	summary, err := d.history.Summarize(ctx)
	if err != nil {
		return api.RequestsResponse{}, fmt.Errorf("summarize requests: %w", err)
	}
	return api.RequestsResponse{
		Requests: api.FromRecords(records),
		Summary:  api.FromSummary(summary),
	}, nil
}

package daemonrun

import (
	"fmt"
	"log/slog"

	"vidisnap/internal/config"
	"vidisnap/internal/history"
	"vidisnap/internal/inference"
	"vidisnap/internal/inference/kserve"
	"vidisnap/internal/media/ffmpeg"
	"vidisnap/internal/metrics"
	"vidisnap/internal/pipeline"
	"vidisnap/internal/staging"
	"vidisnap/internal/workpool"
)

// Stack holds the processing components shared by the daemon and the
// local classify command.
type Stack struct {
	Pipeline *pipeline.Orchestrator
	Holder   *inference.Holder
	Backend  *kserve.Client
	Staging  *staging.Manager
	Metrics  *metrics.Metrics
	Pools    []*workpool.Pool
}

// NewStack wires storage, extraction, the model client and the worker
// pools into a pipeline. The holder starts empty; callers load the model
// with LoadOptions and Holder.Set. store may be nil.
func NewStack(cfg *config.Config, logger *slog.Logger, store *history.Store) (*Stack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	manager := staging.NewManager(cfg.Paths.StagingDir, logger)
	holder := &inference.Holder{}
	backend := kserve.NewClient(kserve.Config{
		BaseURL:        cfg.Model.ServerURL,
		Model:          cfg.Model.Name,
		Version:        cfg.Model.Version,
		TimeoutSeconds: cfg.Model.RequestTimeoutSeconds,
	})
	extractPool := workpool.New("extraction", cfg.Workers.Extraction)
	inferencePool := workpool.New("inference", cfg.Workers.Inference)
	m := metrics.New()

	opts := pipeline.Options{
		Storage:       manager,
		Extractor:     ffmpeg.NewExtractor(cfg.FFmpegBinary(), logger),
		Classifier:    holder,
		ExtractPool:   extractPool,
		InferencePool: inferencePool,
		Metrics:       m,
		Logger:        logger,
	}
	// A nil *Store must not become a non-nil Recorder.
	if store != nil {
		opts.History = store
	}
	orch, err := pipeline.New(opts)
	if err != nil {
		return nil, err
	}
	return &Stack{
		Pipeline: orch,
		Holder:   holder,
		Backend:  backend,
		Staging:  manager,
		Metrics:  m,
		Pools:    []*workpool.Pool{extractPool, inferencePool},
	}, nil
}

// LoadOptions maps the [model] section onto inference load options.
func LoadOptions(cfg *config.Config, logger *slog.Logger) inference.Options {
	return inference.Options{
		LabelsPath: cfg.Model.LabelsPath,
		ImageSize:  cfg.Model.ImageSize,
		Mean:       cfg.Model.Mean,
		Std:        cfg.Model.Std,
		Logger:     logger,
	}
}

package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"vidisnap/internal/failure"
	"vidisnap/internal/logging"
)

const defaultReadyPoll = time.Second

// Options configures Load.
type Options struct {
	LabelsPath string
	ImageSize  int
	Mean       []float64
	Std        []float64
	// ReadyPoll is how often Load re-checks a backend that is not ready yet.
	ReadyPoll time.Duration
	Logger    *slog.Logger
}

// Engine is the loaded classifier. It is read-only after Load.
type Engine struct {
	backend  Backend
	labels   []string
	pre      Preprocessor
	metadata ModelMetadata
	input    string
	output   string
	logger   *slog.Logger
}

// Load waits for the backend, reads labels, and verifies that the served
// model matches them. Any error means the service must not accept traffic.
func Load(ctx context.Context, opts Options, backend Backend) (*Engine, error) {
	if backend == nil {
		return nil, errors.New("inference load: backend is nil")
	}
	logger := logging.NewComponentLogger(opts.Logger, "inference")

	pre, err := NewPreprocessor(opts.ImageSize, opts.Mean, opts.Std)
	if err != nil {
		return nil, fmt.Errorf("inference load: %w", err)
	}
	labels, err := LoadLabels(opts.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("inference load: %w", err)
	}

	start := time.Now()
	if err := waitReady(ctx, backend, opts.ReadyPoll, logger); err != nil {
		return nil, fmt.Errorf("inference load: %w", err)
	}
	meta, err := backend.Metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("inference load: model metadata: %w", err)
	}
	input, output, err := checkMetadata(meta, pre, len(labels))
	if err != nil {
		return nil, fmt.Errorf("inference load: %w", err)
	}

	logger.Info("model loaded",
		logging.String("model", meta.Name),
		logging.String("platform", meta.Platform),
		logging.Int("classes", len(labels)),
		logging.Int("image_size", pre.Size),
		logging.Duration("elapsed", time.Since(start)),
		logging.String(logging.FieldEventType, "model_loaded"),
	)

	return &Engine{
		backend:  backend,
		labels:   labels,
		pre:      pre,
		metadata: meta,
		input:    input,
		output:   output,
		logger:   logger,
	}, nil
}

func waitReady(ctx context.Context, backend Backend, poll time.Duration, logger *slog.Logger) error {
	if poll <= 0 {
		poll = defaultReadyPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	attempts := 0
	for {
		err := backend.Ready(ctx)
		if err == nil {
			return nil
		}
		attempts++
		if attempts == 1 || attempts%10 == 0 {
			logger.Info("waiting for model backend",
				logging.Int("attempt", attempts),
				logging.Error(err),
			)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("model backend not ready: %w (last error: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

// checkMetadata verifies the served model takes one NCHW FP32 image and emits
// one logit per label. Dynamic dimensions (-1) are accepted.
func checkMetadata(meta ModelMetadata, pre Preprocessor, classes int) (string, string, error) {
	if len(meta.Inputs) != 1 {
		return "", "", fmt.Errorf("model %q has %d inputs, want 1", meta.Name, len(meta.Inputs))
	}
	if len(meta.Outputs) == 0 {
		return "", "", fmt.Errorf("model %q reports no outputs", meta.Name)
	}
	in := meta.Inputs[0]
	if dt := strings.ToUpper(in.Datatype); dt != "" && dt != "FP32" {
		return "", "", fmt.Errorf("model input %q has datatype %s, want FP32", in.Name, in.Datatype)
	}
	if !shapeMatches(in.Shape, pre.Shape()) {
		return "", "", fmt.Errorf("model input %q has shape %v, want %v", in.Name, in.Shape, pre.Shape())
	}
	out := meta.Outputs[0]
	if len(out.Shape) == 0 {
		return "", "", fmt.Errorf("model output %q has no shape", out.Name)
	}
	if width := out.Shape[len(out.Shape)-1]; width >= 0 && width != int64(classes) {
		return "", "", fmt.Errorf("model output %q has %d classes but %d labels were loaded", out.Name, width, classes)
	}
	return in.Name, out.Name, nil
}

func shapeMatches(served, want []int64) bool {
	if len(served) != len(want) {
		return false
	}
	for i := range served {
		if served[i] >= 0 && served[i] != want[i] {
			return false
		}
	}
	return true
}

// Classify ranks the top labels for an encoded frame.
func (e *Engine) Classify(ctx context.Context, frame []byte) (Result, error) {
	img, err := Decode(frame)
	if err != nil {
		return nil, failure.Wrap(failure.KindClassification, "classify", "decode", "", err)
	}
	tensor := Tensor{
		Name:  e.input,
		Shape: e.pre.Shape(),
		Data:  e.pre.Tensor(img),
	}

	start := time.Now()
	logits, err := e.backend.Infer(ctx, tensor, e.output)
	if err != nil {
		return nil, failure.Wrap(failure.KindClassification, "classify", "infer", "", err)
	}
	if len(logits) != len(e.labels) {
		return nil, failure.Wrap(failure.KindClassification, "classify", "shape",
			fmt.Sprintf("got %d logits for %d labels", len(logits), len(e.labels)), nil)
	}
	for i, v := range logits {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, failure.Wrap(failure.KindClassification, "classify", "shape",
				fmt.Sprintf("logit %d is not finite", i), nil)
		}
	}

	result := Rank(logits, e.labels)
	e.logger.Debug("frame classified",
		logging.String("top_label", result[0].Label),
		logging.Float64("top_score", result[0].Score),
		logging.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// Metadata returns what the backend reported at load time.
func (e *Engine) Metadata() ModelMetadata { return e.metadata }

// Classes returns the number of labels the model distinguishes.
func (e *Engine) Classes() int { return len(e.labels) }

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"vidisnap/internal/failure"
	"vidisnap/internal/history"
	"vidisnap/internal/inference"
	"vidisnap/internal/logging"
	"vidisnap/internal/metrics"
	"vidisnap/internal/staging"
	"vidisnap/internal/upload"
	"vidisnap/internal/workpool"
)

// Storage persists uploads and removes request artifacts.
type Storage interface {
	Store(ctx context.Context, token string, body io.Reader, ext string) (staging.Artifact, error)
	FramePath(video staging.Artifact) staging.Artifact
	Cleanup(artifacts ...staging.Artifact)
}

// Extractor writes the first frame of a video to framePath.
type Extractor interface {
	ExtractFirstFrame(ctx context.Context, videoPath, framePath string) error
}

// Classifier ranks labels for an encoded frame.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (inference.Result, error)
}

// Recorder stores request outcomes.
type Recorder interface {
	Add(ctx context.Context, rec history.Record) (int64, error)
}

// Options wires the orchestrator's collaborators. Storage, Extractor and
// Classifier are required.
type Options struct {
	Storage       Storage
	Extractor     Extractor
	Classifier    Classifier
	ExtractPool   *workpool.Pool
	InferencePool *workpool.Pool
	Metrics       *metrics.Metrics
	History       Recorder
	Logger        *slog.Logger
	// Observer, when set, is called on every state transition.
	Observer func(requestID string, state State)
}

// Orchestrator sequences the pipeline stages for each request.
type Orchestrator struct {
	storage       Storage
	extractor     Extractor
	classifier    Classifier
	extractPool   *workpool.Pool
	inferencePool *workpool.Pool
	metrics       *metrics.Metrics
	history       Recorder
	logger        *slog.Logger
	observer      func(string, State)
}

// New validates opts and returns an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Storage == nil {
		return nil, errors.New("pipeline: storage is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("pipeline: extractor is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("pipeline: classifier is required")
	}
	if opts.ExtractPool == nil {
		opts.ExtractPool = workpool.New("extraction", 1)
	}
	if opts.InferencePool == nil {
		opts.InferencePool = workpool.New("inference", 1)
	}
	return &Orchestrator{
		storage:       opts.Storage,
		extractor:     opts.Extractor,
		classifier:    opts.Classifier,
		extractPool:   opts.ExtractPool,
		inferencePool: opts.InferencePool,
		metrics:       opts.Metrics,
		history:       opts.History,
		logger:        logging.NewComponentLogger(opts.Logger, "pipeline"),
		observer:      opts.Observer,
	}, nil
}

// Request is one upload to process.
type Request struct {
	ID    string
	Video upload.Video
}

// run tracks a single request through the state machine.
type run struct {
	o         *Orchestrator
	id        string
	logger    *slog.Logger
	state     State
	stage     string
	ext       string
	artifacts []staging.Artifact
	bytes     int64
	started   time.Time
}

func (r *run) advance(next State) {
	r.logger.Debug("state transition",
		logging.String("from", string(r.state)),
		logging.String("to", string(next)),
	)
	r.state = next
	if r.o.observer != nil {
		r.o.observer(r.id, next)
	}
}

// step runs fn as stage, timing it and classifying any error that is not
// already classified.
func (r *run) step(ctx context.Context, stage string, kind failure.Kind, fn func(context.Context) error) error {
	r.stage = stage
	start := time.Now()
	err := fn(logging.WithStage(ctx, stage))
	r.o.metrics.ObserveStage(stage, time.Since(start))
	if err == nil {
		return nil
	}
	var classified *failure.Error
	if !errors.As(err, &classified) {
		err = failure.Wrap(kind, stage, "", "", err)
	}
	return err
}

// Process runs req through every stage. The returned error is always
// classified with a failure.Kind.
func (o *Orchestrator) Process(ctx context.Context, req Request) (resp Response, err error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	ctx = logging.WithRequestID(ctx, id)
	r := &run{
		o:       o,
		id:      id,
		logger:  logging.WithContext(ctx, o.logger),
		state:   StateReceived,
		started: time.Now(),
	}
	if r.o.observer != nil {
		r.o.observer(r.id, StateReceived)
	}

	defer func() {
		o.storage.Cleanup(r.artifacts...)
		r.advance(StateCleanedUp)
		if err != nil {
			resp = Response{}
			r.advance(StateFailed)
		} else {
			r.advance(StateDone)
		}
		o.finish(ctx, r, err)
	}()
	defer func() {
		if rec := recover(); rec != nil {
			err = failure.Wrap(failure.KindUnexpected, r.stage, "panic", "", fmt.Errorf("%v", rec))
		}
	}()

	err = r.step(ctx, StageValidate, failure.KindInvalidFormat, func(context.Context) error {
		ext, verr := upload.Validate(req.Video.Filename)
		r.ext = ext
		return verr
	})
	if err != nil {
		return Response{}, err
	}
	if req.Video.Body == nil {
		return Response{}, failure.Wrap(failure.KindInvalidRequest, StageValidate, "read upload", "upload has no content", nil)
	}
	r.advance(StateValidated)

	var video staging.Artifact
	err = r.step(ctx, StageStore, failure.KindStorage, func(ctx context.Context) error {
		counter := &countingReader{r: req.Video.Body}
		stored, serr := o.storage.Store(ctx, staging.NewToken(), counter, r.ext)
		r.bytes = counter.n
		if serr != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(serr, &tooLarge) {
				return failure.Wrap(failure.KindTooLarge, StageStore, "read upload",
					fmt.Sprintf("upload exceeds the %s limit", humanize.IBytes(uint64(tooLarge.Limit))), serr)
			}
			return serr
		}
		video = stored
		r.artifacts = append(r.artifacts, stored)
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	o.metrics.ObserveUpload(r.bytes)
	r.advance(StateStored)

	frame := o.storage.FramePath(video)
	r.artifacts = append(r.artifacts, frame)
	err = r.step(ctx, StageExtract, failure.KindExtraction, func(ctx context.Context) error {
		return o.extractPool.Do(ctx, func(ctx context.Context) error {
			return o.extractor.ExtractFirstFrame(ctx, video.Path, frame.Path)
		})
	})
	if err != nil {
		return Response{}, err
	}
	r.advance(StateFrameExtracted)

	var labels inference.Result
	err = r.step(ctx, StageClassify, failure.KindClassification, func(ctx context.Context) error {
		data, rerr := os.ReadFile(frame.Path)
		if rerr != nil {
			return failure.Wrap(failure.KindClassification, StageClassify, "read frame", "", rerr)
		}
		result, cerr := workpool.Run(ctx, o.inferencePool, func(ctx context.Context) (inference.Result, error) {
			return o.classifier.Classify(ctx, data)
		})
		if cerr != nil {
			return cerr
		}
		if len(result) != inference.TopK {
			return failure.Wrap(failure.KindClassification, StageClassify, "rank",
				fmt.Sprintf("expected %d predictions, got %d", inference.TopK, len(result)), nil)
		}
		labels = result
		return nil
	})
	if err != nil {
		return Response{}, err
	}
	r.advance(StateClassified)

	err = r.step(ctx, StageAssemble, failure.KindEncoding, func(context.Context) error {
		assembled, aerr := Assemble(labels, frame)
		resp = assembled
		return aerr
	})
	if err != nil {
		return Response{}, err
	}
	r.advance(StateAssembled)
	return resp, nil
}

// finish logs the outcome at the boundary and records it.
func (o *Orchestrator) finish(ctx context.Context, r *run, err error) {
	elapsed := time.Since(r.started)
	rec := history.Record{
		RequestID:   r.id,
		Extension:   r.ext,
		UploadBytes: r.bytes,
		Outcome:     history.OutcomeSuccess,
		Status:      http.StatusOK,
		Duration:    elapsed,
	}

	if err == nil {
		r.logger.Info("request processed",
			logging.Int64("upload_bytes", r.bytes),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldEventType, "request_processed"),
		)
	} else {
		kind := failure.KindOf(err)
		rec.Outcome = history.OutcomeFailed
		rec.Kind = string(kind)
		rec.Stage = failure.StageOf(err)
		if rec.Stage == "" {
			rec.Stage = r.stage
		}
		rec.Status = failure.HTTPStatus(kind)

		attrs := []logging.Attr{
			logging.String(logging.FieldStage, rec.Stage),
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Error(err),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, hintFor(kind)),
		}
		if diag := failure.DiagnosticOf(err); diag != "" {
			attrs = append(attrs, logging.String("diagnostic", diag))
		}
		if rec.Status < http.StatusInternalServerError {
			attrs = append(attrs, logging.String(logging.FieldImpact, "request rejected"))
			logging.WarnWithContext(r.logger, "request rejected", "request_rejected", attrs...)
		} else {
			logging.ErrorWithContext(r.logger, "request failed", "request_failed", attrs...)
		}
	}

	o.metrics.ObserveRequest(rec.Outcome, rec.Kind, elapsed)
	if o.history != nil {
		if _, herr := o.history.Add(context.WithoutCancel(ctx), rec); herr != nil {
			logging.WarnWithContext(r.logger, "failed to record request history", "history_write_failed",
				logging.Error(herr),
				logging.String(logging.FieldErrorHint, "check log_dir permissions and free space"),
				logging.String(logging.FieldImpact, "request missing from history"),
			)
		}
	}
}

func hintFor(kind failure.Kind) string {
	switch kind {
	case failure.KindInvalidFormat, failure.KindInvalidRequest:
		return "client sent an unsupported upload"
	case failure.KindTooLarge:
		return "raise upload.max_bytes if larger videos are expected"
	case failure.KindStorage:
		return "check staging_dir permissions and free space"
	case failure.KindExtraction:
		return "inspect the ffmpeg diagnostic; the upload may be corrupt or use an unsupported codec"
	case failure.KindClassification:
		return "check the model server logs and model.labels_path"
	case failure.KindEncoding:
		return "frame disappeared before it could be encoded; check staging_dir"
	case failure.KindUnavailable:
		return "model is still loading; retry shortly"
	default:
		return "check logs for details"
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

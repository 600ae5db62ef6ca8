package pipeline_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"vidisnap/internal/failure"
	"vidisnap/internal/history"
	"vidisnap/internal/inference"
	"vidisnap/internal/logging"
	"vidisnap/internal/media/ffmpeg"
	"vidisnap/internal/pipeline"
	"vidisnap/internal/staging"
	"vidisnap/internal/testsupport"
	"vidisnap/internal/upload"
	"vidisnap/internal/workpool"
)

type countingStorage struct {
	*staging.Manager
	stores atomic.Int64
}

func (c *countingStorage) Store(ctx context.Context, token string, body io.Reader, ext string) (staging.Artifact, error) {
	c.stores.Add(1)
	return c.Manager.Store(ctx, token, body, ext)
}

type frameWriter struct {
	frame []byte
	calls atomic.Int64
}

func (f *frameWriter) ExtractFirstFrame(_ context.Context, _, framePath string) error {
	f.calls.Add(1)
	return os.WriteFile(framePath, f.frame, 0o600)
}

type fakeClassifier struct {
	result inference.Result
	err    error
	before func()
}

func (f *fakeClassifier) Classify(context.Context, []byte) (inference.Result, error) {
	if f.before != nil {
		f.before()
	}
	return f.result, f.err
}

type memoryHistory struct {
	mu      sync.Mutex
	records []history.Record
}

func (m *memoryHistory) Add(_ context.Context, rec history.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return int64(len(m.records)), nil
}

func (m *memoryHistory) last(t *testing.T) history.Record {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		t.Fatal("expected a history record")
	}
	return m.records[len(m.records)-1]
}

var threeLabels = inference.Result{
	{Label: "seashore", Score: 0.7},
	{Label: "volcano", Score: 0.2},
	{Label: "sports car", Score: 0.05},
}

type harness struct {
	dir     string
	storage *countingStorage
	hist    *memoryHistory
	mu      sync.Mutex
	states  map[string][]pipeline.State
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "staging")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir staging: %v", err)
	}
	return &harness{
		dir:     dir,
		storage: &countingStorage{Manager: staging.NewManager(dir, logging.NewNop())},
		hist:    &memoryHistory{},
		states:  map[string][]pipeline.State{},
	}
}

func (h *harness) orchestrator(t *testing.T, ext pipeline.Extractor, cls pipeline.Classifier) *pipeline.Orchestrator {
	t.Helper()
	o, err := pipeline.New(pipeline.Options{
		Storage:       h.storage,
		Extractor:     ext,
		Classifier:    cls,
		ExtractPool:   workpool.New("extraction", 2),
		InferencePool: workpool.New("inference", 2),
		History:       h.hist,
		Logger:        logging.NewNop(),
		Observer: func(id string, s pipeline.State) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.states[id] = append(h.states[id], s)
		},
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return o
}

func (h *harness) assertEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		t.Fatalf("read staging dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected no leftover artifacts, found %v", names)
	}
}

func (h *harness) trace(id string) []pipeline.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.states[id])
}

func request(id, name string, body []byte) pipeline.Request {
	return pipeline.Request{ID: id, Video: upload.Video{Filename: name, Body: bytes.NewReader(body)}}
}

func TestProcessSuccess(t *testing.T) {
	h := newHarness(t)
	frame := testsupport.JPEG(t, 64, 36)
	o := h.orchestrator(t, &frameWriter{frame: frame}, &fakeClassifier{result: threeLabels})

	resp, err := o.Process(context.Background(), request("req-a", "holiday.mp4", []byte("video-bytes")))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(resp.Labels) != 3 || resp.Labels[0].Label != "seashore" {
		t.Fatalf("unexpected labels %+v", resp.Labels)
	}
	decoded, err := base64.StdEncoding.DecodeString(resp.ThumbnailB64)
	if err != nil {
		t.Fatalf("thumbnail is not base64: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(decoded))
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if cfg.Width != 64 || cfg.Height != 36 {
		t.Fatalf("expected 64x36 thumbnail, got %dx%d", cfg.Width, cfg.Height)
	}
	h.assertEmpty(t)

	want := []pipeline.State{
		pipeline.StateReceived, pipeline.StateValidated, pipeline.StateStored,
		pipeline.StateFrameExtracted, pipeline.StateClassified, pipeline.StateAssembled,
		pipeline.StateCleanedUp, pipeline.StateDone,
	}
	if got := h.trace("req-a"); !slices.Equal(got, want) {
		t.Fatalf("unexpected transitions:\n got %v\nwant %v", got, want)
	}

	rec := h.hist.last(t)
	if rec.Outcome != history.OutcomeSuccess || rec.Status != http.StatusOK || rec.Extension != ".mp4" {
		t.Fatalf("unexpected history record %+v", rec)
	}
	if rec.UploadBytes != int64(len("video-bytes")) {
		t.Fatalf("expected upload bytes recorded, got %d", rec.UploadBytes)
	}
}

func TestProcessCorruptVideoFailsExtraction(t *testing.T) {
	h := newHarness(t)
	bin := testsupport.StubBinary(t, t.TempDir(), "ffmpeg",
		"echo '[mov,mp4] moov atom not found' >&2\necho 'Invalid data found when processing input' >&2\nexit 183\n")
	o := h.orchestrator(t, ffmpeg.NewExtractor(bin, logging.NewNop()), &fakeClassifier{result: threeLabels})

	_, err := o.Process(context.Background(), request("req-b", "clip.mp4", []byte("definitely not a video")))
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := failure.KindOf(err); kind != failure.KindExtraction {
		t.Fatalf("expected extraction failure, got %q (%v)", kind, err)
	}
	if status := failure.HTTPStatus(failure.KindOf(err)); status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if detail := failure.PublicDetail(err); strings.Contains(detail, "moov") {
		t.Fatalf("ffmpeg output must not leak into detail: %q", detail)
	}
	h.assertEmpty(t)

	trace := h.trace("req-b")
	if trace[len(trace)-1] != pipeline.StateFailed || !slices.Contains(trace, pipeline.StateCleanedUp) {
		t.Fatalf("expected cleanup then failed, got %v", trace)
	}
	if slices.Contains(trace, pipeline.StateFrameExtracted) {
		t.Fatalf("frame_extracted must not be reached, got %v", trace)
	}
	rec := h.hist.last(t)
	if rec.Kind != string(failure.KindExtraction) || rec.Stage != pipeline.StageExtract {
		t.Fatalf("unexpected history record %+v", rec)
	}
}

func TestProcessRejectsFormatBeforeStorage(t *testing.T) {
	h := newHarness(t)
	ext := &frameWriter{frame: testsupport.JPEG(t, 8, 8)}
	o := h.orchestrator(t, ext, &fakeClassifier{result: threeLabels})

	_, err := o.Process(context.Background(), request("req-c", "photo.gif", []byte("GIF89a")))
	if kind := failure.KindOf(err); kind != failure.KindInvalidFormat {
		t.Fatalf("expected invalid_format, got %q", kind)
	}
	if failure.HTTPStatus(failure.KindOf(err)) != http.StatusBadRequest {
		t.Fatal("expected 400")
	}
	if h.storage.stores.Load() != 0 {
		t.Fatal("storage must not be attempted for invalid formats")
	}
	if ext.calls.Load() != 0 {
		t.Fatal("extractor must not run for invalid formats")
	}
	h.assertEmpty(t)
	if rec := h.hist.last(t); rec.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 in history, got %d", rec.Status)
	}
}

func TestProcessStorageFailure(t *testing.T) {
	h := newHarness(t)
	if err := os.RemoveAll(h.dir); err != nil {
		t.Fatalf("remove staging: %v", err)
	}
	o := h.orchestrator(t, &frameWriter{frame: testsupport.JPEG(t, 8, 8)}, &fakeClassifier{result: threeLabels})

	_, err := o.Process(context.Background(), request("", "clip.mkv", []byte("x")))
	if kind := failure.KindOf(err); kind != failure.KindStorage {
		t.Fatalf("expected storage failure, got %q (%v)", kind, err)
	}
}

func TestProcessUploadTooLarge(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t, &frameWriter{frame: testsupport.JPEG(t, 8, 8)}, &fakeClassifier{result: threeLabels})

	body := http.MaxBytesReader(httptest.NewRecorder(), io.NopCloser(bytes.NewReader(make([]byte, 4096))), 1024)
	_, err := o.Process(context.Background(), pipeline.Request{Video: upload.Video{Filename: "big.webm", Body: body}})
	if kind := failure.KindOf(err); kind != failure.KindTooLarge {
		t.Fatalf("expected too_large, got %q (%v)", kind, err)
	}
	if !strings.Contains(failure.PublicDetail(err), "1.0 KiB") {
		t.Fatalf("expected limit in detail, got %q", failure.PublicDetail(err))
	}
	h.assertEmpty(t)
}

func TestProcessClassificationFailure(t *testing.T) {
	h := newHarness(t)
	cls := &fakeClassifier{err: failure.Wrap(failure.KindClassification, "classify", "infer", "", errors.New("backend down"))}
	o := h.orchestrator(t, &frameWriter{frame: testsupport.JPEG(t, 8, 8)}, cls)

	_, err := o.Process(context.Background(), request("req-d", "clip.avi", []byte("x")))
	if kind := failure.KindOf(err); kind != failure.KindClassification {
		t.Fatalf("expected classification failure, got %q", kind)
	}
	h.assertEmpty(t)
}

func TestProcessRejectsShortRanking(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t, &frameWriter{frame: testsupport.JPEG(t, 8, 8)}, &fakeClassifier{result: threeLabels[:2]})

	_, err := o.Process(context.Background(), request("", "clip.mov", []byte("x")))
	if kind := failure.KindOf(err); kind != failure.KindClassification {
		t.Fatalf("expected classification failure, got %q", kind)
	}
}

func TestProcessModelNotLoaded(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t, &frameWriter{frame: testsupport.JPEG(t, 8, 8)}, &inference.Holder{})

	_, err := o.Process(context.Background(), request("", "clip.flv", []byte("x")))
	if kind := failure.KindOf(err); kind != failure.KindUnavailable {
		t.Fatalf("expected unavailable, got %q", kind)
	}
	if failure.PublicDetail(err) != "model not loaded" {
		t.Fatalf("unexpected detail %q", failure.PublicDetail(err))
	}
	h.assertEmpty(t)
}

func TestProcessEncodingFailure(t *testing.T) {
	h := newHarness(t)
	cls := &fakeClassifier{result: threeLabels}
	cls.before = func() {
		entries, _ := os.ReadDir(h.dir)
		for _, e := range entries {
			if strings.HasSuffix(e.Name(), "-frame.jpg") {
				_ = os.Remove(filepath.Join(h.dir, e.Name()))
			}
		}
	}
	o := h.orchestrator(t, &frameWriter{frame: testsupport.JPEG(t, 8, 8)}, cls)

	_, err := o.Process(context.Background(), request("", "clip.wmv", []byte("x")))
	if kind := failure.KindOf(err); kind != failure.KindEncoding {
		t.Fatalf("expected encoding failure, got %q", kind)
	}
	h.assertEmpty(t)
}

func TestProcessRecoversPanics(t *testing.T) {
	h := newHarness(t)
	cls := &fakeClassifier{before: func() { panic("index out of range") }}
	o := h.orchestrator(t, &frameWriter{frame: testsupport.JPEG(t, 8, 8)}, cls)

	_, err := o.Process(context.Background(), request("req-p", "clip.mp4", []byte("x")))
	if kind := failure.KindOf(err); kind != failure.KindUnexpected {
		t.Fatalf("expected unexpected failure, got %q", kind)
	}
	if failure.PublicDetail(err) != "internal processing error" {
		t.Fatalf("unexpected detail %q", failure.PublicDetail(err))
	}
	h.assertEmpty(t)
	if trace := h.trace("req-p"); trace[len(trace)-1] != pipeline.StateFailed {
		t.Fatalf("expected failed terminal state, got %v", trace)
	}
}

func TestProcessConcurrentIdenticalFilenames(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator(t, &frameWriter{frame: testsupport.JPEG(t, 16, 16)}, &fakeClassifier{result: threeLabels})

	var wg sync.WaitGroup
	errs := make(chan error, 12)
	for range 12 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.Process(context.Background(), request("", "clip.mp4", []byte("same-name"))); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent request failed: %v", err)
	}
	h.assertEmpty(t)
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := pipeline.New(pipeline.Options{}); err == nil {
		t.Fatal("expected error without storage")
	}
}

func TestAssembleMissingFrame(t *testing.T) {
	_, err := pipeline.Assemble(threeLabels, staging.Artifact{Path: filepath.Join(t.TempDir(), "gone.jpg")})
	if failure.KindOf(err) != failure.KindEncoding {
		t.Fatalf("expected encoding failure, got %v", err)
	}
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vidisnap/internal/api"
	"vidisnap/internal/failure"
	"vidisnap/internal/history"
	"vidisnap/internal/logging"
	"vidisnap/internal/pipeline"
	"vidisnap/internal/upload"
)

// multipartOverhead is the slack allowed on top of the upload limit for
// part headers and boundaries.
const multipartOverhead = 1 << 20

const fileField = "file"

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logger,
		daemon: d,
	}
	// Processing has no deadline, so only header reads and idle
	// keep-alives are bounded.
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.exposeRequestID)
	r.Use(middleware.Recoverer)

	r.Post("/process", s.handleProcess)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/requests", s.handleRequests)
	if s.daemon.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.daemon.metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *apiServer) exposeRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := middleware.GetReqID(r.Context())

	if !s.daemon.ModelLoaded() {
		s.daemon.metrics.ObserveRequest(history.OutcomeFailed, string(failure.KindUnavailable), time.Since(start))
		s.writeError(w, http.StatusServiceUnavailable, failure.PublicDetail(failure.ErrModelNotLoaded))
		return
	}

	limit := s.daemon.cfg.Upload.MaxBytes
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "expected a multipart/form-data upload")
		return
	}

	var part io.ReadCloser
	var filename string
	for {
		p, err := reader.NextPart()
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				s.writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds the %s limit", humanize.IBytes(uint64(limit))))
			case errors.Is(err, io.EOF):
				s.writeError(w, http.StatusBadRequest, "no file uploaded in field \"file\"")
			default:
				s.writeError(w, http.StatusBadRequest, "malformed multipart upload")
			}
			return
		}
		if p.FormName() == fileField {
			part = p
			filename = p.FileName()
			break
		}
		_ = p.Close()
	}
	defer part.Close()

	var body io.Reader = part
	if limit > 0 {
		body = &limitedReader{r: part, limit: limit, remaining: limit}
	}

	resp, err := s.daemon.pipeline.Process(r.Context(), pipeline.Request{
		ID:    requestID,
		Video: upload.Video{Filename: filename, Body: body, Size: -1},
	})
	if err != nil {
		s.writeError(w, failure.HTTPStatus(failure.KindOf(err)), failure.PublicDetail(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromResponse(resp))
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:      api.HealthHealthy,
		ModelLoaded: s.daemon.ModelLoaded(),
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleRequests(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	resp, err := s.daemon.Requests(r.Context(), limit)
	if err != nil {
		if errors.Is(err, errHistoryDisabled) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("list requests failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to read request history")
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("api response encode failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, api.ErrorResponse{Detail: detail})
}

// limitedReader fails with *http.MaxBytesError once more than limit bytes
// have been read from the file part.
type limitedReader struct {
	r         io.Reader
	limit     int64
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, &http.MaxBytesError{Limit: l.limit}
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) <= l.remaining {
		l.remaining -= int64(n)
		return n, err
	}
	n = int(l.remaining)
	l.remaining = -1
	return n, &http.MaxBytesError{Limit: l.limit}
}

package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Health status values.
const (
	HealthHealthy = "healthy"
)

// Label is one ranked classification.
type Label struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ProcessResponse is the success body of POST /process.
type ProcessResponse struct {
	Labels       []Label `json:"labels"`
	ThumbnailB64 string  `json:"thumbnail_b64"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// ModelStatus describes the configured classifier.
type ModelStatus struct {
	Loaded    bool     `json:"loaded"`
	Name      string   `json:"name"`
	Server    string   `json:"server"`
	Platform  string   `json:"platform,omitempty"`
	Versions  []string `json:"versions,omitempty"`
	Classes   int      `json:"classes,omitempty"`
	LoadError string   `json:"load_error,omitempty"`
}

// PoolStatus reports occupancy of a bounded worker pool.
type PoolStatus struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	InFlight int    `json:"in_flight"`
	Waiting  int    `json:"waiting"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult mirrors a preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// StagingStatus summarises leftover artifacts in the staging directory.
type StagingStatus struct {
	Dir      string `json:"dir"`
	Files    int    `json:"files"`
	Bytes    int64  `json:"bytes"`
	OldestAt string `json:"oldest_at,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HistorySummary aggregates request outcomes.
type HistorySummary struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByKind    map[string]int `json:"by_kind,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Version         string             `json:"version"`
	PID             int                `json:"pid"`
	StartedAt       string             `json:"started_at"`
	UptimeSeconds   int64              `json:"uptime_seconds"`
	Model           ModelStatus        `json:"model"`
	Pools           []PoolStatus       `json:"pools"`
	Dependencies    []DependencyStatus `json:"dependencies"`
	Preflight       []CheckResult      `json:"preflight,omitempty"`
	Staging         StagingStatus      `json:"staging"`
	CleanupFailures int64              `json:"cleanup_failures"`
	History         *HistorySummary    `json:"history,omitempty"`
}

// RequestRecord is one entry of the request history.
type RequestRecord struct {
	ID          int64  `json:"id"`
	RequestID   string `json:"request_id"`
	Extension   string `json:"extension,omitempty"`
	UploadBytes int64  `json:"upload_bytes"`
	Outcome     string `json:"outcome"`
	Stage       string `json:"stage,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Status      int    `json:"status"`
	DurationMS  int64  `json:"duration_ms"`
	CreatedAt   string `json:"created_at"`
}

// RequestsResponse is the body of GET /requests.
type RequestsResponse struct {
	Requests []RequestRecord `json:"requests"`
	Summary  HistorySummary  `json:"summary"`
}

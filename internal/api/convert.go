package api

import (
	"time"

	"vidisnap/internal/deps"
	"vidisnap/internal/history"
	"vidisnap/internal/inference"
	"vidisnap/internal/pipeline"
	"vidisnap/internal/preflight"
	"vidisnap/internal/staging"
	"vidisnap/internal/workpool"
)

// FromResponse converts a pipeline result to its API representation.
func FromResponse(resp pipeline.Response) ProcessResponse {
	return ProcessResponse{
		Labels:       FromResult(resp.Labels),
		ThumbnailB64: resp.ThumbnailB64,
	}
}

// FromResult converts ranked predictions, preserving order.
func FromResult(result inference.Result) []Label {
	labels := make([]Label, 0, len(result))
	for _, p := range result {
		labels = append(labels, Label{Label: p.Label, Score: p.Score})
	}
	return labels
}

// FromModelMetadata fills the model section from loaded metadata.
func FromModelMetadata(status ModelStatus, meta inference.ModelMetadata, classes int) ModelStatus {
	status.Loaded = true
	if meta.Name != "" {
		status.Name = meta.Name
	}
	status.Platform = meta.Platform
	status.Versions = append([]string(nil), meta.Versions...)
	status.Classes = classes
	return status
}

// FromPoolStats converts pool snapshots.
func FromPoolStats(stats []workpool.Stats) []PoolStatus {
	out := make([]PoolStatus, 0, len(stats))
	for _, s := range stats {
		out = append(out, PoolStatus{Name: s.Name, Size: s.Size, InFlight: s.InFlight, Waiting: s.Waiting})
	}
	return out
}

// FromDependencies converts binary availability reports.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	if len(results) == 0 {
		return nil
	}
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromUsage converts a staging measurement. A non-nil err is reported in
// place of the figures.
func FromUsage(dir string, usage staging.Usage, err error) StagingStatus {
	status := StagingStatus{Dir: dir}
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Files = usage.Files
	status.Bytes = usage.Bytes
	status.OldestAt = formatTime(usage.Oldest)
	return status
}

// FromSummary converts a history summary.
func FromSummary(summary history.Summary) HistorySummary {
	return HistorySummary{
		Total:     summary.Total,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		ByKind:    summary.ByKind,
	}
}

// FromRecord converts a history record.
func FromRecord(rec history.Record) RequestRecord {
	return RequestRecord{
		ID:          rec.ID,
		RequestID:   rec.RequestID,
		Extension:   rec.Extension,
		UploadBytes: rec.UploadBytes,
		Outcome:     rec.Outcome,
		Stage:       rec.Stage,
		Kind:        rec.Kind,
		Status:      rec.Status,
		DurationMS:  rec.Duration.Milliseconds(),
		CreatedAt:   formatTime(rec.CreatedAt),
	}
}

// FromRecords converts a slice of history records, preserving order.
func FromRecords(records []history.Record) []RequestRecord {
	out := make([]RequestRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// ParseTime parses a timestamp produced by this package. Empty input yields
// the zero time.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateTimeFormat, value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

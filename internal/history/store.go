package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values recorded per request.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Record is one processed request.
type Record struct {
	ID          int64         `json:"id"`
	RequestID   string        `json:"request_id"`
	Extension   string        `json:"extension,omitempty"`
	UploadBytes int64         `json:"upload_bytes"`
	Outcome     string        `json:"outcome"`
	Stage       string        `json:"stage,omitempty"`
	Kind        string        `json:"kind,omitempty"`
	Status      int           `json:"status"`
	Duration    time.Duration `json:"duration_ns"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Summary aggregates outcomes across the retained history.
type Summary struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByKind    map[string]int `json:"by_kind,omitempty"`
}

// Store persists request records in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the history database at path.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts a record and returns its id.
func (s *Store) Add(ctx context.Context, rec Record) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (request_id, extension, upload_bytes, outcome, stage, kind, status, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID,
		rec.Extension,
		rec.UploadBytes,
		rec.Outcome,
		rec.Stage,
		rec.Kind,
		rec.Status,
		rec.Duration.Milliseconds(),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert history record: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, extension, upload_bytes, outcome, stage, kind, status, duration_ms, created_at
		 FROM requests ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			durationMS int64
			createdAt  string
		)
		if err := rows.Scan(&rec.ID, &rec.RequestID, &rec.Extension, &rec.UploadBytes, &rec.Outcome,
			&rec.Stage, &rec.Kind, &rec.Status, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Summarize counts outcomes and failure kinds.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, kind, COUNT(1) FROM requests GROUP BY outcome, kind`)
	if err != nil {
		return Summary{}, fmt.Errorf("history summary: %w", err)
	}
	defer rows.Close()

	summary := Summary{ByKind: map[string]int{}}
	for rows.Next() {
		var (
			outcome, kind string
			count         int
		)
		if err := rows.Scan(&outcome, &kind, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		if outcome == OutcomeSuccess {
			summary.Succeeded += count
			continue
		}
		summary.Failed += count
		if kind != "" {
			summary.ByKind[kind] += count
		}
	}
	return summary, rows.Err()
}

// Prune keeps the newest retain records and deletes the rest. A retain of
// zero keeps everything.
func (s *Store) Prune(ctx context.Context, retain int) (int64, error) {
	if retain <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM requests WHERE id NOT IN (SELECT id FROM requests ORDER BY id DESC LIMIT ?)`, retain)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

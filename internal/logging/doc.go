// Package logging assembles structured slog loggers and formatting helpers used
// across VidiSnap.
//
// It owns the console, JSON and colored (tint) handlers, centralizes level and
// output plumbing, and exposes context-aware helpers so pipeline code tags log
// lines with the request ID and stage it is working on. A no-op logger is
// provided for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same keys.
package logging

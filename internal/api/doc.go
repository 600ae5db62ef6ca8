// Package api defines the wire-format types shared by the HTTP daemon and
// the CLI, along with converters from internal models and a small client.
//
// # Key Types
//
// ProcessResponse: the classification result returned by POST /process.
//
// ErrorResponse: every non-2xx body, carrying a single "detail" message.
//
// HealthResponse: liveness plus whether the model is ready.
//
// StatusResponse: aggregated runtime information (model, pools,
// dependencies, preflight checks, staging usage, history summary).
//
// # Design Notes
//
// JSON tags use snake_case to match the public /process and /health
// contract. Timestamps use RFC3339 with milliseconds.
package api

// Package daemon coordinates the long-running VidiSnap process.
//
// It wires configuration, the processing pipeline, the inference engine
// holder, request history and metrics into a single lifecycle with
// flock-based locking, so two daemons never share a staging directory.
// The HTTP surface (POST /process, GET /health, /status, /requests and
// /metrics) is served by a chi router owned by the daemon.
//
// Keep orchestration logic here: individual processing steps live in the
// pipeline package while the daemon focuses on startup, shutdown, and
// readiness.
package daemon

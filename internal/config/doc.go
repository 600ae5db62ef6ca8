// Package config loads, normalizes, and validates VidiSnap configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// VIDISNAP_MODEL_URL. The Config type centralizes every knob the service and
// CLI need so staging paths, the model server, worker pool sizes and upload
// limits are resolved in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config

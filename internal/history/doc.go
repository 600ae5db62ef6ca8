// Package history keeps a local SQLite log of request outcomes.
//
// Only operational facts are stored: the request id, the upload extension
// and size, which stage failed and how, the HTTP status, and how long the
// request took. Uploaded bytes, frames, and predicted labels are never
// persisted.
package history

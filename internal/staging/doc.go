// Package staging owns the transient per-request files written while a video
// is processed: the uploaded video and the extracted frame.
//
// Every artifact is named by a generated request token rather than the
// uploaded filename, so concurrent requests never collide. Cleanup is
// idempotent and never returns an error; removal problems are logged and
// counted. CleanStale sweeps artifacts left behind by a process that exited
// before its deferred cleanup could run.
package staging

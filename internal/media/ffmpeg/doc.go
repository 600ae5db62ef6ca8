// Package ffmpeg wraps the ffmpeg CLI for single-frame extraction.
//
// Primary entry point:
//   - Extractor.ExtractFirstFrame: decodes frame index 0 of a video into a JPEG
//
// A non-zero exit status or a missing/empty output file is reported as an
// extraction failure carrying ffmpeg's own diagnostics. Those failures are
// per-request; the caller decides what to tell the client.
package ffmpeg

// Package failure classifies request-processing errors.
//
// Every stage of the processing pipeline reports failures through Wrap so the
// orchestrator boundary can decide the HTTP status, the sanitized detail sent
// to the caller, and the structured fields written to the log without string
// matching. Kinds mirror the stages that can fail; anything that escapes
// classification is reported as KindUnexpected.
package failure

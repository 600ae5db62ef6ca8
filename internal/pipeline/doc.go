// Package pipeline runs one upload through validation, staging, frame
// extraction, classification, and response assembly.
//
// Orchestrator.Process walks the states
//
//	received → validated → stored → frame_extracted → classified → assembled → cleaned_up → done
//
// and moves to failed from any non-terminal state, carrying the failure kind.
// Artifacts are registered as soon as their paths are known and a deferred
// cleanup removes them on every exit path, including panics. Cleanup problems
// are logged by the staging manager and never change the outcome. No stage is
// retried.
package pipeline

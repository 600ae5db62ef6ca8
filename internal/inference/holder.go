package inference

import (
	"context"
	"sync/atomic"

	"vidisnap/internal/failure"
)

// Holder publishes the engine once it has loaded. The zero value is ready to
// use and reports not loaded.
type Holder struct {
	engine atomic.Pointer[Engine]
}

// Set publishes e. Subsequent calls replace the engine.
func (h *Holder) Set(e *Engine) { h.engine.Store(e) }

// Engine returns the loaded engine, or nil while loading.
func (h *Holder) Engine() *Engine { return h.engine.Load() }

// Loaded reports whether Load has completed successfully.
func (h *Holder) Loaded() bool { return h.engine.Load() != nil }

// Classify forwards to the loaded engine or fails with ErrModelNotLoaded.
func (h *Holder) Classify(ctx context.Context, frame []byte) (Result, error) {
	e := h.engine.Load()
	if e == nil {
		return nil, failure.Wrap(failure.KindUnavailable, "classify", "engine", "model not loaded", failure.ErrModelNotLoaded)
	}
	return e.Classify(ctx, frame)
}

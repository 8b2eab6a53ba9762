package embedder

import "sync/atomic"

// Handle is an atomically swappable reference to the active orchestrator.
// Callers that must survive provider reconfiguration hold a Handle and load
// the current orchestrator per call; a single owner swaps it on settings
// changes.
type Handle struct {
	current atomic.Pointer[Orchestrator]
}

// NewHandle wraps an orchestrator; o may be nil when no provider is
// configured yet.
func NewHandle(o *Orchestrator) *Handle {
	h := &Handle{}
	if o != nil {
		h.current.Store(o)
	}
	return h
}

// Load returns the active orchestrator, or nil when none is configured.
func (h *Handle) Load() *Orchestrator {
	return h.current.Load()
}

// Swap installs a new orchestrator and returns the previous one.
func (h *Handle) Swap(o *Orchestrator) *Orchestrator {
	return h.current.Swap(o)
}

// Package runtimestate holds the small amount of process-wide mutable state
// the service needs outside the Store: today, just the active model URL.
package runtimestate

import "sync/atomic"

// ModelURLHolder guards the active inference-server URL behind an
// atomic.Pointer[string]. The value is read on every chat request and
// written only by the model-switch endpoint; last-writer-wins is the
// intended semantics, but a bare string shared across goroutines would
// still be a data race, hence the atomic holder.
type ModelURLHolder struct {
	ptr atomic.Pointer[string]
}

// NewModelURLHolder seeds the holder with an initial URL.
func NewModelURLHolder(initial string) *ModelURLHolder {
	h := &ModelURLHolder{}
	h.Set(initial)
	return h
}

// Get returns the current URL.
func (h *ModelURLHolder) Get() string {
	if p := h.ptr.Load(); p != nil {
		return *p
	}
	return ""
}

// Set updates the URL; the write is visible to any goroutine's next Get.
func (h *ModelURLHolder) Set(url string) {
	h.ptr.Store(&url)
}

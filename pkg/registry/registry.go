package registry

import (
	"context"
	"sync"
)

// Slot names a logical stream of asynchronous work
type Slot string

const (
	SlotCatalog     Slot = "catalog"
	SlotGasPrice    Slot = "gas_price"
	SlotFilter      Slot = "filter"
	SlotRateTimer   Slot = "rate_timer"
	SlotRateRequest Slot = "rate_request"
	SlotRequest     Slot = "request"
)

// Slots lists every slot the registry manages
var Slots = []Slot{SlotCatalog, SlotGasPrice, SlotFilter, SlotRateTimer, SlotRateRequest, SlotRequest}

// Handle is the cancellation token of one piece of in-flight work
type Handle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHandle creates a live handle derived from parent
func NewHandle(parent context.Context) *Handle {
	ctx, cancel := context.WithCancel(parent)
	return &Handle{ctx: ctx, cancel: cancel}
}

// Context returns the context that is cancelled together with the handle
func (h *Handle) Context() context.Context {
	return h.ctx
}

// Cancel cancels the handle. Cancelling twice is a no-op.
func (h *Handle) Cancel() {
	h.cancel()
}

// Cancelled reports whether the handle (or its parent) was cancelled
func (h *Handle) Cancelled() bool {
	return h.ctx.Err() != nil
}

// Registry keeps at most one live handle per slot
type Registry struct {
	mu     sync.Mutex
	slots  map[Slot]*Handle
	closed bool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		slots: make(map[Slot]*Handle),
	}
}

// Start creates a handle derived from parent and registers it in slot,
// cancelling the previous handle of that slot. After CancelAll the returned
// handle is already cancelled.
func (r *Registry) Start(parent context.Context, slot Slot) *Handle {
	h := NewHandle(parent)
	r.Register(slot, h)
	return h
}

// Register cancels the handle currently held by slot and replaces it with h.
func (r *Registry) Register(slot Slot, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		h.Cancel()
		return
	}
	if prev, ok := r.slots[slot]; ok && prev != h {
		prev.Cancel()
	}
	r.slots[slot] = h
}

// Cancel cancels and clears the handle held by slot
func (r *Registry) Cancel(slot Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.slots[slot]; ok {
		h.Cancel()
		delete(r.slots, slot)
	}
}

// CancelAll cancels every slot and closes the registry. It is idempotent.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for slot, h := range r.slots {
		h.Cancel()
		delete(r.slots, slot)
	}
	r.closed = true
}

// Closed reports whether CancelAll has been called
func (r *Registry) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Deliver runs fn if h is still live and the registry is open. It returns
// whether fn ran. Completion callbacks go through Deliver so that cancelled
// work never publishes.
func (r *Registry) Deliver(h *Handle, fn func()) bool {
	r.mu.Lock()
	live := !r.closed && !h.Cancelled()
	r.mu.Unlock()

	if !live {
		return false
	}
	fn()
	return true
}

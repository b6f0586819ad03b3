package dispatch

import "sync/atomic"

// Gate admits a single outbound sequence at a time. A second caller is
// turned away instead of queued.
type Gate struct {
	pending atomic.Bool
}

// TryAcquire marks a request as pending. It reports false if one already is.
func (g *Gate) TryAcquire() bool {
	return g.pending.CompareAndSwap(false, true)
}

// Release clears the pending flag.
func (g *Gate) Release() {
	g.pending.Store(false)
}

// Pending reports whether a sequence is in flight.
func (g *Gate) Pending() bool {
	return g.pending.Load()
}

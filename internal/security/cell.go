package security

import "sync/atomic"

// Cell is a single-slot holder of the current Snapshot supporting
// wait-free concurrent reads and single-writer stores. It is built on
// atomic.Pointer rather than a mutex so that no reader ever blocks the
// writer, and vice versa; Snapshot reads happen on every single request.
type Cell struct {
	ptr atomic.Pointer[Snapshot]
}

// NewCell creates a Cell already holding initial. initial must not be nil;
// the Pipeline always expects a Snapshot to be available.
func NewCell(initial *Snapshot) *Cell {
	c := &Cell{}
	c.ptr.Store(initial)
	return c
}

// Load returns the currently published Snapshot. The returned pointer is
// safe to hold for the lifetime of a single request: Store never mutates
// a previously published Snapshot, it only swaps the pointer, so an
// in-flight request's reference stays valid and consistent across a
// reload.
func (c *Cell) Load() *Snapshot {
	return c.ptr.Load()
}

// Store atomically publishes a new Snapshot. Subsequent Load calls observe
// it; requests that already called Load keep their old reference.
func (c *Cell) Store(next *Snapshot) {
	c.ptr.Store(next)
}

// Package dedup suppresses recently seen upstream signatures before they
// reach storage and the queue.
package dedup

// DefaultCapacity is the signature window used when none is configured.
const DefaultCapacity = 10000

// Ring remembers the last N signatures with O(1) admission: a circular
// buffer evicts in arrival order while a hash index answers membership.
// A signature older than N insertions can be seen again; the event store's
// unique index remains the durable guarantor.
type Ring struct {
	slots []string
	index map[string]struct{}
	next  int
}

// NewRing creates a ring holding up to capacity signatures. Non-positive
// capacities fall back to DefaultCapacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		slots: make([]string, capacity),
		index: make(map[string]struct{}, capacity),
	}
}

// Contains reports whether signature is inside the current window.
func (r *Ring) Contains(signature string) bool {
	_, ok := r.index[signature]
	return ok
}

// Add admits a signature, evicting the oldest entry once the window is
// full. Adding a signature already in the window changes nothing.
func (r *Ring) Add(signature string) {
	if r.Contains(signature) {
		return
	}
	if evicted := r.slots[r.next]; evicted != "" {
		delete(r.index, evicted)
	}
	r.slots[r.next] = signature
	r.index[signature] = struct{}{}
	r.next = (r.next + 1) % len(r.slots)
}

// Len returns the number of signatures currently in the window.
func (r *Ring) Len() int {
	return len(r.index)
}

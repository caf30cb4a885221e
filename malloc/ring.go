package malloc

import (
	"sync"
	"sync/atomic"
)

// RingSink keeps the most recent events in a fixed buffer.
//
// Record never blocks and never allocates: if another goroutine is writing
// at the same moment the event is dropped and counted in Dropped. Once the
// buffer is full the oldest events are overwritten.
type RingSink struct {
	mu     sync.Mutex
	events []Event
	next   int
	total  int64

	dropped atomic.Int64
}

// NewRingSink returns a ring holding up to size events.
func NewRingSink(size int) *RingSink {
	if size <= 0 {
		size = 1
	}
	return &RingSink{events: make([]Event, size)}
}

// Record implements Sink.
func (r *RingSink) Record(ev Event) {
	if !r.mu.TryLock() {
		r.dropped.Add(1)
		return
	}
	r.events[r.next] = ev
	r.next++
	if r.next == len(r.events) {
		r.next = 0
	}
	r.total++
	r.mu.Unlock()
}

// Events returns the retained events, oldest first.
func (r *RingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.events)
	if r.total < int64(n) {
		out := make([]Event, r.total)
		copy(out, r.events[:r.total])
		return out
	}
	out := make([]Event, 0, n)
	out = append(out, r.events[r.next:]...)
	return append(out, r.events[:r.next]...)
}

// Count returns how many retained events match kind and source.
// A zero kind or source matches anything.
func (r *RingSink) Count(kind EventKind, src Source) int {
	n := 0
	for _, ev := range r.Events() {
		if (kind == 0 || ev.Kind == kind) && (src == 0 || ev.Source == src) {
			n++
		}
	}
	return n
}

// Total returns the number of events recorded, including overwritten ones.
func (r *RingSink) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Dropped returns the number of events lost to contention.
func (r *RingSink) Dropped() int64 {
	return r.dropped.Load()
}

// Reset forgets all retained events and counters.
func (r *RingSink) Reset() {
	r.mu.Lock()
	clear(r.events)
	r.next, r.total = 0, 0
	r.dropped.Store(0)
	r.mu.Unlock()
}

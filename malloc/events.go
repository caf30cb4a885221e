package malloc

// Source identifies the path that served an operation.
type Source uint8

const (
	SourceCache   Source = iota + 1 // per-thread free list
	SourceBackend                   // page provider
)

func (s Source) String() string {
	switch s {
	case SourceCache:
		return "cache"
	case SourceBackend:
		return "backend"
	}
	return "unknown"
}

// EventKind is the operation an Event describes.
type EventKind uint8

const (
	EventAlloc EventKind = iota + 1
	EventFree
	EventResize
)

func (k EventKind) String() string {
	switch k {
	case EventAlloc:
		return "alloc"
	case EventFree:
		return "free"
	case EventResize:
		return "resize"
	}
	return "unknown"
}

// Event describes one allocator operation. For EventResize, Size is the
// new size and Addr the new address.
type Event struct {
	Kind   EventKind
	Addr   uintptr
	Size   uintptr
	Source Source
}

// Sink receives allocator events. Record is called on the allocation path:
// it must not block, must not fail, and must not allocate from the
// Allocator that reports to it.
type Sink interface {
	Record(ev Event)
}

// NopSink discards every event.
type NopSink struct{}

// Record implements Sink.
func (NopSink) Record(Event) {}

// Tee forwards each event to every sink in order.
type Tee []Sink

// Record implements Sink.
func (t Tee) Record(ev Event) {
	for _, s := range t {
		s.Record(ev)
	}
}

package malloc

// Stats counts a Thread's operations. Counters are owned by the Thread and
// are not synchronized.
type Stats struct {
	AllocCalls  int // Allocate calls with a valid layout
	FreeCalls   int // Deallocate calls
	ResizeCalls int // Resize calls that changed the size

	CacheHits   int // allocations served from the free list
	CacheMisses int // allocations that searched the list and missed
	Splits      int // cache hits that left a remainder behind

	CacheInserts int // frees kept in the free list
	Evictions    int // frees released because the list was full
	Bypassed     int // operations that skipped the list (panic, disabled, closed)

	BackendReserves int // successful provider reservations
	BackendReleases int // provider releases
	BackendFailures int // failed provider reservations
	BackendResizes  int // resizes done by the provider in place
}

// HitRatio returns CacheHits / AllocCalls, or 0 before the first allocation.
func (s Stats) HitRatio() float64 {
	if s.AllocCalls == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.AllocCalls)
}

// Merge adds o's counters to s.
func (s *Stats) Merge(o Stats) {
	s.AllocCalls += o.AllocCalls
	s.FreeCalls += o.FreeCalls
	s.ResizeCalls += o.ResizeCalls
	s.CacheHits += o.CacheHits
	s.CacheMisses += o.CacheMisses
	s.Splits += o.Splits
	s.CacheInserts += o.CacheInserts
	s.Evictions += o.Evictions
	s.Bypassed += o.Bypassed
	s.BackendReserves += o.BackendReserves
	s.BackendReleases += o.BackendReleases
	s.BackendFailures += o.BackendFailures
	s.BackendResizes += o.BackendResizes
}

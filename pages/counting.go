package pages

import (
	"errors"
	"sync/atomic"
)

// Counting wraps a Provider and counts the calls that reach it. It is safe
// for concurrent use.
type Counting struct {
	P Provider

	reserves atomic.Int64
	releases atomic.Int64
	resizes  atomic.Int64
	failures atomic.Int64
	bytes    atomic.Int64
}

// NewCounting wraps p. A nil p wraps System().
func NewCounting(p Provider) *Counting {
	if p == nil {
		p = System()
	}
	return &Counting{P: p}
}

// CountingStats is a snapshot of a Counting provider.
type CountingStats struct {
	Reserves int64 // successful Reserve calls
	Releases int64 // Release calls
	Resizes  int64 // successful Resize calls
	Failures int64 // failed Reserve or Resize calls
	Bytes    int64 // bytes reserved minus bytes released
}

// Reserve implements Provider.
func (c *Counting) Reserve(size uintptr) (uintptr, error) {
	addr, err := c.P.Reserve(size)
	if err != nil {
		c.failures.Add(1)
		return 0, err
	}
	c.reserves.Add(1)
	c.bytes.Add(int64(size))
	return addr, nil
}

// Release implements Provider.
func (c *Counting) Release(addr, size uintptr) error {
	c.releases.Add(1)
	c.bytes.Add(-int64(size))
	return c.P.Release(addr, size)
}

// Resize implements Resizer when the wrapped provider does.
func (c *Counting) Resize(addr, oldSize, newSize uintptr) (uintptr, error) {
	r, ok := c.P.(Resizer)
	if !ok {
		return 0, ErrNotResizable
	}
	naddr, err := r.Resize(addr, oldSize, newSize)
	if err != nil {
		if !errors.Is(err, ErrNotResizable) {
			c.failures.Add(1)
		}
		return 0, err
	}
	c.resizes.Add(1)
	c.bytes.Add(int64(newSize) - int64(oldSize))
	return naddr, nil
}

// Stats returns the current counters.
func (c *Counting) Stats() CountingStats {
	return CountingStats{
		Reserves: c.reserves.Load(),
		Releases: c.releases.Load(),
		Resizes:  c.resizes.Load(),
		Failures: c.failures.Load(),
		Bytes:    c.bytes.Load(),
	}
}

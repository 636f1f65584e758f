package rcache

import (
	"sync/atomic"
)

// Stats holds cache performance statistics
type Stats struct {
	// hits counts lookups answered from the store
	hits int64

	// misses counts lookups that ran the wrapped function
	misses int64

	// writes counts successful SETs
	writes int64

	// invalidations counts successful DELs issued after a mutation
	invalidations int64

	// errors counts backend and serialization failures
	errors int64

	// inFlight is the number of wrapped functions currently computing a missed value
	inFlight int64
}

// Hits returns the number of cache hits
func (s *Stats) Hits() int64 {
	return atomic.LoadInt64(&s.hits)
}

// Misses returns the number of cache misses
func (s *Stats) Misses() int64 {
	return atomic.LoadInt64(&s.misses)
}

// Writes returns the number of values written to the store
func (s *Stats) Writes() int64 {
	return atomic.LoadInt64(&s.writes)
}

// Invalidations returns the number of invalidated keys
func (s *Stats) Invalidations() int64 {
	return atomic.LoadInt64(&s.invalidations)
}

// Errors returns the number of failed cache operations
func (s *Stats) Errors() int64 {
	return atomic.LoadInt64(&s.errors)
}

// InFlight returns the number of computations currently in flight
func (s *Stats) InFlight() int64 {
	return atomic.LoadInt64(&s.inFlight)
}

// HitRate returns the cache hit rate as a percentage (0-100)
func (s *Stats) HitRate() float64 {
	hits := s.Hits()
	total := hits + s.Misses()

	if total == 0 {
		return 0
	}

	return float64(hits) / float64(total) * 100
}

// Total returns the total number of lookups (hits + misses)
func (s *Stats) Total() int64 {
	return s.Hits() + s.Misses()
}

// Reset resets all counters to zero. In-flight computations are left as is.
func (s *Stats) Reset() {
	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
	atomic.StoreInt64(&s.writes, 0)
	atomic.StoreInt64(&s.invalidations, 0)
	atomic.StoreInt64(&s.errors, 0)
}

func (s *Stats) incHits() {
	atomic.AddInt64(&s.hits, 1)
}

func (s *Stats) incMisses() {
	atomic.AddInt64(&s.misses, 1)
}

func (s *Stats) incWrites() {
	atomic.AddInt64(&s.writes, 1)
}

func (s *Stats) incInvalidations() {
	atomic.AddInt64(&s.invalidations, 1)
}

func (s *Stats) incErrors() {
	atomic.AddInt64(&s.errors, 1)
}

func (s *Stats) incInFlight() {
	atomic.AddInt64(&s.inFlight, 1)
}

func (s *Stats) decInFlight() {
	atomic.AddInt64(&s.inFlight, -1)
}

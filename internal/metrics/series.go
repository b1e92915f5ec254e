package metrics

import (
	"sync"
	"time"

	"sysdash/internal/models"
)

// History capacity bounds. Out-of-range requests are clamped, never rejected.
const (
	MinHistory     = 10
	MaxHistory     = 100
	DefaultHistory = 30
)

// Store holds one bounded, time-ordered series per tracked metric. It is
// written only by the sampler goroutine; snapshots may be read from any
// goroutine.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[string][]models.Sample
}

// NewStore creates empty series for each name with the given capacity.
// Capacity bounds are enforced by the configuration layer; the store itself
// accepts any positive capacity.
func NewStore(capacity int, names ...string) *Store {
	if capacity < 1 {
		capacity = 1
	}
	s := &Store{
		capacity: capacity,
		series:   make(map[string][]models.Sample, len(names)),
	}
	for _, name := range names {
		s.series[name] = make([]models.Sample, 0, s.capacity)
	}
	return s
}

// ClampHistory clamps a requested history length to the supported bounds.
func ClampHistory(n int) int {
	if n < MinHistory {
		return MinHistory
	}
	if n > MaxHistory {
		return MaxHistory
	}
	return n
}

// Append adds a sample to the named series, evicting from the front when the
// series exceeds capacity. Samples arrive in non-decreasing timestamp order
// by construction of the sampler loop.
func (s *Store) Append(name string, t time.Time, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf, ok := s.series[name]
	if !ok {
		buf = make([]models.Sample, 0, s.capacity)
	}
	buf = append(buf, models.Sample{Timestamp: t, Value: value})
	if excess := len(buf) - s.capacity; excess > 0 {
		copy(buf, buf[excess:])
		buf = buf[:s.capacity]
	}
	s.series[name] = buf
}

// Snapshot returns a copy of the named series for rendering. The copy never
// aliases internal storage, so readers cannot race with eviction.
func (s *Store) Snapshot(name string) []models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	buf := s.series[name]
	out := make([]models.Sample, len(buf))
	copy(out, buf)
	return out
}

// Snapshots returns copies of every series keyed by metric name.
func (s *Store) Snapshots() map[string][]models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]models.Sample, len(s.series))
	for name, buf := range s.series {
		cp := make([]models.Sample, len(buf))
		copy(cp, buf)
		out[name] = cp
	}
	return out
}

// SetCapacity changes the per-series capacity, trimming the oldest samples
// immediately when shrinking. Safe to call between ticks.
func (s *Store) SetCapacity(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capacity = n
	for name, buf := range s.series {
		if excess := len(buf) - n; excess > 0 {
			copy(buf, buf[excess:])
			s.series[name] = buf[:n]
		}
	}
}

// Capacity returns the current per-series capacity.
func (s *Store) Capacity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity
}

// Len returns the current length of the named series.
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[name])
}

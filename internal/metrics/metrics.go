// Package metrics collects the fetch statistics shown in the dashboard's
// stats block.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type durationRing struct {
	buf   []time.Duration
	idx   int
	count int
}

func newDurationRing(n int) *durationRing {
	if n < 1 {
		n = 1
	}
	return &durationRing{buf: make([]time.Duration, n)}
}

func (r *durationRing) add(d time.Duration) {
	r.buf[r.idx] = d
	r.idx++
	if r.idx >= len(r.buf) {
		r.idx = 0
	}
	if r.count < len(r.buf) {
		r.count++
	}
}

type DurationStats struct {
	Last time.Duration
	Max  time.Duration
	Avg  time.Duration
	N    int
}

func (r *durationRing) snapshot() DurationStats {
	if r.count == 0 {
		return DurationStats{}
	}
	var sum, max time.Duration
	for i := 0; i < r.count; i++ {
		d := r.buf[i]
		sum += d
		if d > max {
			max = d
		}
	}
	lastIdx := r.idx - 1
	if lastIdx < 0 {
		lastIdx = len(r.buf) - 1
	}
	return DurationStats{
		Last: r.buf[lastIdx],
		Max:  max,
		Avg:  sum / time.Duration(r.count),
		N:    r.count,
	}
}

// Fetch records request and reload outcomes. It is safe for concurrent use.
type Fetch struct {
	enabled atomic.Bool

	requests  atomic.Uint64
	failures  atomic.Uint64
	cacheHits atomic.Uint64
	reloads   atomic.Uint64
	stale     atomic.Uint64

	mu      sync.Mutex
	latency *durationRing
	reload  *durationRing
}

func NewFetch(window int) *Fetch {
	m := &Fetch{
		latency: newDurationRing(window),
		reload:  newDurationRing(window),
	}
	m.enabled.Store(true)
	return m
}

func (m *Fetch) SetEnabled(v bool) { m.enabled.Store(v) }

// ObserveRequest records one backend round trip.
func (m *Fetch) ObserveRequest(d time.Duration, err error) {
	if m == nil || !m.enabled.Load() {
		return
	}
	m.requests.Add(1)
	if err != nil {
		m.failures.Add(1)
	}
	m.mu.Lock()
	m.latency.add(d)
	m.mu.Unlock()
}

func (m *Fetch) ObserveCacheHit() {
	if m == nil || !m.enabled.Load() {
		return
	}
	m.cacheHits.Add(1)
}

// ObserveReload records the wall time of one full dashboard reload.
func (m *Fetch) ObserveReload(d time.Duration) {
	if m == nil || !m.enabled.Load() {
		return
	}
	m.reloads.Add(1)
	m.mu.Lock()
	m.reload.add(d)
	m.mu.Unlock()
}

// ObserveStale counts a reload result dropped because a newer one exists.
func (m *Fetch) ObserveStale() {
	if m == nil || !m.enabled.Load() {
		return
	}
	m.stale.Add(1)
}

type Snapshot struct {
	Requests  uint64
	Failures  uint64
	CacheHits uint64
	Reloads   uint64
	Stale     uint64
	Latency   DurationStats
	Reload    DurationStats
}

func (m *Fetch) Snapshot() Snapshot {
	if m == nil || !m.enabled.Load() {
		return Snapshot{}
	}
	m.mu.Lock()
	lat, rel := m.latency.snapshot(), m.reload.snapshot()
	m.mu.Unlock()
	return Snapshot{
		Requests:  m.requests.Load(),
		Failures:  m.failures.Load(),
		CacheHits: m.cacheHits.Load(),
		Reloads:   m.reloads.Load(),
		Stale:     m.stale.Load(),
		Latency:   lat,
		Reload:    rel,
	}
}

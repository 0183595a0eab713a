package bench

import (
	"math"
	"sort"
	"time"
)

// Percentiles holds the p50 and p95 of a latency window.
type Percentiles struct {
	P50 time.Duration
	P95 time.Duration
}

// latencyWindow is a bounded ring buffer of run durations from which
// percentiles are computed on demand.
type latencyWindow struct {
	data []time.Duration
	size int
	pos  int
	full bool
}

func newLatencyWindow(size int) *latencyWindow {
	if size <= 0 {
		size = 100
	}
	return &latencyWindow{
		data: make([]time.Duration, size),
		size: size,
	}
}

func (w *latencyWindow) add(d time.Duration) {
	w.data[w.pos] = d
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
		w.full = true
	}
}

func (w *latencyWindow) percentiles() Percentiles {
	n := w.pos
	if w.full {
		n = w.size
	}
	if n == 0 {
		return Percentiles{}
	}

	sorted := make([]time.Duration, n)
	copy(sorted, w.data[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	return Percentiles{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
	}
}

// percentile returns the value at the given percentile (0.0-1.0) from a
// sorted slice of durations using nearest-rank.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

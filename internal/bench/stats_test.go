package bench

import (
	"testing"
	"time"
)

func TestLatencyWindow_Percentiles(t *testing.T) {
	t.Parallel()

	w := newLatencyWindow(100)
	for i := 1; i <= 100; i++ {
		w.add(time.Duration(i) * time.Millisecond)
	}

	p := w.percentiles()
	if p.P50 != 50*time.Millisecond {
		t.Errorf("P50 = %v, want 50ms", p.P50)
	}
	if p.P95 != 95*time.Millisecond {
		t.Errorf("P95 = %v, want 95ms", p.P95)
	}
}

func TestLatencyWindow_Empty(t *testing.T) {
	t.Parallel()

	w := newLatencyWindow(10)
	if p := w.percentiles(); p != (Percentiles{}) {
		t.Errorf("percentiles = %+v, want zero values", p)
	}
}

func TestLatencyWindow_WrapsOldSamples(t *testing.T) {
	t.Parallel()

	w := newLatencyWindow(10)
	for i := 1; i <= 20; i++ {
		w.add(time.Duration(i) * time.Millisecond)
	}

	// Only the last ten samples remain.
	p := w.percentiles()
	if p.P50 != 15*time.Millisecond {
		t.Errorf("P50 = %v, want 15ms", p.P50)
	}
	if p.P95 != 20*time.Millisecond {
		t.Errorf("P95 = %v, want 20ms", p.P95)
	}
}

func TestLatencyWindow_DefaultSize(t *testing.T) {
	t.Parallel()

	w := newLatencyWindow(0)
	w.add(42 * time.Millisecond)

	p := w.percentiles()
	if p.P50 != 42*time.Millisecond || p.P95 != 42*time.Millisecond {
		t.Errorf("percentiles = %+v, want 42ms for both", p)
	}
}

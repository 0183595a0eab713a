package bench

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lyrebird-audio/lyrebird/internal/synth"
)

// stubSpeaker records synthesis requests and fails on demand.
type stubSpeaker struct {
	mu    sync.Mutex
	calls []synth.Request
	fail  func(req synth.Request) error
}

func (s *stubSpeaker) Synthesize(_ context.Context, req synth.Request) (*synth.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.fail != nil {
		if err := s.fail(req); err != nil {
			return nil, err
		}
	}
	return &synth.Result{
		Segments:        [][]byte{make([]byte, 4800)},
		TokensProcessed: 28,
		FramesDecoded:   1,
		Duration:        time.Second,
	}, nil
}

func (s *stubSpeaker) requests() []synth.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]synth.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

func newTestRunner(t *testing.T, speaker Speaker, opts ...RunnerOption) *Runner {
	t.Helper()
	r, err := NewRunner(speaker, append([]RunnerOption{WithOutput(io.Discard)}, opts...)...)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func writeInputFile(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return path
}

func testMetadata() *Metadata {
	return NewMetadata("20260825_120000", "tara_20260825_120000", "tara", 20480, RunParameters{})
}

func TestNewRunner_NilSpeaker(t *testing.T) {
	t.Parallel()

	if _, err := NewRunner(nil); err == nil {
		t.Fatal("expected error for nil speaker")
	}
}

func TestRunnerWait_Paces(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &stubSpeaker{}, WithPace(20*time.Millisecond))
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := r.wait(context.Background()); err != nil {
			t.Fatalf("wait: %v", err)
		}
	}
	// First token is free, the next two are spaced 20ms apart.
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("3 paced waits took %v, want >= 40ms", elapsed)
	}
}

func TestRunnerWait_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(t, &stubSpeaker{})
	if err := r.wait(ctx); err == nil {
		t.Error("expected error without pace")
	}
	r = newTestRunner(t, &stubSpeaker{}, WithPace(time.Millisecond))
	if err := r.wait(ctx); err == nil {
		t.Error("expected error with pace")
	}
}

func TestFormatFloat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.0"},
		{2.0, "2.0"},
		{0.1, "0.1"},
		{0.95, "0.95"},
		{1.2, "1.2"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.in); got != tt.want {
			t.Errorf("formatFloat(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoinFloats(t *testing.T) {
	t.Parallel()

	got := joinFloats([]float64{0.3, 0.6, 0.9, 1.2})
	if want := "0.3, 0.6, 0.9, 1.2"; got != want {
		t.Errorf("joinFloats = %q, want %q", got, want)
	}
}

func TestReadSample(t *testing.T) {
	t.Parallel()

	path := writeInputFile(t, "Hello, world.")

	text, n, err := readSample(path, 5)
	if err != nil {
		t.Fatalf("readSample: %v", err)
	}
	if text != "Hello" || n != 5 {
		t.Errorf("readSample limit 5 = %q, %d", text, n)
	}

	text, n, err = readSample(path, 0)
	if err != nil {
		t.Fatalf("readSample: %v", err)
	}
	if text != "Hello, world." || n != 13 {
		t.Errorf("readSample unlimited = %q, %d", text, n)
	}

	if _, _, err := readSample(filepath.Join(t.TempDir(), "missing.txt"), 0); err == nil {
		t.Error("expected error for missing file")
	}
}

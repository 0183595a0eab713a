package bench

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lyrebird-audio/lyrebird/internal/synth"
)

func TestTruncateForDuration(t *testing.T) {
	t.Parallel()

	short := "Hello there."
	if got := TruncateForDuration(short, DefaultSampleDuration); got != short {
		t.Errorf("short text changed: %q", got)
	}

	long := strings.Repeat("One two three four five six seven eight. ", 4)
	want := "One two three four five six seven eight."
	if got := TruncateForDuration(long, DefaultSampleDuration); got != want {
		t.Errorf("TruncateForDuration = %q, want %q", got, want)
	}

	// Without a sentence end the cut lands exactly on the budget.
	noPeriod := strings.Repeat("abcd ", 20)
	want = strings.Repeat("abcd ", 15) + "."
	if got := TruncateForDuration(noPeriod, DefaultSampleDuration); got != want {
		t.Errorf("TruncateForDuration = %q, want %q", got, want)
	}
}

func TestPlanGrid(t *testing.T) {
	t.Parallel()

	plan := PlanGrid(GridOptions{Voices: []string{"tara", "leah"}})
	if plan.Combinations != 128 {
		t.Errorf("Combinations = %d, want 128", plan.Combinations)
	}
	if want := 128 * 50 * time.Second; plan.Estimated != want {
		t.Errorf("Estimated = %v, want %v", plan.Estimated, want)
	}

	// Defaults cover every voice.
	if plan := PlanGrid(GridOptions{}); plan.Combinations != 512 {
		t.Errorf("default Combinations = %d, want 512", plan.Combinations)
	}
}

func TestRunGrid(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	speaker := &stubSpeaker{}
	r := newTestRunner(t, speaker)

	sum, err := r.RunGrid(context.Background(), GridOptions{
		Voices:       []string{"tara", "leah"},
		Temperatures: []float64{0.3},
		TopPs:        []float64{0.3, 0.95},
		RepPenalties: []float64{1.1},
		Text:         "Short grid test.",
		OutputDir:    outDir,
	})
	if err != nil {
		t.Fatalf("RunGrid: %v", err)
	}

	if len(sum.Runs) != 4 {
		t.Fatalf("runs = %d, want 4", len(sum.Runs))
	}
	if sum.Text != "Short grid test." {
		t.Errorf("Text = %q, want the input unchanged", sum.Text)
	}
	if want := filepath.Join(outDir, "grid_search_summary.txt"); sum.SummaryPath != want {
		t.Errorf("SummaryPath = %q, want %q", sum.SummaryPath, want)
	}

	calls := speaker.requests()
	if len(calls) != 4 {
		t.Fatalf("synthesize calls = %d, want 4", len(calls))
	}
	want := filepath.Join(outDir, "tara", "tara_temp_0.3_top_p_0.30_rep_penalty_1.1.wav")
	if calls[0].OutputPath != want {
		t.Errorf("call 0 OutputPath = %q, want %q", calls[0].OutputPath, want)
	}
	for i, call := range calls {
		if call.MaxTokens != DefaultSampleMaxTokens {
			t.Errorf("call %d MaxTokens = %d, want %d", i, call.MaxTokens, DefaultSampleMaxTokens)
		}
	}
	for _, voiceName := range []string{"tara", "leah"} {
		info, err := os.Stat(filepath.Join(outDir, voiceName))
		if err != nil || !info.IsDir() {
			t.Errorf("missing voice directory %s: %v", voiceName, err)
		}
	}

	data, err := os.ReadFile(sum.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	summary := string(data)
	for _, wantLine := range []string{
		"Orpheus TTS Grid Search",
		"Total Runs: 4\n",
		"- Voices: tara, leah\n",
		"- Top-p values: 0.3, 0.95\n",
		"Test text: \"Short grid test.\"\n",
		"- tara: 2/2 successful\n",
		"- leah: 2/2 successful\n",
		"- tara: temp=0.3, top_p=",
		"  File: ",
		"  Latency: p50=",
	} {
		if !strings.Contains(summary, wantLine) {
			t.Errorf("summary missing %q", wantLine)
		}
	}
}

func TestRunGrid_RecordsFailures(t *testing.T) {
	t.Parallel()

	speaker := &stubSpeaker{
		fail: func(req synth.Request) error {
			if req.Voice == "leah" {
				return errors.New("decode stalled")
			}
			return nil
		},
	}
	r := newTestRunner(t, speaker)

	sum, err := r.RunGrid(context.Background(), GridOptions{
		Voices:       []string{"tara", "leah"},
		Temperatures: []float64{0.3},
		TopPs:        []float64{0.3},
		RepPenalties: []float64{1.1},
		Text:         "Short grid test.",
		OutputDir:    t.TempDir(),
	})
	if err != nil {
		t.Fatalf("RunGrid: %v", err)
	}

	if len(sum.Runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(sum.Runs))
	}
	if sum.Runs[1].Success || sum.Runs[1].Err == "" {
		t.Errorf("leah run = %+v, want a recorded failure", sum.Runs[1])
	}

	data, err := os.ReadFile(sum.SummaryPath)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	summary := string(data)
	for _, wantLine := range []string{
		"- tara: 1/1 successful\n",
		"- leah: 0/1 successful\n",
		"- leah: No successful runs\n",
	} {
		if !strings.Contains(summary, wantLine) {
			t.Errorf("summary missing %q", wantLine)
		}
	}
}

func TestRunGrid_EmptyText(t *testing.T) {
	t.Parallel()

	r := newTestRunner(t, &stubSpeaker{})
	if _, err := r.RunGrid(context.Background(), GridOptions{OutputDir: t.TempDir()}); err == nil {
		t.Fatal("expected an error for empty text")
	}
}

package bench

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lyrebird-audio/lyrebird/internal/synth"
)

func sweepInput(t *testing.T) string {
	t.Helper()
	// 27 sentences of 45 characters each, longer than the default test length.
	return writeInputFile(t, strings.Repeat("The quick brown fox jumps over the lazy dog. ", 27))
}

func TestRunTemperature(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	speaker := &stubSpeaker{}
	r := newTestRunner(t, speaker)
	md := testMetadata()

	sum, err := r.RunTemperature(context.Background(), md, SweepOptions{
		InputFile: sweepInput(t),
		Voice:     "tara",
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("RunTemperature: %v", err)
	}

	if len(sum.Results) != len(TemperatureValues) {
		t.Fatalf("results = %d, want %d", len(sum.Results), len(TemperatureValues))
	}
	if sum.Recommended == nil {
		t.Error("expected a recommended temperature")
	}

	calls := speaker.requests()
	if len(calls) != len(TemperatureValues) {
		t.Fatalf("synthesize calls = %d, want %d", len(calls), len(TemperatureValues))
	}
	for i, call := range calls {
		if call.Temperature != TemperatureValues[i] {
			t.Errorf("call %d temperature = %v, want %v", i, call.Temperature, TemperatureValues[i])
		}
		if call.TopP != 0.9 || call.RepeatPenalty != 1.2 {
			t.Errorf("call %d fixed params = %v/%v, want 0.9/1.2", i, call.TopP, call.RepeatPenalty)
		}
	}
	// Samples are truncated to the default test length.
	if n := utf8.RuneCountInString(calls[0].Text); n != DefaultTestLength {
		t.Errorf("sample length = %d, want %d", n, DefaultTestLength)
	}
	// Whole values keep a .0 suffix in file names.
	if want := filepath.Join(outDir, "temperature_test", "temp_1.0.wav"); calls[5].OutputPath != want {
		t.Errorf("call 5 OutputPath = %q, want %q", calls[5].OutputPath, want)
	}

	if md.Tests.Temperature == nil || md.Tests.Temperature.TextLength != DefaultTestLength {
		t.Errorf("Tests.Temperature = %+v", md.Tests.Temperature)
	}
	if len(md.Results.Temperature) != len(TemperatureValues) {
		t.Errorf("metadata rows = %d, want %d", len(md.Results.Temperature), len(TemperatureValues))
	}
	if md.Recommended.Temperature == nil {
		t.Error("metadata missing recommended temperature")
	}

	f, err := os.Open(filepath.Join(outDir, "temperature_test", "temperature_results.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != len(TemperatureValues)+1 {
		t.Fatalf("csv records = %d, want %d", len(records), len(TemperatureValues)+1)
	}
	if records[0][0] != "Temperature" {
		t.Errorf("csv header = %q, want Temperature", records[0][0])
	}
	if records[1][0] != "0.1" || records[6][0] != "1.0" {
		t.Errorf("csv values = %q, %q, want 0.1, 1.0", records[1][0], records[6][0])
	}
}

func TestRunTopP(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	speaker := &stubSpeaker{}
	r := newTestRunner(t, speaker)
	md := testMetadata()

	if _, err := r.RunTopP(context.Background(), md, SweepOptions{
		InputFile: sweepInput(t),
		Voice:     "tara",
		OutputDir: outDir,
	}); err != nil {
		t.Fatalf("RunTopP: %v", err)
	}

	calls := speaker.requests()
	if len(calls) != len(TopPValues) {
		t.Fatalf("synthesize calls = %d, want %d", len(calls), len(TopPValues))
	}
	for i, call := range calls {
		if call.TopP != TopPValues[i] {
			t.Errorf("call %d top_p = %v, want %v", i, call.TopP, TopPValues[i])
		}
		if call.Temperature != 0.7 || call.RepeatPenalty != 1.2 {
			t.Errorf("call %d fixed params = %v/%v, want 0.7/1.2", i, call.Temperature, call.RepeatPenalty)
		}
	}
	if want := filepath.Join(outDir, "top_p_test", "top_p_0.95.wav"); calls[5].OutputPath != want {
		t.Errorf("call 5 OutputPath = %q, want %q", calls[5].OutputPath, want)
	}
	if md.Recommended.TopP == nil {
		t.Error("metadata missing recommended top-p")
	}
}

func TestRunRepetitionPenalty(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	speaker := &stubSpeaker{}
	r := newTestRunner(t, speaker)
	md := testMetadata()

	if _, err := r.RunRepetitionPenalty(context.Background(), md, SweepOptions{
		InputFile: sweepInput(t),
		Voice:     "tara",
		OutputDir: outDir,
	}); err != nil {
		t.Fatalf("RunRepetitionPenalty: %v", err)
	}

	calls := speaker.requests()
	if len(calls) != len(RepetitionPenaltyValues) {
		t.Fatalf("synthesize calls = %d, want %d", len(calls), len(RepetitionPenaltyValues))
	}
	for i, call := range calls {
		if call.RepeatPenalty != RepetitionPenaltyValues[i] {
			t.Errorf("call %d penalty = %v, want %v", i, call.RepeatPenalty, RepetitionPenaltyValues[i])
		}
		if call.Temperature != 0.7 || call.TopP != 0.9 {
			t.Errorf("call %d fixed params = %v/%v, want 0.7/0.9", i, call.Temperature, call.TopP)
		}
	}
	if want := filepath.Join(outDir, "repetition_penalty_test", "rep_penalty_2.0.wav"); calls[6].OutputPath != want {
		t.Errorf("call 6 OutputPath = %q, want %q", calls[6].OutputPath, want)
	}

	f, err := os.Open(filepath.Join(outDir, "repetition_penalty_test", "repetition_penalty_results.csv"))
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if records[0][0] != "Repetition Penalty" {
		t.Errorf("csv header = %q, want Repetition Penalty", records[0][0])
	}
}

func TestRunSweep_RecordsFailures(t *testing.T) {
	t.Parallel()

	outDir := t.TempDir()
	speaker := &stubSpeaker{
		fail: func(req synth.Request) error {
			if req.Temperature == 0.5 {
				return errors.New("incoherent output")
			}
			return nil
		},
	}
	r := newTestRunner(t, speaker)
	md := testMetadata()

	sum, err := r.RunTemperature(context.Background(), md, SweepOptions{
		InputFile: sweepInput(t),
		Voice:     "tara",
		OutputDir: outDir,
	})
	if err != nil {
		t.Fatalf("RunTemperature: %v", err)
	}

	// A failed value is recorded but does not stop the sweep.
	if len(sum.Results) != len(TemperatureValues) {
		t.Fatalf("results = %d, want %d", len(sum.Results), len(TemperatureValues))
	}
	if sum.Results[2].Success {
		t.Error("temperature 0.5 should have failed")
	}
	if sum.Results[2].AudioFile != nil {
		t.Error("failed result should have no audio file")
	}
	if sum.Recommended == nil {
		t.Error("expected a recommendation from the remaining successes")
	}
}

func TestRunSweep_AllFailed(t *testing.T) {
	t.Parallel()

	speaker := &stubSpeaker{
		fail: func(synth.Request) error { return errors.New("server down") },
	}
	r := newTestRunner(t, speaker)
	md := testMetadata()

	sum, err := r.RunTemperature(context.Background(), md, SweepOptions{
		InputFile: sweepInput(t),
		Voice:     "tara",
		OutputDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("RunTemperature: %v", err)
	}
	if sum.Recommended != nil {
		t.Errorf("Recommended = %v, want nil when every value failed", *sum.Recommended)
	}
	if md.Recommended.Temperature != nil {
		t.Error("metadata should carry no recommendation")
	}
}

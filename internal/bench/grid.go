package bench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hekmon/liveprogress/v2"

	"github.com/lyrebird-audio/lyrebird/internal/synth"
	"github.com/lyrebird-audio/lyrebird/internal/voice"
)

// Default parameter grids, spanning each range in four steps.
var (
	DefaultGridTemperatures = []float64{0.3, 0.6, 0.9, 1.2}
	DefaultGridTopPs        = []float64{0.3, 0.6, 0.8, 0.95}
	DefaultGridRepPenalties = []float64{1.1, 1.3, 1.5, 1.8}
)

// DefaultGridText is spoken when no input text is supplied.
const DefaultGridText = "This is a test of the Orpheus text-to-speech system with different parameters. How does it sound to you?"

// DefaultSampleDuration is the target sample length in seconds; longer
// input text is truncated to roughly this much speech.
const DefaultSampleDuration = 3.0

// EstimatedSecondsPerRun is the planning figure for one generation,
// taken from typical benchmark timings.
const EstimatedSecondsPerRun = 50.0

// charsPerSecond approximates how much text fits into a second of speech.
const charsPerSecond = 25

// GridOptions configures a grid search. Zero values take the defaults.
type GridOptions struct {
	Voices         []string
	Temperatures   []float64
	TopPs          []float64
	RepPenalties   []float64
	Text           string
	OutputDir      string
	SampleDuration float64
	MaxTokens      int
}

// GridPlan summarises a grid before it runs.
type GridPlan struct {
	Combinations int
	Estimated    time.Duration
}

// PlanGrid reports the combination count and a runtime estimate for the
// given grid.
func PlanGrid(opts GridOptions) GridPlan {
	opts = opts.withDefaults()
	n := len(opts.Voices) * len(opts.Temperatures) * len(opts.TopPs) * len(opts.RepPenalties)
	return GridPlan{
		Combinations: n,
		Estimated:    time.Duration(n) * time.Duration(EstimatedSecondsPerRun*float64(time.Second)),
	}
}

func (o GridOptions) withDefaults() GridOptions {
	if len(o.Voices) == 0 {
		o.Voices = voice.Names
	}
	if len(o.Temperatures) == 0 {
		o.Temperatures = DefaultGridTemperatures
	}
	if len(o.TopPs) == 0 {
		o.TopPs = DefaultGridTopPs
	}
	if len(o.RepPenalties) == 0 {
		o.RepPenalties = DefaultGridRepPenalties
	}
	if o.SampleDuration <= 0 {
		o.SampleDuration = DefaultSampleDuration
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultSampleMaxTokens
	}
	return o
}

// GridRun records one parameter combination attempt.
type GridRun struct {
	Voice             string
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
	Success           bool
	Time              float64
	File              string
	Err               string
}

// GridSummary aggregates a completed grid search.
type GridSummary struct {
	Runs []GridRun

	// Text is the sample actually spoken, after duration truncation.
	Text string

	// TotalTime is the wall-clock duration of the whole search in seconds.
	TotalTime float64

	// SummaryPath is the written grid_search_summary.txt.
	SummaryPath string
}

// TruncateForDuration trims text to roughly the given seconds of speech,
// cutting back to the last sentence end inside the budget.
func TruncateForDuration(text string, seconds float64) string {
	limit := int(seconds * charsPerSecond)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	trimmed := string(runes[:limit])
	if i := strings.LastIndex(trimmed, "."); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed + "."
}

// RunGrid generates one sample per voice and parameter combination into
// {OutputDir}/{voice}/ and writes grid_search_summary.txt when done.
func (r *Runner) RunGrid(ctx context.Context, opts GridOptions) (*GridSummary, error) {
	opts = opts.withDefaults()
	if opts.Text == "" {
		return nil, errors.New("bench: empty grid text")
	}

	text := TruncateForDuration(opts.Text, opts.SampleDuration)
	total := len(opts.Voices) * len(opts.Temperatures) * len(opts.TopPs) * len(opts.RepPenalties)

	var (
		bar    *liveprogress.Bar
		status statusLine
	)
	if r.progress {
		bar = liveprogress.AddBar(
			liveprogress.WithTotal(uint64(total)),
			liveprogress.WithAppendPercent(liveprogress.BaseStyle()),
			liveprogress.WithPrependDecorator(func(*liveprogress.Bar) string {
				return "Grid Search Progress "
			}),
			liveprogress.WithAppendDecorator(func(*liveprogress.Bar) string {
				return status.get()
			}),
		)
		defer liveprogress.RemoveBar(bar)
	}

	start := time.Now()
	runs := make([]GridRun, 0, total)
	runCount := 0

	for _, voiceName := range opts.Voices {
		voiceDir := filepath.Join(opts.OutputDir, voiceName)
		if err := os.MkdirAll(voiceDir, 0o755); err != nil {
			return nil, fmt.Errorf("bench: create %q: %w", voiceDir, err)
		}

		for _, temp := range opts.Temperatures {
			for _, topP := range opts.TopPs {
				for _, rep := range opts.RepPenalties {
					if err := r.wait(ctx); err != nil {
						return nil, err
					}
					runCount++

					filename := fmt.Sprintf("%s_temp_%.1f_top_p_%.2f_rep_penalty_%.1f.wav",
						voiceName, temp, topP, rep)
					outPath := filepath.Join(voiceDir, filename)

					runStart := time.Now()
					_, err := r.speaker.Synthesize(ctx, synth.Request{
						Text:          text,
						Voice:         voiceName,
						Temperature:   temp,
						TopP:          topP,
						RepeatPenalty: rep,
						MaxTokens:     opts.MaxTokens,
						OutputPath:    outPath,
					})
					runTime := time.Since(runStart).Seconds()

					run := GridRun{
						Voice:             voiceName,
						Temperature:       temp,
						TopP:              topP,
						RepetitionPenalty: rep,
					}
					if err != nil {
						run.Err = err.Error()
						r.printf("\nError with %s, temp=%s, top_p=%s, rep_penalty=%s: %v\n",
							voiceName, formatFloat(temp), formatFloat(topP), formatFloat(rep), err)
					} else {
						run.Success = true
						run.Time = runTime
						run.File = outPath

						elapsed := time.Since(start)
						estimated := time.Duration(float64(elapsed) / float64(runCount) * float64(total))
						status.set(fmt.Sprintf(" | %s temp=%.1f top_p=%.2f rep_penalty=%.1f time=%.2fs ETA %s",
							voiceName, temp, topP, rep, runTime, FormatETA(estimated-elapsed)))
					}
					runs = append(runs, run)
					if bar != nil {
						bar.CurrentAdd(1)
					}
				}
			}
		}
	}

	summary := &GridSummary{
		Runs:      runs,
		Text:      text,
		TotalTime: time.Since(start).Seconds(),
	}
	path, err := writeGridSummary(opts, summary)
	if err != nil {
		return nil, err
	}
	summary.SummaryPath = path

	r.printf("\nGrid search complete! Results saved to %s\n", opts.OutputDir)
	r.printf("Summary file: %s\n", path)
	return summary, nil
}

// writeGridSummary renders grid_search_summary.txt into the output
// directory: totals, parameter ranges, per-voice success counts, and the
// fastest combination per voice with its latency percentiles.
func writeGridSummary(opts GridOptions, s *GridSummary) (string, error) {
	path := filepath.Join(opts.OutputDir, "grid_search_summary.txt")

	perRuns := make(map[string][]GridRun, len(opts.Voices))
	for _, run := range s.Runs {
		perRuns[run.Voice] = append(perRuns[run.Voice], run)
	}
	perVoiceRuns := len(opts.Temperatures) * len(opts.TopPs) * len(opts.RepPenalties)

	var b strings.Builder
	b.WriteString("Orpheus TTS Grid Search\n")
	b.WriteString("======================\n\n")
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Total Runs: %d\n", len(s.Runs))
	fmt.Fprintf(&b, "Total Time: %s\n\n", FormatETA(time.Duration(s.TotalTime*float64(time.Second))))

	b.WriteString("Parameter Ranges:\n")
	fmt.Fprintf(&b, "- Voices: %s\n", strings.Join(opts.Voices, ", "))
	fmt.Fprintf(&b, "- Temperatures: %s\n", joinFloats(opts.Temperatures))
	fmt.Fprintf(&b, "- Top-p values: %s\n", joinFloats(opts.TopPs))
	fmt.Fprintf(&b, "- Repetition penalties: %s\n", joinFloats(opts.RepPenalties))
	fmt.Fprintf(&b, "- Max tokens: %d\n\n", opts.MaxTokens)

	fmt.Fprintf(&b, "Test text: %q\n\n", s.Text)

	b.WriteString("Results Summary:\n")
	for _, voiceName := range opts.Voices {
		successes := 0
		for _, run := range perRuns[voiceName] {
			if run.Success {
				successes++
			}
		}
		fmt.Fprintf(&b, "- %s: %d/%d successful\n", voiceName, successes, perVoiceRuns)
	}

	b.WriteString("\nBest combinations for each voice (fastest successful run):\n")
	for _, voiceName := range opts.Voices {
		var best *GridRun
		window := newLatencyWindow(perVoiceRuns)
		for i, run := range perRuns[voiceName] {
			if !run.Success {
				continue
			}
			window.add(time.Duration(run.Time * float64(time.Second)))
			if best == nil || run.Time < best.Time {
				best = &perRuns[voiceName][i]
			}
		}
		if best == nil {
			fmt.Fprintf(&b, "- %s: No successful runs\n", voiceName)
			continue
		}
		fmt.Fprintf(&b, "- %s: temp=%s, top_p=%s, rep_penalty=%s, time=%.2fs\n",
			voiceName, formatFloat(best.Temperature), formatFloat(best.TopP),
			formatFloat(best.RepetitionPenalty), best.Time)
		fmt.Fprintf(&b, "  File: %s\n", best.File)
		p := window.percentiles()
		fmt.Fprintf(&b, "  Latency: p50=%.2fs p95=%.2fs\n", p.P50.Seconds(), p.P95.Seconds())
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

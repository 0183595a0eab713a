package bench

import (
	"context"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lyrebird-audio/lyrebird/internal/prompt"
	"github.com/lyrebird-audio/lyrebird/internal/synth"
)

// Parameter values exercised by each sweep.
var (
	TemperatureValues       = []float64{0.1, 0.3, 0.5, 0.7, 0.9, 1.0, 1.2}
	TopPValues              = []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.95, 1.0}
	RepetitionPenaltyValues = []float64{1.0, 1.1, 1.2, 1.3, 1.5, 1.8, 2.0}
)

// SweepOptions configures one parameter sweep. Zero values take the sweep
// defaults; the swept parameter's own field is ignored.
type SweepOptions struct {
	InputFile  string
	Voice      string
	OutputDir  string
	TextLength int

	// Fixed parameters for the sweep.
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
}

// SweepResult records one parameter value attempt.
type SweepResult struct {
	Value     float64
	Success   bool
	Time      float64
	AudioFile *string
}

// SweepSummary aggregates a completed parameter sweep.
type SweepSummary struct {
	Results []SweepResult

	// Recommended is the fastest successful value, nil when every value
	// failed.
	Recommended *float64
}

// sweepSpec describes one parameter sweep to the shared engine.
type sweepSpec struct {
	title      string // section banner, e.g. "Temperature"
	label      string // progress label, e.g. "temperature"
	dir        string // subdirectory under the run directory
	csvName    string
	csvHeader  string // value column header
	filePrefix string // audio file prefix, e.g. "temp_"
	values     []float64
	request    func(value float64, text string) synth.Request
}

// RunTemperature sweeps sampling temperature at a fixed text length and
// records which value generates fastest.
func (r *Runner) RunTemperature(ctx context.Context, md *Metadata, opts SweepOptions) (*SweepSummary, error) {
	if opts.TextLength <= 0 {
		opts.TextLength = DefaultTestLength
	}
	if opts.TopP == 0 {
		opts.TopP = baselineTopP
	}
	if opts.RepetitionPenalty == 0 {
		opts.RepetitionPenalty = baselineRepPenalty
	}
	md.Tests.Temperature = &SweepConfig{
		Values:            TemperatureValues,
		TextLength:        opts.TextLength,
		TopP:              opts.TopP,
		RepetitionPenalty: opts.RepetitionPenalty,
	}

	sum, err := r.runSweep(ctx, opts, sweepSpec{
		title:      "Temperature",
		label:      "temperature",
		dir:        "temperature_test",
		csvName:    "temperature_results.csv",
		csvHeader:  "Temperature",
		filePrefix: "temp_",
		values:     TemperatureValues,
		request: func(value float64, text string) synth.Request {
			return synth.Request{
				Text:          text,
				Voice:         opts.Voice,
				Temperature:   value,
				TopP:          opts.TopP,
				RepeatPenalty: opts.RepetitionPenalty,
			}
		},
	})
	if err != nil {
		return nil, err
	}
	for _, res := range sum.Results {
		md.Results.Temperature = append(md.Results.Temperature, TemperatureRow{
			Temperature: res.Value,
			Success:     res.Success,
			Time:        res.Time,
			AudioFile:   res.AudioFile,
		})
	}
	md.Recommended.Temperature = sum.Recommended
	return sum, nil
}

// RunTopP sweeps the nucleus sampling bound at a fixed text length.
func (r *Runner) RunTopP(ctx context.Context, md *Metadata, opts SweepOptions) (*SweepSummary, error) {
	if opts.TextLength <= 0 {
		opts.TextLength = DefaultTestLength
	}
	if opts.Temperature == 0 {
		opts.Temperature = baselineTemperature
	}
	if opts.RepetitionPenalty == 0 {
		opts.RepetitionPenalty = baselineRepPenalty
	}
	md.Tests.TopP = &SweepConfig{
		Values:            TopPValues,
		TextLength:        opts.TextLength,
		Temperature:       opts.Temperature,
		RepetitionPenalty: opts.RepetitionPenalty,
	}

	sum, err := r.runSweep(ctx, opts, sweepSpec{
		title:      "Top-p",
		label:      "top-p",
		dir:        "top_p_test",
		csvName:    "top_p_results.csv",
		csvHeader:  "Top-p",
		filePrefix: "top_p_",
		values:     TopPValues,
		request: func(value float64, text string) synth.Request {
			return synth.Request{
				Text:          text,
				Voice:         opts.Voice,
				Temperature:   opts.Temperature,
				TopP:          value,
				RepeatPenalty: opts.RepetitionPenalty,
			}
		},
	})
	if err != nil {
		return nil, err
	}
	for _, res := range sum.Results {
		md.Results.TopP = append(md.Results.TopP, TopPRow{
			TopP:      res.Value,
			Success:   res.Success,
			Time:      res.Time,
			AudioFile: res.AudioFile,
		})
	}
	md.Recommended.TopP = sum.Recommended
	return sum, nil
}

// RunRepetitionPenalty sweeps the repetition penalty at a fixed text length.
func (r *Runner) RunRepetitionPenalty(ctx context.Context, md *Metadata, opts SweepOptions) (*SweepSummary, error) {
	if opts.TextLength <= 0 {
		opts.TextLength = DefaultTestLength
	}
	if opts.Temperature == 0 {
		opts.Temperature = baselineTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = baselineTopP
	}
	md.Tests.RepetitionPenalty = &SweepConfig{
		Values:      RepetitionPenaltyValues,
		TextLength:  opts.TextLength,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}

	sum, err := r.runSweep(ctx, opts, sweepSpec{
		title:      "Repetition Penalty",
		label:      "repetition penalty",
		dir:        "repetition_penalty_test",
		csvName:    "repetition_penalty_results.csv",
		csvHeader:  "Repetition Penalty",
		filePrefix: "rep_penalty_",
		values:     RepetitionPenaltyValues,
		request: func(value float64, text string) synth.Request {
			return synth.Request{
				Text:          text,
				Voice:         opts.Voice,
				Temperature:   opts.Temperature,
				TopP:          opts.TopP,
				RepeatPenalty: value,
			}
		},
	})
	if err != nil {
		return nil, err
	}
	for _, res := range sum.Results {
		md.Results.RepetitionPenalty = append(md.Results.RepetitionPenalty, RepetitionRow{
			RepetitionPenalty: res.Value,
			Success:           res.Success,
			Time:              res.Time,
			AudioFile:         res.AudioFile,
		})
	}
	md.Recommended.RepetitionPenalty = sum.Recommended
	return sum, nil
}

// runSweep is the shared engine behind the three parameter sweeps: read
// the text sample once, generate it at every value, record the outcomes,
// and pick the fastest success.
func (r *Runner) runSweep(ctx context.Context, opts SweepOptions, spec sweepSpec) (*SweepSummary, error) {
	r.printf("\n=== Benchmarking %s ===\n", spec.title)

	sample, actualLength, err := readSample(opts.InputFile, opts.TextLength)
	if err != nil {
		return nil, err
	}
	if r.verbose {
		r.printf("Using text sample of %d characters (%d tokens)\n",
			actualLength, prompt.EstimateTokens(sample, opts.Voice))
	}

	sweepDir := filepath.Join(opts.OutputDir, spec.dir)
	headers := []string{spec.csvHeader, "Success", "Time (s)", "Audio File"}
	var (
		rows    [][]string
		results []SweepResult
	)

	for _, value := range spec.values {
		if err := r.wait(ctx); err != nil {
			return nil, err
		}

		if r.verbose {
			r.printf("\nTesting %s: %s\n", spec.label, formatFloat(value))
		} else {
			r.printf("Testing %s: %s...", spec.label, formatFloat(value))
		}

		audioFile := spec.filePrefix + formatFloat(value) + ".wav"
		req := spec.request(value, sample)
		req.OutputPath = filepath.Join(sweepDir, audioFile)

		start := time.Now()
		_, runErr := r.speaker.Synthesize(ctx, req)
		elapsed := time.Since(start).Seconds()

		result := SweepResult{Value: value}
		if runErr == nil {
			result.Success = true
			result.Time = elapsed
			result.AudioFile = &audioFile
			if !r.verbose {
				r.printf(" Success in %.2fs\n", elapsed)
			}
		} else {
			elapsed = 0
			audioFile = "failed"
			if r.verbose {
				r.printf("Failed: %v\n", runErr)
			} else {
				r.printf(" Failed: %v\n", runErr)
			}
		}

		rows = append(rows, []string{
			formatFloat(value),
			strconv.FormatBool(result.Success),
			strconv.FormatFloat(elapsed, 'f', -1, 64),
			audioFile,
		})
		results = append(results, result)
	}

	csvPath, err := writeCSV(sweepDir, spec.csvName, headers, rows)
	if err != nil {
		return nil, err
	}
	r.printf("Saved %s test results to %s\n", spec.label, csvPath)

	sum := &SweepSummary{Results: results}
	minTime := 0.0
	for _, result := range results {
		if result.Success && (sum.Recommended == nil || result.Time < minTime) {
			minTime = result.Time
			value := result.Value
			sum.Recommended = &value
		}
	}
	if sum.Recommended != nil {
		r.printf("Recommended %s for speed: %s\n", spec.label, formatFloat(*sum.Recommended))
	} else {
		r.printf("No successful %s found\n", spec.label)
	}
	return sum, nil
}

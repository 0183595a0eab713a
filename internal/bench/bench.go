// Package bench drives synthesis sweeps against a running model stack:
// text length and sampling parameter benchmarks, full parameter grid
// searches, and per-voice showcase generation. Each run writes WAV samples
// plus CSV, JSON, and text reports into a structured results directory.
package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hekmon/liveprogress/v2"
	"golang.org/x/time/rate"

	"github.com/lyrebird-audio/lyrebird/internal/synth"
)

// TimestampLayout names run directories and default run names.
const TimestampLayout = "20060102_150405"

// Sweep defaults, matching the ranges the model was profiled with.
const (
	DefaultMaxChars   = 3000
	DefaultLengthStep = 250
	DefaultTestLength = 1000
)

// DefaultSampleMaxTokens caps generation for grid and showcase samples,
// which speak short texts and never need the full token budget.
const DefaultSampleMaxTokens = 8192

// Baseline generation parameters held fixed while another is swept.
const (
	baselineTemperature = 0.7
	baselineTopP        = 0.9
	baselineRepPenalty  = 1.2
)

// Speaker is the synthesis surface the harness drives.
type Speaker interface {
	Synthesize(ctx context.Context, req synth.Request) (*synth.Result, error)
}

// Ensure the synthesizer satisfies Speaker at compile time.
var _ Speaker = (*synth.Synthesizer)(nil)

// Runner executes benchmark sweeps against a Speaker.
type Runner struct {
	speaker  Speaker
	pace     *rate.Limiter
	out      io.Writer
	verbose  bool
	progress bool
}

// RunnerOption adjusts Runner behavior.
type RunnerOption func(*Runner)

// WithPace enforces a minimum interval between generation runs, letting a
// shared model server breathe between long sweeps.
func WithPace(interval time.Duration) RunnerOption {
	return func(r *Runner) {
		if interval > 0 {
			r.pace = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithVerbose switches run progress from single-line updates to full output.
func WithVerbose(v bool) RunnerOption {
	return func(r *Runner) { r.verbose = v }
}

// WithOutput redirects progress output, which defaults to stdout.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) { r.out = w }
}

// WithProgress enables live progress bars for grid and showcase runs. The
// caller owns starting and stopping the liveprogress renderer.
func WithProgress(enabled bool) RunnerOption {
	return func(r *Runner) { r.progress = enabled }
}

// NewRunner creates a Runner around the given Speaker.
func NewRunner(speaker Speaker, opts ...RunnerOption) (*Runner, error) {
	if speaker == nil {
		return nil, errors.New("bench: nil speaker")
	}
	r := &Runner{speaker: speaker, out: os.Stdout}
	for _, opt := range opts {
		opt(r)
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	return r, nil
}

// wait applies inter-run pacing and reports context cancellation.
func (r *Runner) wait(ctx context.Context) error {
	if r.pace != nil {
		return r.pace.Wait(ctx)
	}
	return ctx.Err()
}

// printf writes progress output, routing around the live progress bars when
// they are active.
func (r *Runner) printf(format string, args ...any) {
	w := r.out
	if r.progress {
		w = liveprogress.Bypass()
	}
	fmt.Fprintf(w, format, args...)
}

// Metadata is the full record of a benchmark run, serialized to
// metadata.json in the run directory.
type Metadata struct {
	Timestamp        string               `json:"timestamp"`
	RunName          string               `json:"run_name"`
	Voice            string               `json:"voice"`
	SystemInfo       SystemInfo           `json:"system_info"`
	Parameters       RunParameters        `json:"parameters"`
	InputFileDetails *InputFileDetails    `json:"input_file_details,omitempty"`
	Tests            TestConfigs          `json:"tests"`
	Results          TestResults          `json:"results"`
	Recommended      *RecommendedSettings `json:"recommended_settings"`
}

// SystemInfo records the environment a benchmark ran under.
type SystemInfo struct {
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	MaxTokens int    `json:"max_tokens"`
}

// RunParameters records the benchmark invocation.
type RunParameters struct {
	InputFile       string `json:"input_file"`
	MaxLength       int    `json:"max_length"`
	LengthStep      int    `json:"length_step"`
	TestLength      int    `json:"test_length"`
	SkipLength      bool   `json:"skip_length"`
	SkipTemperature bool   `json:"skip_temperature"`
	SkipTopP        bool   `json:"skip_top_p"`
	SkipRepPenalty  bool   `json:"skip_rep_penalty"`
	Verbose         bool   `json:"verbose"`
}

// InputFileDetails describes the benchmark input text.
type InputFileDetails struct {
	Path        string `json:"path"`
	TotalChars  int    `json:"total_chars"`
	TotalTokens int    `json:"total_tokens"`
}

// TestConfigs holds the configuration each sweep ran with. A nil entry
// means the sweep was skipped.
type TestConfigs struct {
	TextLength        *LengthConfig `json:"text_length"`
	Temperature       *SweepConfig  `json:"temperature"`
	TopP              *SweepConfig  `json:"top_p"`
	RepetitionPenalty *SweepConfig  `json:"repetition_penalty"`
}

// LengthConfig is the text length sweep configuration.
type LengthConfig struct {
	MaxChars          int     `json:"max_chars"`
	Step              int     `json:"step"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

// SweepConfig is a parameter sweep configuration. The fixed parameters not
// being swept carry their baseline values.
type SweepConfig struct {
	Values            []float64 `json:"values"`
	TextLength        int       `json:"text_length"`
	Temperature       float64   `json:"temperature,omitempty"`
	TopP              float64   `json:"top_p,omitempty"`
	RepetitionPenalty float64   `json:"repetition_penalty,omitempty"`
}

// TestResults holds per-run rows for each sweep.
type TestResults struct {
	TextLength        []LengthResult   `json:"text_length"`
	Temperature       []TemperatureRow `json:"temperature"`
	TopP              []TopPRow        `json:"top_p"`
	RepetitionPenalty []RepetitionRow  `json:"repetition_penalty"`
}

// LengthResult records one text length attempt.
type LengthResult struct {
	Length    int     `json:"length"`
	Tokens    int     `json:"tokens"`
	Success   bool    `json:"success"`
	Time      float64 `json:"time"`
	AudioFile *string `json:"audio_file"`
}

// TemperatureRow records one temperature attempt.
type TemperatureRow struct {
	Temperature float64 `json:"temperature"`
	Success     bool    `json:"success"`
	Time        float64 `json:"time"`
	AudioFile   *string `json:"audio_file"`
}

// TopPRow records one top-p attempt.
type TopPRow struct {
	TopP      float64 `json:"top_p"`
	Success   bool    `json:"success"`
	Time      float64 `json:"time"`
	AudioFile *string `json:"audio_file"`
}

// RepetitionRow records one repetition penalty attempt.
type RepetitionRow struct {
	RepetitionPenalty float64 `json:"repetition_penalty"`
	Success           bool    `json:"success"`
	Time              float64 `json:"time"`
	AudioFile         *string `json:"audio_file"`
}

// RecommendedSettings accumulates the settings each sweep recommends.
type RecommendedSettings struct {
	MaxLength         *int     `json:"max_length,omitempty"`
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
}

// NewMetadata initializes the metadata record for a benchmark run.
func NewMetadata(timestamp, runName, voice string, maxTokens int, params RunParameters) *Metadata {
	return &Metadata{
		Timestamp: timestamp,
		RunName:   runName,
		Voice:     voice,
		SystemInfo: SystemInfo{
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			MaxTokens: maxTokens,
		},
		Parameters: params,
		Results: TestResults{
			TextLength:        []LengthResult{},
			Temperature:       []TemperatureRow{},
			TopP:              []TopPRow{},
			RepetitionPenalty: []RepetitionRow{},
		},
		Recommended: &RecommendedSettings{},
	}
}

// readSample reads at most limit runes from path. A non-positive limit
// returns the whole file.
func readSample(path string, limit int) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("bench: read input %q: %w", path, err)
	}
	runes := []rune(string(data))
	if limit > 0 && limit < len(runes) {
		runes = runes[:limit]
	}
	return string(runes), len(runes), nil
}

// formatFloat renders a parameter value the way result files name it:
// shortest decimal form, with a trailing .0 for whole numbers.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// joinFloats renders a value list for the summary reports.
func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ", ")
}

// statusLine carries the current run description into a progress bar
// decorator, which renders on a separate goroutine.
type statusLine struct {
	mu sync.Mutex
	s  string
}

func (l *statusLine) set(s string) {
	l.mu.Lock()
	l.s = s
	l.mu.Unlock()
}

func (l *statusLine) get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s
}

package bench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hekmon/liveprogress/v2"

	"github.com/lyrebird-audio/lyrebird/internal/synth"
	"github.com/lyrebird-audio/lyrebird/internal/voice"
)

// ShowcaseOptions configures a per-voice showcase generation.
type ShowcaseOptions struct {
	// InputFile is recorded in the summary; the text itself comes in Text.
	InputFile string
	Text      string
	OutputDir string

	// Voices to generate; unknown names are dropped. Empty means all.
	Voices []string

	MaxTokens int
}

// ShowcaseRun records one voice generation.
type ShowcaseRun struct {
	Voice   string
	Params  voice.Params
	Success bool
	Time    float64
	File    string
	Err     string
}

// ShowcaseSummary aggregates a completed showcase.
type ShowcaseSummary struct {
	Runs        []ShowcaseRun
	TotalTime   float64
	SummaryPath string
}

// RunShowcase speaks the input text once per voice, each with that voice's
// optimal parameters, into {OutputDir}/{voice}.wav, and writes summary.txt.
func (r *Runner) RunShowcase(ctx context.Context, opts ShowcaseOptions) (*ShowcaseSummary, error) {
	if opts.Text == "" {
		return nil, errors.New("bench: empty showcase text")
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultSampleMaxTokens
	}
	selected := opts.Voices
	if len(selected) == 0 {
		selected = voice.Names
	}
	voices := make([]string, 0, len(selected))
	for _, name := range selected {
		if voice.Known(name) {
			voices = append(voices, name)
		}
	}

	var (
		bar    *liveprogress.Bar
		status statusLine
	)
	if r.progress {
		bar = liveprogress.AddBar(
			liveprogress.WithTotal(uint64(len(voices))),
			liveprogress.WithAppendPercent(liveprogress.BaseStyle()),
			liveprogress.WithPrependDecorator(func(*liveprogress.Bar) string {
				return "Generating Voices "
			}),
			liveprogress.WithAppendDecorator(func(*liveprogress.Bar) string {
				return status.get()
			}),
		)
		defer liveprogress.RemoveBar(bar)
	}

	r.printf("\nGenerating audio for %d voices using optimal parameters\n", len(voices))
	r.printf("Input text: %s (%d characters)\n", opts.InputFile, utf8.RuneCountInString(opts.Text))

	if utf8.RuneCountInString(opts.Text) > synth.DefaultMaxChunkSize {
		chunks := synth.SplitText(opts.Text, synth.DefaultMaxChunkSize)
		r.printf("Text will be split into %d chunks for processing\n", len(chunks))
	}

	start := time.Now()
	runs := make([]ShowcaseRun, 0, len(voices))

	for _, name := range voices {
		if err := r.wait(ctx); err != nil {
			return nil, err
		}

		params := voice.Tuning(name)
		outputFile := filepath.Join(opts.OutputDir, name+".wav")

		voiceStart := time.Now()
		_, err := r.speaker.Synthesize(ctx, synth.Request{
			Text:          opts.Text,
			Voice:         name,
			Temperature:   params.Temperature,
			TopP:          params.TopP,
			RepeatPenalty: params.RepeatPenalty,
			MaxTokens:     opts.MaxTokens,
			OutputPath:    outputFile,
		})
		voiceTime := time.Since(voiceStart).Seconds()

		run := ShowcaseRun{Voice: name, Params: params}
		if err != nil {
			run.Err = err.Error()
			r.printf("\nError with %s: %v\n", name, err)
		} else {
			run.Success = true
			run.Time = voiceTime
			run.File = outputFile
			status.set(fmt.Sprintf(" | %s %.2fs", name, voiceTime))
		}
		runs = append(runs, run)
		if bar != nil {
			bar.CurrentAdd(1)
		}
	}

	summary := &ShowcaseSummary{
		Runs:      runs,
		TotalTime: time.Since(start).Seconds(),
	}
	path, err := writeShowcaseSummary(opts, summary)
	if err != nil {
		return nil, err
	}
	summary.SummaryPath = path

	r.printf("\nAll voices generated in %.2f seconds\n", summary.TotalTime)
	r.printf("Results saved to %s\n", opts.OutputDir)
	r.printf("Summary file: %s\n", path)
	return summary, nil
}

// writeShowcaseSummary renders summary.txt into the output directory.
func writeShowcaseSummary(opts ShowcaseOptions, s *ShowcaseSummary) (string, error) {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("bench: create %q: %w", opts.OutputDir, err)
	}
	path := filepath.Join(opts.OutputDir, "summary.txt")

	var b strings.Builder
	b.WriteString("Orpheus TTS - Best Voices Generation\n")
	b.WriteString("===================================\n\n")
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Input file: %s\n", opts.InputFile)
	fmt.Fprintf(&b, "Text length: %d characters\n", utf8.RuneCountInString(opts.Text))
	fmt.Fprintf(&b, "Total time: %.2f seconds\n\n", s.TotalTime)

	b.WriteString("Voice Categories:\n")
	grouped := voice.ByCategory()
	for _, category := range voice.Categories {
		fmt.Fprintf(&b, "- %s: %s\n", capitalize(string(category)), strings.Join(grouped[category], ", "))
	}
	b.WriteString("\n")

	b.WriteString("Voice Results:\n")
	for _, run := range s.Runs {
		if run.Success {
			fmt.Fprintf(&b, "- %s: Generated in %.2fs with temp=%s, top_p=%s, rep_penalty=%s\n",
				run.Voice, run.Time, formatFloat(run.Params.Temperature),
				formatFloat(run.Params.TopP), formatFloat(run.Params.RepeatPenalty))
			fmt.Fprintf(&b, "  File: %s\n", run.File)
		} else {
			fmt.Fprintf(&b, "- %s: Failed - %s\n", run.Voice, run.Err)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package bench

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lyrebird-audio/lyrebird/internal/prompt"
	"github.com/lyrebird-audio/lyrebird/internal/synth"
)

// TextLengthOptions configures the text length sweep. Zero values take the
// sweep defaults.
type TextLengthOptions struct {
	InputFile string
	Voice     string
	OutputDir string

	MaxChars int
	Step     int

	// Fixed generation parameters for every length.
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
}

// TextLengthSummary aggregates a completed text length sweep.
type TextLengthSummary struct {
	Results             []LengthResult
	MaxSuccessfulLength int
	MaxSuccessfulTokens int
	RecommendedLength   int
}

// RunTextLength generates audio from growing prefixes of the input file
// until a generation fails, recording how much text the model handles in
// one request. Results land in a length_test subdirectory; the recommended
// length is 90% of the largest success.
func (r *Runner) RunTextLength(ctx context.Context, md *Metadata, opts TextLengthOptions) (*TextLengthSummary, error) {
	if opts.MaxChars == 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.Step <= 0 {
		opts.Step = DefaultLengthStep
	}
	if opts.Temperature == 0 {
		opts.Temperature = baselineTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = baselineTopP
	}
	if opts.RepetitionPenalty == 0 {
		opts.RepetitionPenalty = baselineRepPenalty
	}

	r.printf("\n=== Benchmarking Text Length ===\n")

	md.Tests.TextLength = &LengthConfig{
		MaxChars:          opts.MaxChars,
		Step:              opts.Step,
		Temperature:       opts.Temperature,
		TopP:              opts.TopP,
		RepetitionPenalty: opts.RepetitionPenalty,
	}

	fullText, totalChars, err := readSample(opts.InputFile, 0)
	if err != nil {
		return nil, err
	}
	md.InputFileDetails = &InputFileDetails{
		Path:        opts.InputFile,
		TotalChars:  totalChars,
		TotalTokens: prompt.EstimateTokens(fullText, opts.Voice),
	}

	lengthDir := filepath.Join(opts.OutputDir, "length_test")

	headers := []string{"Length (chars)", "Tokens", "Success", "Time (s)", "Audio File"}
	var (
		rows    [][]string
		results []LengthResult
	)

	runes := []rune(fullText)
	limit := min(opts.MaxChars+opts.Step, totalChars)
	for length := opts.Step; length < limit; length += opts.Step {
		if err := r.wait(ctx); err != nil {
			return nil, err
		}

		sample := string(runes[:length])
		tokens := prompt.EstimateTokens(sample, opts.Voice)
		if r.verbose {
			r.printf("\nTesting length: %d chars (%d tokens)\n", length, tokens)
		} else {
			r.printf("Testing length: %d chars (%d tokens)...", length, tokens)
		}

		audioFile := fmt.Sprintf("length_%d.wav", length)
		start := time.Now()
		_, runErr := r.speaker.Synthesize(ctx, synth.Request{
			Text:          sample,
			Voice:         opts.Voice,
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			RepeatPenalty: opts.RepetitionPenalty,
			OutputPath:    filepath.Join(lengthDir, audioFile),
		})
		elapsed := time.Since(start).Seconds()

		result := LengthResult{Length: length, Tokens: tokens}
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
			strconv.Itoa(length),
			strconv.Itoa(tokens),
			strconv.FormatBool(result.Success),
			strconv.FormatFloat(elapsed, 'f', -1, 64),
			audioFile,
		})
		results = append(results, result)
		md.Results.TextLength = append(md.Results.TextLength, result)

		// Larger sizes cannot work once one has failed.
		if !result.Success {
			break
		}
	}

	csvPath, err := writeCSV(lengthDir, "length_results.csv", headers, rows)
	if err != nil {
		return nil, err
	}
	r.printf("Saved length test results to %s\n", csvPath)

	var maxLength, maxTokens int
	for _, result := range results {
		if result.Success && result.Length > maxLength {
			maxLength = result.Length
			maxTokens = result.Tokens
		}
	}
	// 90% of the largest success, leaving headroom for denser text.
	recommended := int(float64(maxLength) * 0.9)
	md.Recommended.MaxLength = &recommended
	md.Recommended.MaxTokens = &maxTokens

	r.printf("Maximum successful text length: %d characters (%d tokens)\n", maxLength, maxTokens)
	r.printf("Recommended maximum length for safety: %d characters\n", recommended)

	return &TextLengthSummary{
		Results:             results,
		MaxSuccessfulLength: maxLength,
		MaxSuccessfulTokens: maxTokens,
		RecommendedLength:   recommended,
	}, nil
}

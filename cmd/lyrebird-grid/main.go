// Command lyrebird-grid runs a parameter grid search across voices,
// temperatures, top-p values, and repetition penalties, generating a short
// audio sample for every combination.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/hekmon/liveprogress/v2"

	"github.com/lyrebird-audio/lyrebird/internal/bench"
	"github.com/lyrebird-audio/lyrebird/internal/config"
	"github.com/lyrebird-audio/lyrebird/internal/observe"
	"github.com/lyrebird-audio/lyrebird/internal/preflight"
	"github.com/lyrebird-audio/lyrebird/internal/synth"
	"github.com/lyrebird-audio/lyrebird/internal/voice"
	"github.com/lyrebird-audio/lyrebird/pkg/codec/snac"
	"github.com/lyrebird-audio/lyrebird/pkg/completion/llamacpp"
)

// defaultConfigPath is tried when no -config flag is given. A missing file
// at this path is not an error; the built-in defaults apply.
const defaultConfigPath = "lyrebird.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	text := flag.String("text", "", "text to use for the grid search")
	inputFile := flag.String("file", "", "read the grid search text from this file")
	outputDir := flag.String("output-dir", "grid_search_results", "directory for grid search results")
	voicesFlag := flag.String("voices", "", "comma-separated voices to test (default: all)")
	tempsFlag := flag.String("temps", "", "comma-separated temperature values")
	topPsFlag := flag.String("top-ps", "", "comma-separated top-p values")
	repsFlag := flag.String("rep-penalties", "", "comma-separated repetition penalty values")
	listVoices := flag.Bool("list-voices", false, "list available voices and exit")
	sampleDuration := flag.Float64("sample-duration", bench.DefaultSampleDuration, "target sample duration in seconds")
	maxTokens := flag.Int("max-tokens", bench.DefaultSampleMaxTokens, "maximum tokens per sample")
	yes := flag.Bool("yes", false, "run without asking for confirmation")
	configPath := flag.String("config", "", "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *listVoices {
		printVoices()
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lyrebird-grid: config file %q not found (copy configs/example.yaml to get started)\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lyrebird-grid: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := cfg.Log.Level
	if *verbose {
		level = config.LogDebug
	}
	slog.SetDefault(newLogger(level))

	slog.Info("lyrebird-grid starting",
		"server", cfg.Server.URL,
		"decoder", cfg.Decoder.URL,
		"log_level", level,
	)

	// ── Grid values ───────────────────────────────────────────────────────────
	voices := parseList(*voicesFlag)
	if len(voices) > 0 {
		var valid, invalid []string
		for _, name := range voices {
			if voice.Known(name) {
				valid = append(valid, name)
			} else {
				invalid = append(invalid, name)
			}
		}
		if len(invalid) > 0 {
			fmt.Printf("Warning: The following voices are not available: %s\n", strings.Join(invalid, ", "))
		}
		voices = valid
		if len(voices) == 0 {
			fmt.Println("No valid voices specified. Exiting.")
			return 1
		}
	} else {
		voices = voice.Names
	}

	temps, err := parseFloats(*tempsFlag, bench.DefaultGridTemperatures)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lyrebird-grid: invalid -temps: %v\n", err)
		return 2
	}
	topPs, err := parseFloats(*topPsFlag, bench.DefaultGridTopPs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lyrebird-grid: invalid -top-ps: %v\n", err)
		return 2
	}
	reps, err := parseFloats(*repsFlag, bench.DefaultGridRepPenalties)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lyrebird-grid: invalid -rep-penalties: %v\n", err)
		return 2
	}

	// ── Grid text ─────────────────────────────────────────────────────────────
	gridText := *text
	if gridText == "" && *inputFile != "" {
		data, err := os.ReadFile(*inputFile)
		if err != nil {
			slog.Error("failed to read input file", "err", err)
			return 1
		}
		gridText = strings.TrimSpace(string(data))
	}
	if gridText == "" {
		gridText = bench.DefaultGridText
	}

	// ── Run directory ─────────────────────────────────────────────────────────
	runDir := filepath.Join(*outputDir, time.Now().Format(bench.TimestampLayout))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		slog.Error("failed to create run directory", "err", err)
		return 1
	}

	// ── Plan and confirm ──────────────────────────────────────────────────────
	opts := bench.GridOptions{
		Voices:         voices,
		Temperatures:   temps,
		TopPs:          topPs,
		RepPenalties:   reps,
		Text:           gridText,
		OutputDir:      runDir,
		SampleDuration: *sampleDuration,
		MaxTokens:      *maxTokens,
	}
	plan := bench.PlanGrid(opts)

	preview := gridText
	if utf8.RuneCountInString(preview) > 80 {
		preview = string([]rune(preview)[:80]) + "..."
	}

	fmt.Println("Orpheus TTS Grid Search")
	fmt.Println("======================")
	fmt.Printf("Voices: %s\n", strings.Join(voices, ", "))
	fmt.Printf("Temperatures: %v\n", temps)
	fmt.Printf("Top-p values: %v\n", topPs)
	fmt.Printf("Repetition penalties: %v\n", reps)
	fmt.Printf("Max tokens: %d\n", *maxTokens)
	fmt.Printf("Total combinations: %d\n", plan.Combinations)
	fmt.Printf("Estimated runtime: %s\n", bench.FormatETA(plan.Estimated))
	fmt.Printf("Output directory: %s\n", runDir)
	fmt.Printf("Test text: %q\n", preview)

	if !*yes {
		fmt.Print("Proceed with grid search? (y/n): ")
		answer := ""
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			answer = strings.ToLower(strings.TrimSpace(scanner.Text()))
		}
		if answer != "y" && answer != "yes" {
			fmt.Println("Grid search canceled.")
			return 0
		}
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "lyrebird-grid"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Clients ───────────────────────────────────────────────────────────────
	provider, err := llamacpp.New(cfg.Server.URL, llamacpp.WithTimeout(cfg.Server.Timeout()))
	if err != nil {
		slog.Error("failed to create completion client", "err", err)
		return 1
	}
	var decoderOpts []snac.Option
	if cfg.Decoder.TimeoutSeconds > 0 {
		decoderOpts = append(decoderOpts, snac.WithTimeout(cfg.Decoder.Timeout()))
	}
	decoder, err := snac.New(cfg.Decoder.URL, decoderOpts...)
	if err != nil {
		slog.Error("failed to create decoder client", "err", err)
		return 1
	}

	// ── Preflight ─────────────────────────────────────────────────────────────
	if err := preflight.Run(ctx,
		preflight.Check{Name: "model server", Probe: provider.Healthcheck},
		preflight.Check{Name: "snac decoder", Probe: decoder.Healthcheck},
	); err != nil {
		slog.Error("preflight failed", "err", err)
		return 1
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	synthesizer, err := synth.New(provider, decoder,
		synth.WithSampleRate(cfg.Synthesis.SampleRate),
		synth.WithMaxChunkSize(cfg.Synthesis.MaxChunkSize),
		synth.WithCodecParams(cfg.Codec.Params()),
	)
	if err != nil {
		slog.Error("failed to create synthesizer", "err", err)
		return 1
	}
	runner, err := bench.NewRunner(synthesizer, bench.WithProgress(true))
	if err != nil {
		slog.Error("failed to create runner", "err", err)
		return 1
	}

	if err := liveprogress.Start(); err != nil {
		slog.Error("failed to start progress display", "err", err)
		return 1
	}
	_, runErr := runner.RunGrid(ctx, opts)
	if err := liveprogress.Stop(true); err != nil {
		slog.Warn("progress display stop error", "err", err)
	}
	if runErr != nil {
		slog.Error("grid search failed", "err", runErr)
		return 1
	}
	return 0
}

// parseList splits a comma-separated flag value, dropping empty entries.
func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseFloats parses a comma-separated list of numbers, returning fallback
// when the flag was not set.
func parseFloats(s string, fallback []float64) ([]float64, error) {
	parts := parseList(s)
	if len(parts) == 0 {
		return fallback, nil
	}
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", part)
		}
		out[i] = v
	}
	return out, nil
}

// loadConfig resolves the configuration for a run. An explicitly given path
// must exist; the default path is optional and quietly falls back to the
// built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.Load(defaultConfigPath)
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return cfg, err
	}
	return config.Load(path)
}

// printVoices lists the roster with the default marked, plus the emotion
// tags the model understands.
func printVoices() {
	fmt.Println("Available voices (in order of conversational realism):")
	for _, name := range voice.Names {
		marker := " "
		if name == voice.Default {
			marker = "★"
		}
		fmt.Printf("%s %s\n", marker, name)
	}
	fmt.Printf("\nDefault voice: %s\n", voice.Default)
	fmt.Println("\nAvailable emotion tags:")
	fmt.Println(strings.Join(voice.EmotionTags, ", "))
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// Command lyrebird-voices speaks one input text with every selected voice,
// each using the optimal parameters found for it by grid search.
package main

import (
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

	"github.com/hekmon/liveprogress/v2"

	"github.com/lyrebird-audio/lyrebird/internal/bench"
	"github.com/lyrebird-audio/lyrebird/internal/config"
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
	inputFile := flag.String("file", "", "text file to speak with every voice")
	outputDir := flag.String("output-dir", "outputs/all", "directory for the generated audio")
	voicesFlag := flag.String("voices", "", "comma-separated voices to generate (default: all)")
	categoriesFlag := flag.String("categories", "", "comma-separated voice categories to generate")
	listVoices := flag.Bool("list-voices", false, "list voices with their optimal parameters and exit")
	maxTokens := flag.Int("max-tokens", bench.DefaultSampleMaxTokens, "maximum tokens per voice")
	configPath := flag.String("config", "", "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	if *listVoices {
		printVoicesByCategory()
		return 0
	}
	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "lyrebird-voices: -file is required")
		flag.Usage()
		return 2
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lyrebird-voices: config file %q not found (copy configs/example.yaml to get started)\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lyrebird-voices: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := cfg.Log.Level
	if *verbose {
		level = config.LogDebug
	}
	slog.SetDefault(newLogger(level))

	slog.Info("lyrebird-voices starting",
		"server", cfg.Server.URL,
		"decoder", cfg.Decoder.URL,
		"log_level", level,
	)

	// ── Voice selection ───────────────────────────────────────────────────────
	voices := parseList(*voicesFlag)
	if len(voices) == 0 {
		categories := parseList(*categoriesFlag)
		if len(categories) > 0 {
			buckets := voice.ByCategory()
			for _, name := range categories {
				category := voice.Category(name)
				selected, ok := buckets[category]
				if !ok {
					fmt.Fprintf(os.Stderr, "lyrebird-voices: unknown category %q (choose from expressive, precise, balanced, unique)\n", name)
					return 2
				}
				voices = append(voices, selected...)
			}
		}
	}

	// ── Input text ────────────────────────────────────────────────────────────
	data, err := os.ReadFile(*inputFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Error: Input file %s not found\n", *inputFile)
		} else {
			slog.Error("failed to read input file", "err", err)
		}
		return 1
	}
	text := strings.TrimSpace(string(data))

	// ── Run directory ─────────────────────────────────────────────────────────
	stem := strings.TrimSuffix(filepath.Base(*inputFile), filepath.Ext(*inputFile))
	runDir := filepath.Join(*outputDir, fmt.Sprintf("%s_%s", stem, time.Now().Format(bench.TimestampLayout)))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		slog.Error("failed to create run directory", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	_, runErr := runner.RunShowcase(ctx, bench.ShowcaseOptions{
		InputFile: *inputFile,
		Text:      text,
		OutputDir: runDir,
		Voices:    voices,
		MaxTokens: *maxTokens,
	})
	if err := liveprogress.Stop(true); err != nil {
		slog.Warn("progress display stop error", "err", err)
	}
	if runErr != nil {
		slog.Error("voice generation failed", "err", runErr)
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

// printVoicesByCategory lists the roster bucketed by category, with each
// voice's tuned parameters.
func printVoicesByCategory() {
	fmt.Println("Available voices with optimal parameters:")
	buckets := voice.ByCategory()
	for _, category := range voice.Categories {
		fmt.Printf("\n%s voices:\n", capitalize(string(category)))
		for _, name := range buckets[category] {
			p := voice.Tuning(name)
			fmt.Printf("- %s: temp=%s, top_p=%s, rep_penalty=%s\n",
				name, formatFloat(p.Temperature), formatFloat(p.TopP), formatFloat(p.RepeatPenalty))
		}
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// formatFloat renders a parameter value with a trailing .0 kept on whole
// numbers, matching the result file naming.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
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

// Command lyrebird-bench profiles an Orpheus model deployment: it sweeps
// text length and the sampling parameters one at a time, writing WAV
// samples, CSV tables, and a report into a per-run results directory.
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
	"syscall"
	"time"

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

// defaultInputFile ships with the repository and is long enough for the
// full text length sweep.
const defaultInputFile = "texts/fairies-of-the-waterfall.txt"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	inputFile := flag.String("input-file", defaultInputFile, "input text file for the benchmark")
	voiceName := flag.String("voice", voice.Default, "voice to benchmark")
	outputDir := flag.String("output-dir", "benchmark_results", "directory for benchmark results")
	runName := flag.String("run-name", "", "name for this run (default: {voice}_{timestamp})")
	maxLength := flag.Int("max-length", bench.DefaultMaxChars, "maximum text length to test in characters")
	lengthStep := flag.Int("length-step", bench.DefaultLengthStep, "increment between text length tests")
	testLength := flag.Int("test-length", bench.DefaultTestLength, "text length used for the parameter sweeps")
	skipLength := flag.Bool("skip-length", false, "skip the text length sweep")
	skipTemperature := flag.Bool("skip-temperature", false, "skip the temperature sweep")
	skipTopP := flag.Bool("skip-top-p", false, "skip the top-p sweep")
	skipRepPenalty := flag.Bool("skip-rep-penalty", false, "skip the repetition penalty sweep")
	pace := flag.Duration("pace", 0, "minimum interval between generation runs")
	configPath := flag.String("config", "", "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable verbose output and debug logging")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lyrebird-bench: config file %q not found (copy configs/example.yaml to get started)\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lyrebird-bench: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := cfg.Log.Level
	if *verbose {
		level = config.LogDebug
	}
	slog.SetDefault(newLogger(level))

	if visited("voice") {
		cfg.Synthesis.Voice = *voiceName
	}
	speakAs, known := voice.Resolve(cfg.Synthesis.Voice)
	if !known {
		slog.Warn("unknown voice, using default", "voice", cfg.Synthesis.Voice, "default", speakAs)
	}

	slog.Info("lyrebird-bench starting",
		"server", cfg.Server.URL,
		"decoder", cfg.Decoder.URL,
		"log_level", level,
	)

	// ── Run directory ─────────────────────────────────────────────────────────
	timestamp := time.Now().Format(bench.TimestampLayout)
	name := *runName
	if name == "" {
		name = fmt.Sprintf("%s_%s", speakAs, timestamp)
	}
	runDir := filepath.Join(*outputDir, name)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		slog.Error("failed to create run directory", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "lyrebird-bench"})
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

	// ── Synthesizer ───────────────────────────────────────────────────────────
	synthesizer, err := synth.New(provider, decoder,
		synth.WithSampleRate(cfg.Synthesis.SampleRate),
		synth.WithMaxChunkSize(cfg.Synthesis.MaxChunkSize),
		synth.WithCodecParams(cfg.Codec.Params()),
	)
	if err != nil {
		slog.Error("failed to create synthesizer", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, speakAs)

	fmt.Printf("Starting Orpheus TTS benchmark with voice: %s\n", speakAs)
	fmt.Printf("Run name: %s\n", name)
	fmt.Printf("Results will be saved to: %s\n", runDir)

	runner, err := bench.NewRunner(synthesizer, bench.WithPace(*pace), bench.WithVerbose(*verbose))
	if err != nil {
		slog.Error("failed to create benchmark runner", "err", err)
		return 1
	}

	md := bench.NewMetadata(timestamp, name, speakAs, cfg.Synthesis.MaxTokens, bench.RunParameters{
		InputFile:       *inputFile,
		MaxLength:       *maxLength,
		LengthStep:      *lengthStep,
		TestLength:      *testLength,
		SkipLength:      *skipLength,
		SkipTemperature: *skipTemperature,
		SkipTopP:        *skipTopP,
		SkipRepPenalty:  *skipRepPenalty,
		Verbose:         *verbose,
	})

	// ── Sweeps ────────────────────────────────────────────────────────────────
	if !*skipLength {
		if _, err := runner.RunTextLength(ctx, md, bench.TextLengthOptions{
			InputFile: *inputFile,
			Voice:     speakAs,
			OutputDir: runDir,
			MaxChars:  *maxLength,
			Step:      *lengthStep,
		}); err != nil {
			slog.Error("text length benchmark failed", "err", err)
			return 1
		}
	}
	if !*skipTemperature {
		if _, err := runner.RunTemperature(ctx, md, bench.SweepOptions{
			InputFile:  *inputFile,
			Voice:      speakAs,
			OutputDir:  runDir,
			TextLength: *testLength,
		}); err != nil {
			slog.Error("temperature benchmark failed", "err", err)
			return 1
		}
	}
	if !*skipTopP {
		if _, err := runner.RunTopP(ctx, md, bench.SweepOptions{
			InputFile:  *inputFile,
			Voice:      speakAs,
			OutputDir:  runDir,
			TextLength: *testLength,
		}); err != nil {
			slog.Error("top-p benchmark failed", "err", err)
			return 1
		}
	}
	if !*skipRepPenalty {
		if _, err := runner.RunRepetitionPenalty(ctx, md, bench.SweepOptions{
			InputFile:  *inputFile,
			Voice:      speakAs,
			OutputDir:  runDir,
			TextLength: *testLength,
		}); err != nil {
			slog.Error("repetition penalty benchmark failed", "err", err)
			return 1
		}
	}

	// ── Reports ───────────────────────────────────────────────────────────────
	if _, err := bench.SaveMetadata(runDir, md); err != nil {
		slog.Error("failed to save metadata", "err", err)
		return 1
	}
	reportPath, err := bench.WriteReport(runDir, speakAs, md)
	if err != nil {
		slog.Error("failed to write report", "err", err)
		return 1
	}

	fmt.Printf("\nBenchmark complete! Full report available at: %s\n", reportPath)
	return 0
}

// visited reports whether the named flag was set on the command line.
func visited(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
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

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, voiceName string) {
	fmt.Println("╔═════════════════════════════════════════════╗")
	fmt.Println("║          lyrebird-bench run setup           ║")
	fmt.Println("╠═════════════════════════════════════════════╣")
	fmt.Printf("║  %-12s : %-27s ║\n", "Model server", boxValue(cfg.Server.URL))
	fmt.Printf("║  %-12s : %-27s ║\n", "SNAC decoder", boxValue(cfg.Decoder.URL))
	fmt.Printf("║  %-12s : %-27s ║\n", "Voice", voiceName)
	fmt.Printf("║  %-12s : %-27d ║\n", "Max tokens", cfg.Synthesis.MaxTokens)
	fmt.Println("╚═════════════════════════════════════════════╝")
}

func boxValue(v string) string {
	if len(v) > 27 {
		v = v[:26] + "…"
	}
	return v
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

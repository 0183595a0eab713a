// Command lyrebird synthesizes speech from text with an Orpheus model
// served by a llama.cpp-compatible server and a SNAC decoder sidecar.
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
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/lyrebird-audio/lyrebird/internal/config"
	"github.com/lyrebird-audio/lyrebird/internal/preflight"
	"github.com/lyrebird-audio/lyrebird/internal/synth"
	"github.com/lyrebird-audio/lyrebird/internal/voice"
	"github.com/lyrebird-audio/lyrebird/pkg/audio"
	"github.com/lyrebird-audio/lyrebird/pkg/audio/speaker"
	"github.com/lyrebird-audio/lyrebird/pkg/codec/snac"
	"github.com/lyrebird-audio/lyrebird/pkg/completion/llamacpp"
)

// defaultConfigPath is tried when no -config flag is given. A missing file
// at this path is not an error; the built-in defaults apply.
const defaultConfigPath = "lyrebird.yaml"

// defaultText is spoken when no text is supplied at all.
const defaultText = "Hello, I am Orpheus, an AI assistant with emotional speech capabilities."

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	text := flag.String("text", "", "text to synthesize")
	inputFile := flag.String("file", "", "read the text to synthesize from this file")
	voiceName := flag.String("voice", voice.Default, "voice to use")
	output := flag.String("output", "", "output WAV file path")
	listVoices := flag.Bool("list-voices", false, "list available voices and exit")
	temperature := flag.Float64("temperature", synth.DefaultTemperature, "sampling temperature")
	topP := flag.Float64("top-p", synth.DefaultTopP, "top-p sampling cutoff")
	repPenalty := flag.Float64("repetition-penalty", synth.DefaultRepeatPenalty, "repetition penalty, at least 1.1 for stable generation")
	maxTokens := flag.Int("max-tokens", synth.DefaultMaxTokens, "maximum tokens to generate")
	play := flag.Bool("play", false, "play audio through the default output device while generating")
	check := flag.Bool("check", false, "verify the model server and decoder are reachable, then exit")
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
			fmt.Fprintf(os.Stderr, "lyrebird: config file %q not found (copy configs/example.yaml to get started)\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lyrebird: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := cfg.Log.Level
	if *verbose {
		level = config.LogDebug
	}
	slog.SetDefault(newLogger(level))

	// Flags the user actually set override the file values.
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["voice"] {
		cfg.Synthesis.Voice = *voiceName
	}
	if set["temperature"] {
		cfg.Synthesis.Temperature = *temperature
	}
	if set["top-p"] {
		cfg.Synthesis.TopP = *topP
	}
	if set["repetition-penalty"] {
		cfg.Synthesis.RepeatPenalty = *repPenalty
	}
	if set["max-tokens"] {
		cfg.Synthesis.MaxTokens = *maxTokens
	}

	slog.Info("lyrebird starting",
		"server", cfg.Server.URL,
		"decoder", cfg.Decoder.URL,
		"log_level", level,
	)

	// ── Voice ─────────────────────────────────────────────────────────────────
	speakAs, known := voice.Resolve(cfg.Synthesis.Voice)
	if !known {
		if hint, ok := voice.Suggest(cfg.Synthesis.Voice); ok {
			slog.Warn("unknown voice, using default",
				"voice", cfg.Synthesis.Voice, "default", speakAs, "did_you_mean", hint)
		} else {
			slog.Warn("unknown voice, using default",
				"voice", cfg.Synthesis.Voice, "default", speakAs)
		}
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
	checks := []preflight.Check{
		{Name: "model server", Probe: provider.Healthcheck},
		{Name: "snac decoder", Probe: decoder.Healthcheck},
	}
	if *check {
		if err := preflight.Run(ctx, checks...); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("All services reachable.")
		return 0
	}
	if err := preflight.Run(ctx, checks...); err != nil {
		slog.Error("preflight failed", "err", err)
		return 1
	}

	// ── Input text ────────────────────────────────────────────────────────────
	var speak string
	switch {
	case *inputFile != "":
		data, err := os.ReadFile(*inputFile)
		if err != nil {
			slog.Error("failed to read input file", "err", err)
			return 1
		}
		speak = strings.TrimSpace(string(data))
	case *text != "":
		speak = *text
	default:
		fmt.Print("Enter text to synthesize: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			speak = strings.TrimSpace(scanner.Text())
		}
		if speak == "" {
			speak = defaultText
		}
	}

	// ── Output path ───────────────────────────────────────────────────────────
	outputPath := *output
	if outputPath == "" {
		if err := os.MkdirAll("outputs", 0o755); err != nil {
			slog.Error("failed to create output directory", "err", err)
			return 1
		}
		timestamp := time.Now().Format("20060102_150405")
		outputPath = filepath.Join("outputs", fmt.Sprintf("%s_%s.wav", speakAs, timestamp))
		fmt.Printf("No output file specified. Saving to %s\n", outputPath)
	}

	if n := utf8.RuneCountInString(speak); n > cfg.Synthesis.MaxChunkSize {
		fmt.Printf("Long text detected (%d characters). Will automatically split into chunks of ~%d characters for processing.\n",
			n, cfg.Synthesis.MaxChunkSize)
	}

	// ── Audio output ──────────────────────────────────────────────────────────
	var sinks []audio.Sink
	if *play {
		spk, err := speaker.Open(cfg.Synthesis.SampleRate)
		if err != nil {
			slog.Error("failed to open audio output", "err", err)
			return 1
		}
		defer func() {
			if err := spk.Close(); err != nil {
				slog.Warn("audio output close error", "err", err)
			}
		}()
		sinks = append(sinks, spk)
	}

	// ── Synthesize ────────────────────────────────────────────────────────────
	synthesizer, err := synth.New(provider, decoder,
		synth.WithSampleRate(cfg.Synthesis.SampleRate),
		synth.WithMaxChunkSize(cfg.Synthesis.MaxChunkSize),
		synth.WithCodecParams(cfg.Codec.Params()),
	)
	if err != nil {
		slog.Error("failed to create synthesizer", "err", err)
		return 1
	}

	start := time.Now()
	result, err := synthesizer.Synthesize(ctx, synth.Request{
		Text:          speak,
		Voice:         speakAs,
		Temperature:   cfg.Synthesis.Temperature,
		TopP:          cfg.Synthesis.TopP,
		RepeatPenalty: cfg.Synthesis.RepeatPenalty,
		MaxTokens:     cfg.Synthesis.MaxTokens,
		OutputPath:    outputPath,
		Sinks:         sinks,
	})
	if err != nil {
		slog.Error("synthesis failed", "err", err)
		return 1
	}

	fmt.Printf("Generated %d audio segments\n", len(result.Segments))
	fmt.Printf("Generated %.2f seconds of audio\n", result.Duration.Seconds())
	fmt.Printf("Total tokens processed: %d\n", result.TokensProcessed)
	fmt.Printf("Speech generation completed in %.2f seconds\n", time.Since(start).Seconds())
	fmt.Printf("Audio saved to %s\n", outputPath)
	return 0
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

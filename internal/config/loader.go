package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lyrebird-audio/lyrebird/internal/voice"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Fields absent from the YAML keep their [Default] values; an empty
// document yields the defaults unchanged. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Endpoints
	if cfg.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required"))
	}
	if cfg.Server.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("server.timeout_seconds %d is negative", cfg.Server.TimeoutSeconds))
	}
	if cfg.Decoder.URL == "" {
		errs = append(errs, errors.New("decoder.url is required"))
	}
	if cfg.Decoder.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("decoder.timeout_seconds %d is negative", cfg.Decoder.TimeoutSeconds))
	}

	// Synthesis parameters
	if cfg.Synthesis.Temperature <= 0 {
		errs = append(errs, fmt.Errorf("synthesis.temperature %.2f must be positive", cfg.Synthesis.Temperature))
	}
	if cfg.Synthesis.TopP <= 0 || cfg.Synthesis.TopP > 1 {
		errs = append(errs, fmt.Errorf("synthesis.top_p %.2f is out of range (0, 1]", cfg.Synthesis.TopP))
	}
	if cfg.Synthesis.RepeatPenalty < 1 {
		errs = append(errs, fmt.Errorf("synthesis.repeat_penalty %.2f must be at least 1.0", cfg.Synthesis.RepeatPenalty))
	}
	if cfg.Synthesis.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("synthesis.max_tokens %d must be positive", cfg.Synthesis.MaxTokens))
	}
	if cfg.Synthesis.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("synthesis.sample_rate %d must be positive", cfg.Synthesis.SampleRate))
	}
	if cfg.Synthesis.MaxChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("synthesis.max_chunk_size %d must be positive", cfg.Synthesis.MaxChunkSize))
	}

	// Unknown voices are substituted at synthesis time; warn, don't fail.
	if cfg.Synthesis.Voice != "" && !voice.Known(cfg.Synthesis.Voice) {
		slog.Warn("synthesis.voice is not in the roster; the default voice will be used",
			"voice", cfg.Synthesis.Voice,
			"known", voice.Names,
		)
	}

	// Codec layout
	if cfg.Codec.CodebookSize <= 0 {
		errs = append(errs, fmt.Errorf("codec.codebook_size %d must be positive", cfg.Codec.CodebookSize))
	}
	if cfg.Codec.SlotsPerStep <= 0 {
		errs = append(errs, fmt.Errorf("codec.slots_per_step %d must be positive", cfg.Codec.SlotsPerStep))
	}
	if cfg.Codec.Window <= 0 {
		errs = append(errs, fmt.Errorf("codec.window %d must be positive", cfg.Codec.Window))
	}
	if cfg.Codec.Interval <= 0 {
		errs = append(errs, fmt.Errorf("codec.interval %d must be positive", cfg.Codec.Interval))
	}
	if cfg.Codec.MinPosition < cfg.Codec.Window-1 {
		errs = append(errs, fmt.Errorf("codec.min_position %d must be at least window-1 (%d)", cfg.Codec.MinPosition, cfg.Codec.Window-1))
	}

	// Logging
	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}

// Package config provides the configuration schema and loader for the
// lyrebird synthesis tools.
package config

import (
	"time"

	"github.com/lyrebird-audio/lyrebird/pkg/codec"
)

// LogLevel controls log verbosity for the lyrebird tools.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the lyrebird tools.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// missing values inherit the defaults from [Default].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Codec     CodecConfig     `yaml:"codec"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig points at the completion server hosting the Orpheus model.
type ServerConfig struct {
	// URL is the base URL of the llama.cpp-compatible completion server.
	URL string `yaml:"url"`

	// TimeoutSeconds bounds each HTTP request. Zero means no timeout:
	// a long generation can stream for minutes, so requests are
	// cancelled via context instead.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured request timeout as a duration.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DecoderConfig points at the SNAC decoder sidecar that turns acoustic
// tokens into PCM.
type DecoderConfig struct {
	// URL is the base URL of the decoder sidecar.
	URL string `yaml:"url"`

	// TimeoutSeconds bounds each decode request. Zero selects the
	// client's built-in default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the configured decode timeout as a duration.
func (d DecoderConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// SynthesisConfig holds the default generation parameters. Command-line
// flags and per-voice tunings may override them per run.
type SynthesisConfig struct {
	// Voice is the default speaker.
	Voice string `yaml:"voice"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// TopP is the nucleus sampling cutoff.
	TopP float64 `yaml:"top_p"`

	// RepeatPenalty discourages the model from repeating tokens.
	RepeatPenalty float64 `yaml:"repeat_penalty"`

	// MaxTokens caps the number of tokens generated per request.
	MaxTokens int `yaml:"max_tokens"`

	// SampleRate is the PCM sample rate produced by the decoder.
	SampleRate int `yaml:"sample_rate"`

	// MaxChunkSize is the largest text chunk, in characters, sent to
	// the model in one request. Longer texts are split.
	MaxChunkSize int `yaml:"max_chunk_size"`
}

// CodecConfig describes the acoustic token layout of the model. The
// defaults match SNAC's 7-slot frames and should only change with the
// model itself.
type CodecConfig struct {
	CodebookSize int `yaml:"codebook_size"`
	SlotsPerStep int `yaml:"slots_per_step"`
	Window       int `yaml:"window"`
	Interval     int `yaml:"interval"`
	MinPosition  int `yaml:"min_position"`
}

// Params converts the section into the codec package's parameter set.
func (c CodecConfig) Params() codec.Params {
	return codec.Params{
		CodebookSize: c.CodebookSize,
		SlotsPerStep: c.SlotsPerStep,
		Window:       c.Window,
		Interval:     c.Interval,
		MinPosition:  c.MinPosition,
	}
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level controls verbosity.
	Level LogLevel `yaml:"level"`
}

// Default returns the configuration used when no file is provided. The
// values mirror the reference Orpheus setup: a llama.cpp server on
// port 8080, a SNAC sidecar on port 8081, and the stock sampling
// parameters.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://127.0.0.1:8080",
		},
		Decoder: DecoderConfig{
			URL: "http://127.0.0.1:8081",
		},
		Synthesis: SynthesisConfig{
			Voice:         "tara",
			Temperature:   0.9,
			TopP:          1.0,
			RepeatPenalty: 1.1,
			MaxTokens:     20480,
			SampleRate:    24000,
			MaxChunkSize:  750,
		},
		Codec: CodecConfig{
			CodebookSize: 4096,
			SlotsPerStep: 7,
			Window:       28,
			Interval:     7,
			MinPosition:  27,
		},
		Log: LogConfig{
			Level: LogInfo,
		},
	}
}

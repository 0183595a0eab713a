// Package synth drives the streaming text-to-speech pipeline: prompt
// construction, token streaming, acoustic decode, and audio delivery.
//
// A synthesis call runs two concurrent activities joined by a PCM channel:
// a producer that reads the model's token stream and decodes full frames,
// and a consumer that writes the resulting chunks to the WAV file and any
// additional sinks. Chunks flow strictly in production order; the call
// returns only after both sides have finished.
package synth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/lyrebird-audio/lyrebird/internal/observe"
	"github.com/lyrebird-audio/lyrebird/internal/prompt"
	"github.com/lyrebird-audio/lyrebird/internal/voice"
	"github.com/lyrebird-audio/lyrebird/pkg/audio"
	"github.com/lyrebird-audio/lyrebird/pkg/audio/wavfile"
	"github.com/lyrebird-audio/lyrebird/pkg/codec"
	"github.com/lyrebird-audio/lyrebird/pkg/completion"
)

// Default generation parameters for the Orpheus model, applied when the
// corresponding [Request] field is zero.
const (
	DefaultTemperature   = 0.9
	DefaultTopP          = 1.0
	DefaultRepeatPenalty = 1.1
	DefaultMaxTokens     = 20480
	DefaultSampleRate    = 24000
	DefaultMaxChunkSize  = 750
)

// pcmBuffer is the PCM channel capacity. A little slack lets network reads
// and decode calls continue while the consumer writes.
const pcmBuffer = 16

// Request describes one synthesis call.
type Request struct {
	// Text is the text to speak. Required.
	Text string

	// Voice selects the speaker. Empty or unknown names fall back to
	// the default voice.
	Voice string

	// Sampling parameters. Zero values select the model defaults.
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
	MaxTokens     int

	// OutputPath, when non-empty, streams the audio into a WAV file.
	// The file is created when the first chunk arrives, so a failed or
	// silent generation leaves no header-only file behind.
	OutputPath string

	// Sinks receive every PCM chunk in production order, after the WAV
	// write. The synthesizer does not close them.
	Sinks []audio.Sink
}

// Result summarises one completed synthesis.
type Result struct {
	// Segments holds every PCM chunk in production order. The same bytes
	// have already been delivered to the request's outputs.
	Segments [][]byte

	// TokensProcessed counts every fragment received from the model,
	// including ones that carried no usable acoustic token.
	TokensProcessed int

	// FramesDecoded is the number of token windows sent to the decoder.
	FramesDecoded int

	// Duration is the playback length of the produced audio.
	Duration time.Duration
}

// Synthesizer runs the token-to-audio pipeline against a completion
// provider and an acoustic decoder.
type Synthesizer struct {
	provider     completion.Provider
	decoder      codec.Decoder
	sampleRate   int
	maxChunkSize int
	params       codec.Params
	metrics      *observe.Metrics
}

// Option adjusts synthesizer behavior.
type Option func(*Synthesizer)

// WithSampleRate overrides the PCM sample rate the decoder produces.
func WithSampleRate(rate int) Option {
	return func(s *Synthesizer) { s.sampleRate = rate }
}

// WithMaxChunkSize overrides the text chunk limit in runes.
func WithMaxChunkSize(n int) Option {
	return func(s *Synthesizer) { s.maxChunkSize = n }
}

// WithCodecParams overrides the acoustic token layout.
func WithCodecParams(p codec.Params) Option {
	return func(s *Synthesizer) { s.params = p }
}

// WithMetrics overrides the metrics instance, mostly for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Synthesizer) { s.metrics = m }
}

// New creates a Synthesizer around the given provider and decoder.
func New(provider completion.Provider, decoder codec.Decoder, opts ...Option) (*Synthesizer, error) {
	if provider == nil {
		return nil, errors.New("synth: nil completion provider")
	}
	if decoder == nil {
		return nil, errors.New("synth: nil codec decoder")
	}
	s := &Synthesizer{
		provider:     provider,
		decoder:      decoder,
		sampleRate:   DefaultSampleRate,
		maxChunkSize: DefaultMaxChunkSize,
		params:       codec.DefaultParams(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sampleRate <= 0 {
		return nil, fmt.Errorf("synth: invalid sample rate %d", s.sampleRate)
	}
	if s.maxChunkSize <= 0 {
		return nil, fmt.Errorf("synth: invalid max chunk size %d", s.maxChunkSize)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s, nil
}

// Synthesize speaks req.Text and delivers the audio to the request's
// outputs. Text longer than the chunk limit is split at sentence
// boundaries and generated sequentially; all pieces stream into the same
// outputs. The result spans the whole call.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if req.Text == "" {
		return nil, errors.New("synth: empty text")
	}
	ctx, span := observe.StartSpan(ctx, "synth.Synthesize")
	defer span.End()
	logger := observe.Logger(ctx)

	voiceName := req.Voice
	if voiceName == "" {
		voiceName = voice.Default
	}
	if req.Temperature == 0 {
		req.Temperature = DefaultTemperature
	}
	if req.TopP == 0 {
		req.TopP = DefaultTopP
	}
	if req.RepeatPenalty == 0 {
		req.RepeatPenalty = DefaultRepeatPenalty
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	chunks := SplitText(req.Text, s.maxChunkSize)
	if len(chunks) > 1 {
		logger.Info("text split for generation", "chunks", len(chunks), "voice", voiceName)
	}

	s.metrics.ActiveSyntheses.Add(ctx, 1)
	defer s.metrics.ActiveSyntheses.Add(ctx, -1)
	start := time.Now()

	pcm := make(chan []byte, pcmBuffer)
	var tokens, frames int

	g, gctx := errgroup.WithContext(ctx)

	// ── producer: token stream → acoustic decode ─────────────────────────────
	g.Go(func() error {
		defer close(pcm)
		for i, text := range chunks {
			logger.Debug("processing chunk", "index", i+1, "total", len(chunks), "chars", len(text))
			n, f, err := s.produceChunk(gctx, text, req, voiceName, pcm)
			tokens += n
			frames += f
			if err != nil {
				return fmt.Errorf("synth: chunk %d/%d: %w", i+1, len(chunks), err)
			}
		}
		return nil
	})

	// ── consumer: PCM → WAV file and sinks ───────────────────────────────────
	var (
		segments [][]byte
		written  int
	)
	g.Go(func() error {
		var wav *wavfile.Writer
		err := func() error {
			for chunk := range pcm {
				if req.OutputPath != "" && wav == nil {
					w, createErr := wavfile.Create(req.OutputPath, s.sampleRate)
					if createErr != nil {
						return createErr
					}
					wav = w
				}
				if wav != nil {
					if writeErr := wav.WriteChunk(chunk); writeErr != nil {
						return writeErr
					}
				}
				for _, sink := range req.Sinks {
					if sinkErr := sink.WriteChunk(chunk); sinkErr != nil {
						return fmt.Errorf("synth: sink write: %w", sinkErr)
					}
				}
				segments = append(segments, chunk)
				written += len(chunk)
			}
			return nil
		}()
		if err != nil {
			// Release the producer before bailing out.
			go audio.Drain(pcm)
		}
		if wav != nil {
			if closeErr := wav.Close(); err == nil {
				err = closeErr
			}
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	duration := audio.Duration(written, s.sampleRate)
	s.metrics.SynthesisTokens.Add(ctx, int64(tokens),
		metric.WithAttributes(observe.Attr("voice", voiceName)))
	s.metrics.RecordSynthesis(ctx, voiceName, time.Since(start).Seconds(), duration.Seconds())
	logger.Debug("synthesis complete",
		"voice", voiceName,
		"segments", len(segments),
		"tokens", tokens,
		"frames", frames,
		"audio_seconds", duration.Seconds(),
	)

	return &Result{
		Segments:        segments,
		TokensProcessed: tokens,
		FramesDecoded:   frames,
		Duration:        duration,
	}, nil
}

// produceChunk streams one text chunk through the model, feeding fragments
// to a fresh accumulator and sending decoded PCM to out. It returns the
// number of fragments received and the number of frames decoded.
func (s *Synthesizer) produceChunk(ctx context.Context, text string, req Request, voiceName string, out chan<- []byte) (fragments, frames int, err error) {
	acc, err := codec.NewAccumulator(
		timedDecoder{inner: s.decoder, metrics: s.metrics},
		codec.WithParams(s.params),
	)
	if err != nil {
		return 0, 0, err
	}

	stream, err := s.provider.StreamCompletion(ctx, completion.Request{
		Prompt:        prompt.Format(text, voiceName),
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		MaxTokens:     req.MaxTokens,
		RepeatPenalty: req.RepeatPenalty,
	})
	if err != nil {
		s.metrics.RecordProviderError(ctx, "llamacpp", "completion")
		return 0, 0, err
	}

	for chunk := range stream {
		if chunk.Err != nil {
			// Final element by contract; the channel closes right after.
			s.metrics.RecordProviderError(ctx, "llamacpp", "completion")
			return fragments, acc.FramesDecoded(), chunk.Err
		}
		fragments++

		data, err := acc.Feed(ctx, chunk.Text)
		if err != nil {
			go audio.Drain(stream)
			return fragments, acc.FramesDecoded(), err
		}
		if data == nil {
			continue
		}
		select {
		case out <- data:
		case <-ctx.Done():
			go audio.Drain(stream)
			return fragments, acc.FramesDecoded(), ctx.Err()
		}
	}
	return fragments, acc.FramesDecoded(), nil
}

// timedDecoder wraps the codec decoder with latency and yield metrics.
type timedDecoder struct {
	inner   codec.Decoder
	metrics *observe.Metrics
}

func (d timedDecoder) Decode(ctx context.Context, window []int, position int) ([]byte, error) {
	start := time.Now()
	pcm, err := d.inner.Decode(ctx, window, position)
	d.metrics.DecodeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		d.metrics.RecordProviderError(ctx, "snac", "decode")
		return nil, err
	}
	d.metrics.FramesDecoded.Add(ctx, 1)
	if pcm != nil {
		d.metrics.AudioChunks.Add(ctx, 1)
	}
	return pcm, nil
}

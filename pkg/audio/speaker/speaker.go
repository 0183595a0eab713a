// Package speaker plays streaming PCM on the default output device via
// PortAudio.
//
// The Speaker is an audio.Sink: chunks are buffered into fixed device
// frames and written to the stream as they fill. Close flushes the
// remainder zero-padded, so the tail of an utterance is never dropped.
package speaker

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/lyrebird-audio/lyrebird/pkg/audio"
)

const defaultFramesPerBuffer = 1024

// Speaker streams 16-bit mono PCM to the default playback device.
type Speaker struct {
	sampleRate int
	deviceRate int
	frames     int
	stream     *portaudio.Stream
	buf        []int16
	pending    []int16
	closed     bool
}

// Option adjusts playback behavior.
type Option func(*Speaker)

// WithDeviceSampleRate opens the device at rate instead of the pipeline
// sample rate. Chunks are resampled on the way in. Useful for devices
// that reject 24kHz output.
func WithDeviceSampleRate(rate int) Option {
	return func(s *Speaker) { s.deviceRate = rate }
}

// WithFramesPerBuffer sets the device buffer size in frames.
func WithFramesPerBuffer(n int) Option {
	return func(s *Speaker) { s.frames = n }
}

// Open initializes PortAudio and starts a playback stream. The caller
// must Close the returned Speaker to release the device.
func Open(sampleRate int, opts ...Option) (*Speaker, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("speaker: invalid sample rate %d", sampleRate)
	}
	s := &Speaker{
		sampleRate: sampleRate,
		deviceRate: sampleRate,
		frames:     defaultFramesPerBuffer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deviceRate <= 0 || s.frames <= 0 {
		return nil, fmt.Errorf("speaker: invalid device rate %d or buffer size %d", s.deviceRate, s.frames)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("speaker: initialize portaudio: %w", err)
	}
	s.buf = make([]int16, s.frames)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(s.deviceRate), s.frames, &s.buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("speaker: open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("speaker: start playback stream: %w", err)
	}
	s.stream = stream
	return s, nil
}

// WriteChunk queues a chunk of PCM for playback, blocking while full
// device frames are written out.
func (s *Speaker) WriteChunk(pcm []byte) error {
	if s.closed {
		return fmt.Errorf("speaker: write to closed device")
	}
	if s.deviceRate != s.sampleRate {
		pcm = audio.ResampleMono16(pcm, s.sampleRate, s.deviceRate)
	}
	s.pending = append(s.pending, audio.Int16s(pcm)...)

	for len(s.pending) >= s.frames {
		copy(s.buf, s.pending[:s.frames])
		s.pending = s.pending[s.frames:]
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("speaker: write to device: %w", err)
		}
	}
	return nil
}

// Close flushes remaining audio zero-padded, stops the stream, and
// terminates PortAudio. Calling Close more than once is a no-op.
func (s *Speaker) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var flushErr error
	if len(s.pending) > 0 {
		n := copy(s.buf, s.pending)
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		s.pending = nil
		if err := s.stream.Write(); err != nil {
			flushErr = fmt.Errorf("speaker: flush device: %w", err)
		}
	}
	stopErr := s.stream.Stop()
	closeErr := s.stream.Close()
	termErr := portaudio.Terminate()

	if flushErr != nil {
		return flushErr
	}
	if stopErr != nil {
		return fmt.Errorf("speaker: stop playback stream: %w", stopErr)
	}
	if closeErr != nil {
		return fmt.Errorf("speaker: close playback stream: %w", closeErr)
	}
	if termErr != nil {
		return fmt.Errorf("speaker: terminate portaudio: %w", termErr)
	}
	return nil
}

// Ensure Speaker implements audio.Sink at compile time.
var _ audio.Sink = (*Speaker)(nil)

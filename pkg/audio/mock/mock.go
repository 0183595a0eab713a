// Package mock provides a recording audio.Sink for tests.
//
// Example:
//
//	sink := &mock.Sink{}
//	// ... run a synthesis that writes into sink ...
//	if len(sink.Chunks) == 0 {
//		t.Fatal("expected audio output")
//	}
package mock

import (
	"sync"

	"github.com/lyrebird-audio/lyrebird/pkg/audio"
)

// Sink is a configurable mock implementation of audio.Sink.
type Sink struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// WriteErr, if set, is returned by every WriteChunk call.
	WriteErr error
	// CloseErr, if set, is returned by the first Close call.
	CloseErr error

	// --- Call records ---

	// Chunks holds a copy of every chunk passed to WriteChunk.
	Chunks [][]byte
	// Closed counts Close calls.
	Closed int
}

// WriteChunk records a copy of pcm and returns WriteErr.
func (s *Sink) WriteChunk(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	s.Chunks = append(s.Chunks, cp)
	return nil
}

// Close records the call and returns CloseErr on the first invocation.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed++
	if s.Closed == 1 && s.CloseErr != nil {
		return s.CloseErr
	}
	return nil
}

// Bytes returns all recorded chunks concatenated.
func (s *Sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []byte
	for _, c := range s.Chunks {
		out = append(out, c...)
	}
	return out
}

// Reset clears all recorded calls.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Chunks = nil
	s.Closed = 0
}

// Ensure Sink implements audio.Sink at compile time.
var _ audio.Sink = (*Sink)(nil)

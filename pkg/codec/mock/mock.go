// Package mock provides a test double for the codec.Decoder interface.
//
// Use Decoder to script the PCM chunks returned by successive decode calls
// and to verify the windows and positions handed to the decoder backend.
//
// Example:
//
//	d := &mock.Decoder{Chunks: [][]byte{pcm}}
//	acc, _ := codec.NewAccumulator(d)
package mock

import (
	"context"
	"sync"

	"github.com/lyrebird-audio/lyrebird/pkg/codec"
)

// DecodeCall records a single invocation of Decode.
type DecodeCall struct {
	// Ctx is the context passed to Decode.
	Ctx context.Context
	// Window is a copy of the token id window passed to Decode.
	Window []int
	// Position is the stream position passed to Decode.
	Position int
}

// Decoder is a mock implementation of codec.Decoder.
type Decoder struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Chunks is the sequence of PCM chunks returned by successive Decode
	// calls. A nil entry makes that call report no audio. When more calls
	// arrive than entries, the final entry is repeated; an empty Chunks
	// means every call reports no audio.
	Chunks [][]byte

	// Err, if non-nil, is returned by every Decode call instead of a chunk.
	Err error

	// --- Call records ---

	// DecodeCalls records every call to Decode in order.
	DecodeCalls []DecodeCall
}

// Decode records the call and returns the scripted chunk or Err.
func (d *Decoder) Decode(ctx context.Context, window []int, position int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := make([]int, len(window))
	copy(w, window)
	d.DecodeCalls = append(d.DecodeCalls, DecodeCall{Ctx: ctx, Window: w, Position: position})
	if d.Err != nil {
		return nil, d.Err
	}
	if len(d.Chunks) == 0 {
		return nil, nil
	}
	i := len(d.DecodeCalls) - 1
	if i >= len(d.Chunks) {
		i = len(d.Chunks) - 1
	}
	return d.Chunks[i], nil
}

// Reset clears all recorded calls. Thread-safe.
func (d *Decoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DecodeCalls = nil
}

// Ensure Decoder implements codec.Decoder at compile time.
var _ codec.Decoder = (*Decoder)(nil)

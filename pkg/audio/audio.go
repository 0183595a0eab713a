// Package audio defines the PCM sink abstraction shared by the synthesis
// pipeline outputs, plus small helpers for working with 16-bit mono PCM.
//
// All audio in the pipeline is 16-bit little-endian mono PCM; chunks are
// byte slices holding whole samples.
package audio

import (
	"encoding/binary"
	"time"
)

// Sink consumes PCM chunks in production order.
//
// Semantics:
//   - WriteChunk is called sequentially from a single goroutine.
//   - Close flushes buffered audio and releases resources. Implementations
//     must tolerate repeated Close calls.
type Sink interface {
	WriteChunk(pcm []byte) error
	Close() error
}

// Duration returns the playback time of n bytes of 16-bit mono PCM at the
// given sample rate.
func Duration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n/2) * time.Second / time.Duration(sampleRate)
}

// Ints widens raw PCM into the int sample values WAV encoding wants. A
// trailing odd byte is ignored.
func Ints(pcm []byte) []int {
	out := make([]int, len(pcm)/2)
	for i := range out {
		out[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return out
}

// Int16s reinterprets raw PCM as int16 sample values for playback devices.
// A trailing odd byte is ignored.
func Int16s(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

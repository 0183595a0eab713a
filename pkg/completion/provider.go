// Package completion defines the streaming text completion provider
// abstraction.
//
// Implementations wrap an inference server's completion endpoint and deliver
// the generated text as a stream of fragments, enabling the audio pipeline to
// start decoding before generation finishes.
package completion

import "context"

// Provider streams raw completion text from an inference server.
//
// Semantics:
//   - StreamCompletion returns once the request is accepted; fragments then
//     arrive on the channel in generation order.
//   - The channel is closed by the implementation when the stream ends, the
//     transport fails, or ctx is cancelled.
//   - A failure after the stream started is delivered as a final Chunk with
//     Err set, followed by channel close.
//   - Callers must drain the channel to avoid leaking the reader goroutine.
type Provider interface {
	StreamCompletion(ctx context.Context, req Request) (<-chan Chunk, error)
}

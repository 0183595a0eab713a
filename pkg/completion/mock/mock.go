// Package mock provides a test double for the completion.Provider interface.
//
// Use Provider to feed scripted text fragments to consumers and to verify
// the requests passed to the completion backend.
//
// Example:
//
//	p := &mock.Provider{Fragments: []string{"<custom_token_100>", "<custom_token_200>"}}
//	ch, _ := p.StreamCompletion(ctx, completion.Request{Prompt: "..."})
package mock

import (
	"context"
	"sync"

	"github.com/lyrebird-audio/lyrebird/pkg/completion"
)

// StreamCompletionCall records a single invocation of StreamCompletion.
type StreamCompletionCall struct {
	// Ctx is the context passed to StreamCompletion.
	Ctx context.Context
	// Req is the request passed to StreamCompletion.
	Req completion.Request
}

// Provider is a mock implementation of completion.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Fragments is the sequence of text fragments emitted on the stream.
	Fragments []string

	// StreamErr, if non-nil, is delivered as a final error chunk after all
	// Fragments have been emitted.
	StreamErr error

	// StartErr, if non-nil, is returned from StreamCompletion instead of
	// starting a stream.
	StartErr error

	// --- Call records ---

	// StreamCompletionCalls records every call to StreamCompletion in order.
	StreamCompletionCalls []StreamCompletionCall
}

// StreamCompletion records the call and, if StartErr is nil, returns a
// channel that emits Fragments (and then StreamErr, when set) and closes.
func (p *Provider) StreamCompletion(ctx context.Context, req completion.Request) (<-chan completion.Chunk, error) {
	p.mu.Lock()
	p.StreamCompletionCalls = append(p.StreamCompletionCalls, StreamCompletionCall{Ctx: ctx, Req: req})
	if p.StartErr != nil {
		err := p.StartErr
		p.mu.Unlock()
		return nil, err
	}
	fragments := make([]string, len(p.Fragments))
	copy(fragments, p.Fragments)
	streamErr := p.StreamErr
	p.mu.Unlock()

	ch := make(chan completion.Chunk, len(fragments)+1)
	go func() {
		defer close(ch)
		for _, f := range fragments {
			select {
			case <-ctx.Done():
				return
			case ch <- completion.Chunk{Text: f}:
			}
		}
		if streamErr != nil {
			select {
			case <-ctx.Done():
			case ch <- completion.Chunk{Err: streamErr}:
			}
		}
	}()
	return ch, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StreamCompletionCalls = nil
}

// Ensure Provider implements completion.Provider at compile time.
var _ completion.Provider = (*Provider)(nil)

package codec

import (
	"context"
	"errors"
	"fmt"
)

// Accumulator folds a stream of model text fragments into decoded audio.
//
// Feed it fragments in arrival order. Fragments that carry a valid, positive
// token id advance the stream position; whenever the position crosses the
// decode schedule the trailing window is handed to the Decoder and the
// resulting chunk is returned. Not safe for concurrent use.
type Accumulator struct {
	dec    Decoder
	params Params
	ids    []int
	pos    int
	frames int
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithParams overrides the default frame layout.
func WithParams(p Params) Option {
	return func(a *Accumulator) { a.params = p }
}

// NewAccumulator returns an Accumulator that decodes through dec.
func NewAccumulator(dec Decoder, opts ...Option) (*Accumulator, error) {
	if dec == nil {
		return nil, errors.New("codec: decoder is required")
	}
	a := &Accumulator{dec: dec, params: DefaultParams()}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.params.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Feed processes one fragment. It returns a PCM chunk when the fragment
// completed a decode step and the Decoder produced audio, and nil otherwise.
// Fragments without a usable marker and ids outside the positive range are
// dropped without advancing the position, so a malformed fragment never
// shifts later ids out of their codebook slots.
func (a *Accumulator) Feed(ctx context.Context, fragment string) ([]byte, error) {
	id, ok := a.params.TokenID(fragment, a.pos)
	if !ok || id <= 0 {
		return nil, nil
	}
	a.ids = append(a.ids, id)
	a.pos++

	if a.pos <= a.params.MinPosition || a.pos%a.params.Interval != 0 {
		return nil, nil
	}
	window := a.ids[len(a.ids)-a.params.Window:]
	chunk, err := a.dec.Decode(ctx, window, a.pos)
	if err != nil {
		return nil, fmt.Errorf("codec: decode at position %d: %w", a.pos, err)
	}
	a.frames++
	return chunk, nil
}

// Position returns the number of valid ids accumulated so far.
func (a *Accumulator) Position() int { return a.pos }

// FramesDecoded returns the number of windows handed to the Decoder.
// Decodes that yielded no audio still count.
func (a *Accumulator) FramesDecoded() int { return a.frames }

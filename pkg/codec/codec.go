// Package codec turns Orpheus acoustic token streams into raw PCM audio.
//
// An Orpheus-style model emits text fragments that embed markers of the form
// "<custom_token_N>". Each marker maps to an id in a flat space of
// SlotsPerStep codebooks with CodebookSize entries each; seven consecutive
// ids form one decoder step. The [Accumulator] collects valid ids and hands a
// sliding window of the most recent ids to a [Decoder] on a fixed schedule,
// which is where the actual audio synthesis happens.
package codec

import (
	"context"
	"errors"
	"fmt"
)

// Decoder converts one window of codec token ids into a PCM audio chunk.
//
// Semantics:
//   - Decode receives the trailing window of accumulated ids together with
//     the total count of valid ids seen so far.
//   - Returning (nil, nil) means the decoder judged the window unusable and
//     produced no audio; callers skip it and move on.
//   - A non-nil error aborts the surrounding synthesis.
//   - The window slice is only valid for the duration of the call.
type Decoder interface {
	Decode(ctx context.Context, window []int, position int) ([]byte, error)
}

// Params describes the frame layout of an Orpheus token stream.
type Params struct {
	// CodebookSize is the per-codebook vocabulary size.
	CodebookSize int

	// SlotsPerStep is the number of codebooks one decoder step cycles through.
	SlotsPerStep int

	// Window is the number of trailing ids handed to the Decoder per call.
	Window int

	// Interval is the number of valid ids between decode attempts.
	Interval int

	// MinPosition is the id count that must be exceeded before the first
	// decode attempt.
	MinPosition int
}

// DefaultParams returns the frame layout used by the released Orpheus models:
// 7 codebooks of 4096 entries, a 28-id window decoded every 7 ids once more
// than 27 ids have accumulated.
func DefaultParams() Params {
	return Params{
		CodebookSize: 4096,
		SlotsPerStep: 7,
		Window:       28,
		Interval:     7,
		MinPosition:  27,
	}
}

func (p Params) validate() error {
	if p.CodebookSize <= 0 || p.SlotsPerStep <= 0 || p.Window <= 0 || p.Interval <= 0 {
		return errors.New("codec: frame layout values must be positive")
	}
	if p.MinPosition < p.Window-1 {
		return fmt.Errorf("codec: min position %d underfills the %d-id window", p.MinPosition, p.Window)
	}
	return nil
}

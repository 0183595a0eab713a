package codec_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lyrebird-audio/lyrebird/pkg/codec"
	"github.com/lyrebird-audio/lyrebird/pkg/codec/mock"
)

// frag builds a fragment whose marker decodes to id on the default layout
// when fed at valid-token index i.
func frag(i, id int) string {
	return fmt.Sprintf("<custom_token_%d>", 10+(i%7)*4096+id)
}

// feedAll feeds n well-formed fragments with ids 1..n and returns the chunks
// that came back.
func feedAll(t *testing.T, acc *codec.Accumulator, n int) [][]byte {
	t.Helper()
	var chunks [][]byte
	for i := 0; i < n; i++ {
		chunk, err := acc.Feed(context.Background(), frag(i, i+1))
		if err != nil {
			t.Fatalf("Feed fragment %d: unexpected error: %v", i, err)
		}
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func wantIDs(from, to int) []int {
	ids := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		ids = append(ids, i)
	}
	return ids
}

func sameIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAccumulator_NoDecodeBelowWindow(t *testing.T) {
	t.Parallel()
	dec := &mock.Decoder{Chunks: [][]byte{{1, 2}}}
	acc, err := codec.NewAccumulator(dec)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	chunks := feedAll(t, acc, 27)
	if len(chunks) != 0 {
		t.Errorf("got %d chunks for 27 tokens, want 0", len(chunks))
	}
	if len(dec.DecodeCalls) != 0 {
		t.Errorf("decoder called %d times, want 0", len(dec.DecodeCalls))
	}
	if acc.Position() != 27 {
		t.Errorf("Position() = %d, want 27", acc.Position())
	}
	if acc.FramesDecoded() != 0 {
		t.Errorf("FramesDecoded() = %d, want 0", acc.FramesDecoded())
	}
}

func TestAccumulator_FirstDecodeAtFullWindow(t *testing.T) {
	t.Parallel()
	pcm := []byte{0x10, 0x20}
	dec := &mock.Decoder{Chunks: [][]byte{pcm}}
	acc, err := codec.NewAccumulator(dec)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	chunks := feedAll(t, acc, 28)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if string(chunks[0]) != string(pcm) {
		t.Errorf("chunk = %v, want %v", chunks[0], pcm)
	}
	if len(dec.DecodeCalls) != 1 {
		t.Fatalf("decoder called %d times, want 1", len(dec.DecodeCalls))
	}
	call := dec.DecodeCalls[0]
	if call.Position != 28 {
		t.Errorf("decode position = %d, want 28", call.Position)
	}
	if !sameIDs(call.Window, wantIDs(1, 28)) {
		t.Errorf("decode window = %v, want ids 1..28", call.Window)
	}
}

func TestAccumulator_DecodeSchedule(t *testing.T) {
	t.Parallel()
	dec := &mock.Decoder{Chunks: [][]byte{{1}}}
	acc, err := codec.NewAccumulator(dec)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	chunks := feedAll(t, acc, 42)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks for 42 tokens, want 3", len(chunks))
	}
	if len(dec.DecodeCalls) != 3 {
		t.Fatalf("decoder called %d times, want 3", len(dec.DecodeCalls))
	}

	wantPositions := []int{28, 35, 42}
	wantWindows := [][]int{wantIDs(1, 28), wantIDs(8, 35), wantIDs(15, 42)}
	for i, call := range dec.DecodeCalls {
		if call.Position != wantPositions[i] {
			t.Errorf("call %d position = %d, want %d", i, call.Position, wantPositions[i])
		}
		if !sameIDs(call.Window, wantWindows[i]) {
			t.Errorf("call %d window = %v, want %v", i, call.Window, wantWindows[i])
		}
	}
}

func TestAccumulator_ThirtyFiveTokensDecodeTwice(t *testing.T) {
	t.Parallel()
	// The window fills at token 28 and the schedule fires again at 35, so a
	// 35-token stream produces exactly two decode calls.
	dec := &mock.Decoder{Chunks: [][]byte{{7}}}
	acc, err := codec.NewAccumulator(dec)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	chunks := feedAll(t, acc, 35)
	if len(chunks) != 2 {
		t.Errorf("got %d chunks, want 2", len(chunks))
	}
	if len(dec.DecodeCalls) != 2 {
		t.Fatalf("decoder called %d times, want 2", len(dec.DecodeCalls))
	}
	if dec.DecodeCalls[0].Position != 28 || dec.DecodeCalls[1].Position != 35 {
		t.Errorf("decode positions = %d, %d, want 28, 35",
			dec.DecodeCalls[0].Position, dec.DecodeCalls[1].Position)
	}
}

func TestAccumulator_MalformedFragmentsDoNotAdvance(t *testing.T) {
	t.Parallel()
	dec := &mock.Decoder{Chunks: [][]byte{{9}}}
	acc, err := codec.NewAccumulator(dec)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	// Interleave a malformed fragment before every valid one. Slot indices
	// must follow the count of accepted ids, not the count of fragments fed.
	var chunks [][]byte
	for i := 0; i < 28; i++ {
		if chunk, err := acc.Feed(context.Background(), "data: not a token"); err != nil || chunk != nil {
			t.Fatalf("malformed fragment %d: chunk=%v err=%v, want nil, nil", i, chunk, err)
		}
		chunk, err := acc.Feed(context.Background(), frag(i, i+1))
		if err != nil {
			t.Fatalf("Feed fragment %d: %v", i, err)
		}
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}

	if acc.Position() != 28 {
		t.Errorf("Position() = %d, want 28", acc.Position())
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if !sameIDs(dec.DecodeCalls[0].Window, wantIDs(1, 28)) {
		t.Errorf("decode window = %v, want ids 1..28", dec.DecodeCalls[0].Window)
	}
}

func TestAccumulator_NonPositiveIDsDropped(t *testing.T) {
	t.Parallel()
	dec := &mock.Decoder{}
	acc, err := codec.NewAccumulator(dec)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	// Raw 10 at slot 0 extracts to id 0, raw 5 to id -5. Neither may count.
	for _, f := range []string{"<custom_token_10>", "<custom_token_5>"} {
		chunk, err := acc.Feed(context.Background(), f)
		if err != nil {
			t.Fatalf("Feed(%q): %v", f, err)
		}
		if chunk != nil {
			t.Errorf("Feed(%q) produced a chunk, want none", f)
		}
	}
	if acc.Position() != 0 {
		t.Errorf("Position() = %d, want 0", acc.Position())
	}
}

func TestAccumulator_SkipsAbsentDecodes(t *testing.T) {
	t.Parallel()
	pcm := []byte{0xAA, 0xBB}
	dec := &mock.Decoder{Chunks: [][]byte{nil, pcm}}
	acc, err := codec.NewAccumulator(dec)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	chunks := feedAll(t, acc, 35)
	if len(dec.DecodeCalls) != 2 {
		t.Fatalf("decoder called %d times, want 2", len(dec.DecodeCalls))
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (first decode produced no audio)", len(chunks))
	}
	if string(chunks[0]) != string(pcm) {
		t.Errorf("chunk = %v, want %v", chunks[0], pcm)
	}
	if acc.FramesDecoded() != 2 {
		t.Errorf("FramesDecoded() = %d, want 2 (absent decodes still count)", acc.FramesDecoded())
	}
}

func TestAccumulator_DecodeError(t *testing.T) {
	t.Parallel()
	boom := errors.New("backend unavailable")
	dec := &mock.Decoder{Err: boom}
	acc, err := codec.NewAccumulator(dec)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	for i := 0; i < 27; i++ {
		if _, err := acc.Feed(context.Background(), frag(i, i+1)); err != nil {
			t.Fatalf("Feed fragment %d: unexpected error: %v", i, err)
		}
	}
	_, err = acc.Feed(context.Background(), frag(27, 28))
	if err == nil {
		t.Fatal("expected error from failing decoder, got nil")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error %v does not wrap the decoder error", err)
	}
	if !strings.Contains(err.Error(), "position 28") {
		t.Errorf("error %q should name the stream position", err)
	}
}

func TestNewAccumulator_Validation(t *testing.T) {
	t.Parallel()
	if _, err := codec.NewAccumulator(nil); err == nil {
		t.Error("expected error for nil decoder, got nil")
	}

	bad := codec.Params{CodebookSize: 4096, SlotsPerStep: 7, Window: 28, Interval: 7, MinPosition: 10}
	if _, err := codec.NewAccumulator(&mock.Decoder{}, codec.WithParams(bad)); err == nil {
		t.Error("expected error for underfilled window, got nil")
	}

	zero := codec.Params{}
	if _, err := codec.NewAccumulator(&mock.Decoder{}, codec.WithParams(zero)); err == nil {
		t.Error("expected error for zero layout, got nil")
	}
}

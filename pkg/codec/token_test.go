package codec_test

import (
	"testing"

	"github.com/lyrebird-audio/lyrebird/pkg/codec"
)

func TestTokenID(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		fragment string
		index    int
		want     int
		wantOK   bool
	}{
		{
			name:     "slot zero",
			fragment: "<custom_token_2055>",
			index:    0,
			want:     2045,
			wantOK:   true,
		},
		{
			name:     "slot one subtracts one codebook",
			fragment: "<custom_token_6151>",
			index:    1,
			want:     2045,
			wantOK:   true,
		},
		{
			name:     "slot six subtracts six codebooks",
			fragment: "<custom_token_24586>",
			index:    6,
			want:     0,
			wantOK:   true,
		},
		{
			name:     "index wraps at seven",
			fragment: "<custom_token_2055>",
			index:    7,
			want:     2045,
			wantOK:   true,
		},
		{
			name:     "last marker wins",
			fragment: "<custom_token_99> noise <custom_token_2055>",
			index:    0,
			want:     2045,
			wantOK:   true,
		},
		{
			name:     "surrounding whitespace is trimmed",
			fragment: "  <custom_token_2055>\n",
			index:    0,
			want:     2045,
			wantOK:   true,
		},
		{
			name:     "non-positive result is still reported",
			fragment: "<custom_token_5>",
			index:    0,
			want:     -5,
			wantOK:   true,
		},
		{
			name:     "missing terminator",
			fragment: "<custom_token_2055",
			wantOK:   false,
		},
		{
			name:     "trailing text after terminator",
			fragment: "<custom_token_2055> tail",
			wantOK:   false,
		},
		{
			name:     "non-numeric payload",
			fragment: "<custom_token_abc>",
			wantOK:   false,
		},
		{
			name:     "empty payload",
			fragment: "<custom_token_>",
			wantOK:   false,
		},
		{
			name:     "plain text",
			fragment: "hello there",
			wantOK:   false,
		},
		{
			name:     "empty fragment",
			fragment: "",
			wantOK:   false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := codec.TokenID(tt.fragment, tt.index)
			if ok != tt.wantOK {
				t.Fatalf("TokenID(%q, %d) ok = %v, want %v", tt.fragment, tt.index, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("TokenID(%q, %d) = %d, want %d", tt.fragment, tt.index, got, tt.want)
			}
		})
	}
}

func TestTokenID_CustomLayout(t *testing.T) {
	t.Parallel()
	p := codec.Params{CodebookSize: 100, SlotsPerStep: 3, Window: 6, Interval: 3, MinPosition: 5}

	// Raw 310 at index 2 (slot 2): 310 - 10 - 2*100 = 100.
	got, ok := p.TokenID("<custom_token_310>", 2)
	if !ok {
		t.Fatal("expected a token id, got none")
	}
	if got != 100 {
		t.Errorf("id = %d, want 100", got)
	}

	// Index 3 wraps back to slot 0.
	got, ok = p.TokenID("<custom_token_310>", 3)
	if !ok {
		t.Fatal("expected a token id, got none")
	}
	if got != 300 {
		t.Errorf("id = %d, want 300", got)
	}
}

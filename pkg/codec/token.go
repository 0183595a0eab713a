package codec

import (
	"strconv"
	"strings"
)

const (
	// tokenMarker prefixes every acoustic token in the model's text output.
	tokenMarker = "<custom_token_"

	// idBias is the fixed offset the model adds to every raw token number.
	idBias = 10
)

// TokenID extracts the codec token id from fragment using the default
// Orpheus frame layout. See [Params.TokenID] for the exact rules.
func TokenID(fragment string, index int) (int, bool) {
	return DefaultParams().TokenID(fragment, index)
}

// TokenID extracts the codec token id embedded in fragment, where index is
// the number of valid ids accepted before it. Only the last marker in the
// fragment counts and it must run to the end of the trimmed fragment,
// terminated by '>'. The numeric payload is de-biased and shifted down by the
// codebook slot the id occupies within its step (index mod SlotsPerStep).
//
// The boolean is false when the fragment carries no parseable marker.
// Non-positive ids are returned as-is; filtering them is the caller's
// concern.
func (p Params) TokenID(fragment string, index int) (int, bool) {
	s := strings.TrimSpace(fragment)
	start := strings.LastIndex(s, tokenMarker)
	if start < 0 {
		return 0, false
	}
	marker := s[start:]
	if !strings.HasSuffix(marker, ">") {
		return 0, false
	}
	raw, err := strconv.Atoi(marker[len(tokenMarker) : len(marker)-1])
	if err != nil {
		return 0, false
	}
	return raw - idBias - (index%p.SlotsPerStep)*p.CodebookSize, true
}

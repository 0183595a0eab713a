// Package prompt builds the text prompts the Orpheus model expects and
// estimates their token cost.
package prompt

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/lyrebird-audio/lyrebird/internal/voice"
)

const (
	// audioTag tells the model to respond with acoustic tokens.
	audioTag = "<|audio|>"
	// terminator closes the prompt turn.
	terminator = "<|eot_id|>"
)

// Format wraps text in the Orpheus prompt frame for the given voice. An
// unknown voice is logged, with the closest roster name when one is near,
// and replaced with the default.
func Format(text, voiceName string) string {
	if !voice.Known(voiceName) {
		if hint, ok := voice.Suggest(voiceName); ok {
			slog.Warn("prompt: unknown voice, using default",
				"voice", voiceName, "default", voice.Default, "did_you_mean", hint)
		} else {
			slog.Warn("prompt: unknown voice, using default",
				"voice", voiceName, "default", voice.Default)
		}
		voiceName = voice.Default
	}
	return fmt.Sprintf("%s%s: %s%s", audioTag, voiceName, text, terminator)
}

// EstimateTokens roughly counts the prompt tokens for text spoken by the
// given voice. The estimate is whitespace-based and includes the prompt
// frame itself.
func EstimateTokens(text, voiceName string) int {
	return len(strings.Fields(Format(text, voiceName)))
}

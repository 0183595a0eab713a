package prompt_test

import (
	"strings"
	"testing"

	"github.com/lyrebird-audio/lyrebird/internal/prompt"
)

func TestFormat(t *testing.T) {
	t.Parallel()

	got := prompt.Format("Hello there.", "leo")
	want := "<|audio|>leo: Hello there.<|eot_id|>"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormat_UnknownVoiceUsesDefault(t *testing.T) {
	t.Parallel()

	got := prompt.Format("Hello.", "nobody")
	want := "<|audio|>tara: Hello.<|eot_id|>"
	if got != want {
		t.Errorf("Format with unknown voice = %q, want %q", got, want)
	}
}

func TestFormat_EmptyText(t *testing.T) {
	t.Parallel()

	got := prompt.Format("", "tara")
	want := "<|audio|>tara: <|eot_id|>"
	if got != want {
		t.Errorf("Format with empty text = %q, want %q", got, want)
	}
}

func TestFormat_EmotionTagsPassThrough(t *testing.T) {
	t.Parallel()

	got := prompt.Format("Well <laugh> that went better than expected <sigh>.", "tara")
	for _, tag := range []string{"<laugh>", "<sigh>"} {
		if !strings.Contains(got, tag) {
			t.Errorf("emotion tag %q missing from %q", tag, got)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"two words", "Hello world", 3},
		{"empty text", "", 2},
		{"extra whitespace collapses", "Hello   \t world", 3},
		{"single word", "Hello", 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := prompt.EstimateTokens(tt.text, "tara"); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

package synth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Boundary patterns for chunking. Both split after the terminator so the
// punctuation stays with the preceding fragment.
var (
	sentenceEnd = regexp.MustCompile(`[.!?]\s+`)
	phraseEnd   = regexp.MustCompile(`[,;]\s+`)
)

// SplitText splits text into chunks of at most maxChunkSize runes, breaking
// at sentence boundaries so chunk edges fall on natural pauses. A sentence
// longer than the limit is broken at phrase boundaries (commas and
// semicolons) instead, and at word boundaries when even a phrase is too
// long. Text already within the limit is returned as a single chunk.
func SplitText(text string, maxChunkSize int) []string {
	if utf8.RuneCountInString(text) <= maxChunkSize {
		return []string{text}
	}

	var chunks []string
	current := ""

	for _, sentence := range splitAfter(text, sentenceEnd) {
		if sentence == "" {
			continue
		}
		if utf8.RuneCountInString(sentence) > maxChunkSize {
			if current != "" {
				chunks = append(chunks, current)
				current = ""
			}
			chunks = append(chunks, splitLongSentence(sentence, maxChunkSize)...)
			continue
		}
		if current == "" {
			current = sentence
		} else if utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence)+1 <= maxChunkSize {
			current += " " + sentence
		} else {
			chunks = append(chunks, current)
			current = sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitLongSentence breaks one oversized sentence at phrase boundaries,
// falling back to word packing when the longest phrase still exceeds the
// limit.
func splitLongSentence(sentence string, maxChunkSize int) []string {
	phrases := splitAfter(sentence, phraseEnd)

	longest := 0
	for _, p := range phrases {
		if n := utf8.RuneCountInString(p); n > longest {
			longest = n
		}
	}
	if longest > maxChunkSize {
		return pack(strings.Fields(sentence), maxChunkSize)
	}
	return pack(phrases, maxChunkSize)
}

// pack greedily joins parts with single spaces into chunks of at most
// maxChunkSize runes. A single part longer than the limit becomes its own
// oversized chunk rather than being cut mid-word.
func pack(parts []string, maxChunkSize int) []string {
	var chunks []string
	current := ""

	for _, part := range parts {
		if part == "" {
			continue
		}
		if current == "" {
			current = part
		} else if utf8.RuneCountInString(current)+utf8.RuneCountInString(part)+1 <= maxChunkSize {
			current += " " + part
		} else {
			chunks = append(chunks, current)
			current = part
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitAfter splits text after each match of re, attaching the terminator
// rune to the left fragment and discarding the matched whitespace. The
// final fragment may be empty when text ends on a boundary.
func splitAfter(text string, re *regexp.Regexp) []string {
	var parts []string
	last := 0
	for _, loc := range re.FindAllStringIndex(text, -1) {
		parts = append(parts, text[last:loc[0]+1])
		last = loc[1]
	}
	parts = append(parts, text[last:])
	return parts
}

// Package voice holds the Orpheus speaker roster and the tuned sampling
// parameters identified for each voice through grid search.
package voice

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Default is the voice used when none is requested or the requested one
// is unknown. It is the best all-round voice per the model card.
const Default = "tara"

// Names lists every available voice in roster order.
var Names = []string{"tara", "leah", "jess", "leo", "dan", "mia", "zac", "zoe"}

// EmotionTags are inline markers the model renders as non-verbal sounds.
// They can appear anywhere in the input text.
var EmotionTags = []string{
	"<laugh>", "<chuckle>", "<sigh>", "<cough>",
	"<sniffle>", "<groan>", "<yawn>", "<gasp>",
}

// Params are the sampling settings used when generating with a voice.
type Params struct {
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
}

// tunings maps each voice to its grid-search optimum.
var tunings = map[string]Params{
	"tara": {Temperature: 1.2, TopP: 0.8, RepeatPenalty: 1.5},
	"leah": {Temperature: 0.3, TopP: 0.6, RepeatPenalty: 1.8},
	"jess": {Temperature: 1.2, TopP: 0.8, RepeatPenalty: 1.5},
	"leo":  {Temperature: 0.6, TopP: 0.8, RepeatPenalty: 1.8},
	"dan":  {Temperature: 0.3, TopP: 0.6, RepeatPenalty: 1.8},
	"mia":  {Temperature: 0.9, TopP: 0.3, RepeatPenalty: 1.1},
	"zac":  {Temperature: 1.2, TopP: 0.95, RepeatPenalty: 1.3},
	"zoe":  {Temperature: 0.6, TopP: 0.95, RepeatPenalty: 1.8},
}

// Known reports whether name is in the roster.
func Known(name string) bool {
	_, ok := tunings[name]
	return ok
}

// Resolve maps a requested voice to the one that will actually speak.
// Known names pass through; anything else falls back to the default,
// reported by the second return.
func Resolve(name string) (string, bool) {
	if Known(name) {
		return name, true
	}
	return Default, false
}

// Tuning returns the tuned parameters for name. Unknown names get the
// default voice's parameters.
func Tuning(name string) Params {
	if p, ok := tunings[name]; ok {
		return p
	}
	return tunings[Default]
}

// Category buckets voices by the character of their tuned parameters.
type Category string

const (
	// CategoryExpressive voices run hot: high temperature with high top_p.
	CategoryExpressive Category = "expressive"
	// CategoryPrecise voices run cold: low temperature with a strong
	// repetition penalty.
	CategoryPrecise Category = "precise"
	// CategoryBalanced voices sit in the middle on both axes.
	CategoryBalanced Category = "balanced"
	// CategoryUnique voices have parameter combinations that fit no
	// other bucket.
	CategoryUnique Category = "unique"
)

// Categories lists the buckets in display order.
var Categories = []Category{CategoryExpressive, CategoryPrecise, CategoryBalanced, CategoryUnique}

// Categorize assigns tuned parameters to their bucket. The checks run in
// order, so a voice that is both cold and mid-range counts as precise.
func Categorize(p Params) Category {
	switch {
	case p.Temperature >= 0.9 && p.TopP >= 0.8:
		return CategoryExpressive
	case p.Temperature <= 0.6 && p.RepeatPenalty >= 1.5:
		return CategoryPrecise
	case p.Temperature >= 0.6 && p.Temperature < 0.9 && p.TopP >= 0.6 && p.TopP < 0.95:
		return CategoryBalanced
	default:
		return CategoryUnique
	}
}

// ByCategory groups the roster into buckets, preserving roster order
// within each bucket. Every bucket is present in the result, empty ones
// included.
func ByCategory() map[Category][]string {
	out := make(map[Category][]string, len(Categories))
	for _, c := range Categories {
		out[c] = []string{}
	}
	for _, name := range Names {
		c := Categorize(tunings[name])
		out[c] = append(out[c], name)
	}
	return out
}

// suggestMaxDistance is the largest edit distance still offered as a
// "did you mean" hint.
const suggestMaxDistance = 2

// Suggest returns the roster name closest to the given one, if any is
// within a small edit distance. Matching is case-insensitive.
func Suggest(name string) (string, bool) {
	name = strings.ToLower(name)
	best := ""
	bestDist := suggestMaxDistance + 1
	for _, candidate := range Names {
		if d := matchr.Levenshtein(name, candidate); d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best, best != ""
}

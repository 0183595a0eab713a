package completion

import "fmt"

// Request describes one streaming completion call. Fields are passed to the
// server verbatim; defaults are the caller's responsibility.
type Request struct {
	// Prompt is the fully formatted prompt text.
	Prompt string

	// Temperature is the sampling temperature.
	Temperature float64

	// TopP is the nucleus sampling cutoff.
	TopP float64

	// MaxTokens caps the number of generated tokens.
	MaxTokens int

	// RepeatPenalty discourages the server from repeating recent tokens.
	RepeatPenalty float64
}

// Chunk is one element of a completion stream: either a text fragment or,
// exactly once as the final element, a stream error.
type Chunk struct {
	// Text is the generated fragment. Empty when Err is set.
	Text string

	// Err reports a mid-stream failure. The channel is closed right after a
	// Chunk with Err set.
	Err error
}

// StatusError is returned by StreamCompletion when the server answers with a
// non-200 status before any streaming happens.
type StatusError struct {
	// Code is the HTTP status code.
	Code int

	// Body is the (possibly truncated) response body.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion: server returned status %d: %s", e.Code, e.Body)
}

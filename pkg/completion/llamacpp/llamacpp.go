// Package llamacpp streams completions from a llama.cpp server.
//
// The client drives the server's OpenAI-compatible POST /v1/completions
// endpoint in streaming mode and relays the server-sent "data:" events as
// text fragments. GET /health reports server liveness.
package llamacpp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lyrebird-audio/lyrebird/pkg/completion"
)

const (
	completionsPath = "/v1/completions"
	healthPath      = "/health"

	// dataPrefix marks payload lines in the server-sent event stream.
	dataPrefix = "data: "

	// doneSentinel is the payload the server sends when generation finished.
	doneSentinel = "[DONE]"

	// chunkBuffer decouples the network reader from the consumer.
	chunkBuffer = 256

	// maxEventSize caps a single stream event line.
	maxEventSize = 1 << 20

	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 4096
)

// Client talks to a llama.cpp server.
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds the whole request including the streaming read. The
// default client applies no timeout because a long generation can stream for
// minutes; cancel ctx to abort instead.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a Client for the llama.cpp server at serverURL.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("llamacpp: server URL is required")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// completionRequest is the wire shape of the completion call. Stop is always
// serialized, as an explicit null when no stop sequences are set.
type completionRequest struct {
	Prompt        string   `json:"prompt"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"top_p"`
	MaxTokens     int      `json:"max_tokens"`
	Stop          []string `json:"stop"`
	Stream        bool     `json:"stream"`
	RepeatPenalty float64  `json:"repeat_penalty"`
}

// streamEvent is the wire shape of one server-sent event payload.
type streamEvent struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// StreamCompletion posts req and streams the generated text fragments. A
// non-200 response surfaces as a *completion.StatusError before any channel
// is created.
func (c *Client) StreamCompletion(ctx context.Context, req completion.Request) (<-chan completion.Chunk, error) {
	body, err := json.Marshal(completionRequest{
		Prompt:        req.Prompt,
		Temperature:   req.Temperature,
		TopP:          req.TopP,
		MaxTokens:     req.MaxTokens,
		Stream:        true,
		RepeatPenalty: req.RepeatPenalty,
	})
	if err != nil {
		return nil, fmt.Errorf("llamacpp: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llamacpp: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llamacpp: POST %s: %w", completionsPath, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &completion.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	out := make(chan completion.Chunk, chunkBuffer)
	go c.readStream(ctx, resp.Body, out)
	return out, nil
}

// readStream relays server-sent events from body to out until the done
// sentinel, EOF, a read error, or ctx cancellation.
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, out chan<- completion.Chunk) {
	defer close(out)
	defer body.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == doneSentinel {
			return
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			slog.Debug("skipping malformed stream event", "err", err)
			continue
		}
		if len(ev.Choices) == 0 {
			slog.Debug("skipping stream event without choices")
			continue
		}

		select {
		case out <- completion.Chunk{Text: ev.Choices[0].Text}:
		case <-ctx.Done():
			return
		}
	}

	if err := sc.Err(); err != nil {
		select {
		case out <- completion.Chunk{Err: fmt.Errorf("llamacpp: read stream: %w", err)}:
		case <-ctx.Done():
		}
	}
}

// Healthcheck probes the server's liveness endpoint.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("llamacpp: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llamacpp: GET %s: %w", healthPath, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llamacpp: health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Ensure Client implements completion.Provider at compile time.
var _ completion.Provider = (*Client)(nil)

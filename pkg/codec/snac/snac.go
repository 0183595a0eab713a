// Package snac decodes codec token windows through a SNAC vocoder sidecar
// over HTTP.
//
// The sidecar exposes POST /api/v1/decode accepting a JSON body of the form
// {"codes": [...], "position": N} and answers with raw 16-bit little-endian
// mono PCM. A 204 response means the sidecar judged the window unusable and
// produced no audio. GET /healthz reports liveness.
package snac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lyrebird-audio/lyrebird/pkg/codec"
)

const (
	decodePath = "/api/v1/decode"
	healthPath = "/healthz"

	// defaultTimeout bounds a single decode round trip.
	defaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is kept for messages.
	maxErrorBody = 2048
)

// Client talks to a SNAC decoder sidecar.
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a Client for the sidecar at serverURL.
func New(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errors.New("snac: server URL is required")
	}
	c := &Client{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type decodeRequest struct {
	Codes    []int `json:"codes"`
	Position int   `json:"position"`
}

// Decode posts one token window to the sidecar and returns the PCM it
// produced. A 204 response maps to (nil, nil).
func (c *Client) Decode(ctx context.Context, window []int, position int) ([]byte, error) {
	body, err := json.Marshal(decodeRequest{Codes: window, Position: position})
	if err != nil {
		return nil, fmt.Errorf("snac: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+decodePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("snac: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snac: POST %s: %w", decodePath, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("snac: decoder returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("snac: read audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, nil
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("snac: decoder returned odd-length PCM (%d bytes)", len(pcm))
	}
	return pcm, nil
}

// Healthcheck probes the sidecar's liveness endpoint.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("snac: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("snac: GET %s: %w", healthPath, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("snac: health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Ensure Client implements codec.Decoder at compile time.
var _ codec.Decoder = (*Client)(nil)

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package flow provides the HTTP client for executing remote flows and
// decoding their streaming responses.
package flow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeAborted            // caller cancelled; never surfaced as an error to users
	ErrTypeHTTP               // non-2xx status
	ErrTypeNetwork            // transport-level failure
	ErrTypeInvalidResponse
)

// ClientError represents an error from the flow client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error

	// HTTP details (ErrTypeHTTP only)
	Status int
	Body   string
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrAborted is the sentinel for user/caller cancellation.
var ErrAborted = &ClientError{Type: ErrTypeAborted, Message: "run aborted"}

// IsAborted reports whether err is a cancellation, which settles silently.
func IsAborted(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Type == ErrTypeAborted
	}
	return errors.Is(err, context.Canceled)
}

// IsHTTPError reports whether err carries a non-2xx HTTP status.
func IsHTTPError(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrTypeHTTP
}

// IsNetworkError reports whether err is a transport-level failure.
func IsNetworkError(err error) bool {
	var clientErr *ClientError
	return errors.As(err, &clientErr) && clientErr.Type == ErrTypeNetwork
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the flow client.
type Config struct {
	// HostURL is the flow server base URL. A trailing slash is tolerated.
	HostURL string

	// FlowID identifies the server-side flow to run.
	FlowID string

	// APIKey, when set, is sent as the x-api-key header.
	APIKey string

	// AdditionalHeaders are layered after the defaults, so a caller header
	// wins on key collision (including Content-Type).
	AdditionalHeaders map[string]string

	// Input/output configuration forwarded in the request body.
	InputType       string
	OutputType      string
	OutputComponent string
	Tweaks          map[string]any
	ChatInputs      map[string]any
	ChatInputField  string

	// FallbackMessage is returned when a run completes with zero tokens and
	// no usable end result. An empty response resolves; it does not reject.
	FallbackMessage string

	// BufferedMode forces the non-streaming path for transports or proxies
	// that deliver the response body only as a whole. Token chunks are then
	// replayed on the PacingInterval cadence so consumers still observe
	// incremental growth.
	BufferedMode bool

	// PacingInterval is the artificial delay between replayed chunks in
	// buffered mode (default: 50ms).
	PacingInterval time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		InputType:       "chat",
		OutputType:      "chat",
		FallbackMessage: "Sorry, I could not generate a response.",
		PacingInterval:  50 * time.Millisecond,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// ChunkFunc receives the cumulative accumulated text, not a delta, on every
// invocation.
type ChunkFunc func(cumulative string)

// Client runs flows against a remote server.
//
// A Client is safe for concurrent use, though the widget layer guarantees at
// most one run in flight per conversation.
type Client struct {
	config *Config
	log    *zap.SugaredLogger
}

// NewClient creates a flow client. log may be nil.
func NewClient(config *Config, log *zap.SugaredLogger) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.InputType == "" {
		config.InputType = "chat"
	}
	if config.OutputType == "" {
		config.OutputType = "chat"
	}
	if config.FallbackMessage == "" {
		config.FallbackMessage = "Sorry, I could not generate a response."
	}
	if config.PacingInterval <= 0 {
		config.PacingInterval = 50 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Client{config: config, log: log}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *Config {
	return c.config
}

// RunURL returns the run endpoint for the configured flow.
func (c *Client) RunURL() string {
	return strings.TrimRight(c.config.HostURL, "/") + "/api/v1/run/" + c.config.FlowID + "?stream=true"
}

// =============================================================================
// REQUEST CONSTRUCTION
// =============================================================================

func (c *Client) buildRequest(ctx context.Context, sessionID, input string) (*http.Request, error) {
	body := runRequest{
		InputValue:      input,
		InputType:       c.config.InputType,
		OutputType:      c.config.OutputType,
		OutputComponent: c.config.OutputComponent,
		SessionID:       sessionID,
		Tweaks:          c.config.Tweaks,
		ChatInputs:      c.config.ChatInputs,
		ChatInputField:  c.config.ChatInputField,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RunURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeNetwork, Message: "failed to create request", Cause: err}
	}

	// Defaults first, caller headers last: last-write-wins on collision.
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("x-api-key", c.config.APIKey)
	}
	for key, value := range c.config.AdditionalHeaders {
		req.Header.Set(key, value)
	}

	return req, nil
}

// =============================================================================
// RUN
// =============================================================================

// Run executes the flow with the given input and streams the response.
//
// onChunk is invoked with the cumulative text for every token event, in wire
// order. When the end event carries a final message strictly longer than the
// accumulation, that text replaces it and one final onChunk fires before Run
// returns. A run that produces no text resolves with the configured fallback
// message and zero onChunk calls.
//
// Cancelling ctx aborts the transport operation and returns an error
// satisfying IsAborted; no onChunk fires after the cancellation point.
func (c *Client) Run(ctx context.Context, sessionID, input string, onChunk ChunkFunc) (string, error) {
	req, err := c.buildRequest(ctx, sessionID, input)
	if err != nil {
		return "", err
	}

	// No client timeout for streaming; lifetime is governed by ctx.
	streamClient := &http.Client{}

	resp, err := streamClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrAborted
		}
		return "", &ClientError{Type: ErrTypeNetwork, Message: "flow request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.httpError(resp)
	}

	if c.config.BufferedMode {
		return c.runBuffered(ctx, resp.Body, onChunk)
	}
	return c.runStreaming(ctx, resp.Body, onChunk)
}

// runStreaming consumes the body incrementally.
func (c *Client) runStreaming(ctx context.Context, body io.Reader, onChunk ChunkFunc) (string, error) {
	var accumulated strings.Builder
	var finalMessage string

	reader := NewStreamReader(body, c.log)
	err := reader.Process(ctx, func(ev StreamEvent) {
		switch ev.Kind {
		case EventToken:
			accumulated.WriteString(ev.Chunk)
			if onChunk != nil {
				onChunk(accumulated.String())
			}
		case EventEnd:
			if msg, ok := ExtractFinalMessage(ev.Result); ok {
				finalMessage = msg
			}
		case EventAddMessage:
			c.log.Debugw("add_message event", "text", ev.Text)
		}
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return "", ErrAborted
		}
		return "", &ClientError{Type: ErrTypeNetwork, Message: "stream read failed", Cause: err}
	}

	return c.reconcile(ctx, accumulated.String(), finalMessage, onChunk)
}

// runBuffered decodes the whole body at once, then replays token chunks on
// a fixed cadence so consumers observe the same incremental-growth contract
// as true streaming. The limiter waits on ctx, so cancellation is checked
// before every paced callback; a cancel mid-pacing fires nothing further.
func (c *Client) runBuffered(ctx context.Context, body io.Reader, onChunk ChunkFunc) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrAborted
		}
		return "", &ClientError{Type: ErrTypeNetwork, Message: "failed to read response body", Cause: err}
	}

	var accumulated strings.Builder
	var finalMessage string

	limiter := rate.NewLimiter(rate.Every(c.config.PacingInterval), 1)
	for _, ev := range DecodeAll(raw, c.log) {
		switch ev.Kind {
		case EventToken:
			if err := limiter.Wait(ctx); err != nil {
				return "", ErrAborted
			}
			accumulated.WriteString(ev.Chunk)
			if onChunk != nil {
				onChunk(accumulated.String())
			}
		case EventEnd:
			if msg, ok := ExtractFinalMessage(ev.Result); ok {
				finalMessage = msg
			}
		}
	}

	return c.reconcile(ctx, accumulated.String(), finalMessage, onChunk)
}

// reconcile applies the end-event backstop: the final message replaces the
// accumulation only when strictly longer, with one last cumulative callback.
func (c *Client) reconcile(ctx context.Context, accumulated, finalMessage string, onChunk ChunkFunc) (string, error) {
	if len(finalMessage) > len(accumulated) {
		accumulated = finalMessage
		if onChunk != nil && ctx.Err() == nil {
			onChunk(accumulated)
		}
	}

	if accumulated == "" {
		// Completed with zero tokens and no usable end result.
		return c.config.FallbackMessage, nil
	}
	return accumulated, nil
}

// httpError builds an ErrTypeHTTP error with a best-effort parsed body.
func (c *Client) httpError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := "flow request failed: " + resp.Status
	var parsed apiError
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Detail != "" {
		message = parsed.Detail
	}

	return &ClientError{
		Type:    ErrTypeHTTP,
		Message: message,
		Status:  resp.StatusCode,
		Body:    strings.TrimSpace(string(raw)),
	}
}

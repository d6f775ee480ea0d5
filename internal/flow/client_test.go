// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package flow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SERVER HELPERS
// =============================================================================

// newFlowServer returns a test server that records the request and writes
// the given response lines.
func newFlowServer(t *testing.T, body string, capture *http.Request) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			*capture = *r.Clone(context.Background())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func testConfig(hostURL string) *Config {
	cfg := DefaultConfig()
	cfg.HostURL = hostURL
	cfg.FlowID = "flow-123"
	cfg.FallbackMessage = "No response available."
	cfg.PacingInterval = time.Millisecond
	return cfg
}

// =============================================================================
// REQUEST CONSTRUCTION TESTS
// =============================================================================

func TestRunURL_TrimsTrailingSlash(t *testing.T) {
	cfg := testConfig("http://example.com/")
	client := NewClient(cfg, nil)

	assert.Equal(t, "http://example.com/api/v1/run/flow-123?stream=true", client.RunURL())
}

func TestRun_RequestBodyAndHeaders(t *testing.T) {
	var captured http.Request
	var capturedBody runRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = *r.Clone(context.Background())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		w.Write([]byte(`{"event":"token","data":{"chunk":"ok"}}` + "\n"))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.APIKey = "secret"
	cfg.OutputComponent = "chat-output"
	cfg.Tweaks = map[string]any{"temperature": 0.2}
	cfg.ChatInputField = "question"
	cfg.AdditionalHeaders = map[string]string{"X-Trace": "abc"}

	client := NewClient(cfg, nil)
	_, err := client.Run(context.Background(), "session-1", "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, captured.Method)
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.Equal(t, "secret", captured.Header.Get("x-api-key"))
	assert.Equal(t, "abc", captured.Header.Get("X-Trace"))
	assert.Equal(t, "true", captured.URL.Query().Get("stream"))

	assert.Equal(t, "hello", capturedBody.InputValue)
	assert.Equal(t, "chat", capturedBody.InputType)
	assert.Equal(t, "chat", capturedBody.OutputType)
	assert.Equal(t, "chat-output", capturedBody.OutputComponent)
	assert.Equal(t, "session-1", capturedBody.SessionID)
	assert.Equal(t, "question", capturedBody.ChatInputField)
}

func TestRun_CallerHeaderOverridesDefault(t *testing.T) {
	var captured http.Request
	server := newFlowServer(t, `{"event":"token","data":{"chunk":"x"}}`+"\n", &captured)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.AdditionalHeaders = map[string]string{"Content-Type": "application/json; charset=utf-8"}

	client := NewClient(cfg, nil)
	_, err := client.Run(context.Background(), "s", "q", nil)
	require.NoError(t, err)

	assert.Equal(t, "application/json; charset=utf-8", captured.Header.Get("Content-Type"))
}

// =============================================================================
// STREAMING BEHAVIOR TESTS
// =============================================================================

func TestRun_AccumulatesTokens(t *testing.T) {
	// Scenario: two tokens then an empty end result resolves with "Hello".
	body := `{"event":"token","data":{"chunk":"Hel"}}` + "\n" +
		`{"event":"token","data":{"chunk":"lo"}}` + "\n" +
		`{"event":"end","data":{"result":{}}}` + "\n"
	server := newFlowServer(t, body, nil)
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)

	var chunks []string
	final, err := client.Run(context.Background(), "s", "q", func(cumulative string) {
		chunks = append(chunks, cumulative)
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello", final)
	assert.Equal(t, []string{"Hel", "Hello"}, chunks)
}

func TestRun_EndResultReplacesShorterAccumulation(t *testing.T) {
	// Scenario: zero tokens, final message only via the end event.
	body := `{"event":"end","data":{"result":{"outputs":[{"outputs":[{"results":{"message":{"text":"Answer"}}}]}]}}}` + "\n"
	server := newFlowServer(t, body, nil)
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)

	var chunks []string
	final, err := client.Run(context.Background(), "s", "q", func(cumulative string) {
		chunks = append(chunks, cumulative)
	})

	require.NoError(t, err)
	assert.Equal(t, "Answer", final)
	assert.Equal(t, []string{"Answer"}, chunks)
}

func TestRun_EndResultIgnoredWhenNotLonger(t *testing.T) {
	body := `{"event":"token","data":{"chunk":"A longer streamed answer"}}` + "\n" +
		`{"event":"end","data":{"result":{"outputs":[{"outputs":[{"results":{"message":"short"}}]}]}}}` + "\n"
	server := newFlowServer(t, body, nil)
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)

	var calls int
	final, err := client.Run(context.Background(), "s", "q", func(string) { calls++ })

	require.NoError(t, err)
	assert.Equal(t, "A longer streamed answer", final)
	assert.Equal(t, 1, calls)
}

func TestRun_EmptyBodyResolvesWithFallback(t *testing.T) {
	server := newFlowServer(t, "", nil)
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)

	var calls int
	final, err := client.Run(context.Background(), "s", "q", func(string) { calls++ })

	require.NoError(t, err)
	assert.Equal(t, "No response available.", final)
	assert.Zero(t, calls)
}

func TestRun_MonotonicCumulativeGrowth(t *testing.T) {
	body := `{"event":"token","data":{"chunk":"a"}}` + "\n" +
		`{"event":"token","data":{"chunk":"b"}}` + "\n" +
		`{"event":"token","data":{"chunk":"c"}}` + "\n"
	server := newFlowServer(t, body, nil)
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)

	prev := ""
	_, err := client.Run(context.Background(), "s", "q", func(cumulative string) {
		assert.Greater(t, len(cumulative), len(prev))
		assert.Equal(t, prev, cumulative[:len(prev)])
		prev = cumulative
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", prev)
}

// =============================================================================
// BUFFERED FALLBACK TESTS
// =============================================================================

func TestRun_BufferedModePacesChunks(t *testing.T) {
	body := `{"event":"token","data":{"chunk":"Hel"}}` + "\n" +
		`{"event":"token","data":{"chunk":"lo"}}` + "\n" +
		`{"event":"end","data":{"result":{}}}` + "\n"
	server := newFlowServer(t, body, nil)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BufferedMode = true

	client := NewClient(cfg, nil)

	var chunks []string
	final, err := client.Run(context.Background(), "s", "q", func(cumulative string) {
		chunks = append(chunks, cumulative)
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello", final)
	assert.Equal(t, []string{"Hel", "Hello"}, chunks)
}

func TestRun_BufferedModeCancelStopsPacing(t *testing.T) {
	var body string
	for i := 0; i < 50; i++ {
		body += `{"event":"token","data":{"chunk":"x"}}` + "\n"
	}
	server := newFlowServer(t, body, nil)
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.BufferedMode = true
	cfg.PacingInterval = 10 * time.Millisecond

	client := NewClient(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var calls int
	_, err := client.Run(ctx, "s", "q", func(string) {
		mu.Lock()
		calls++
		if calls == 2 {
			cancel()
		}
		mu.Unlock()
	})

	assert.True(t, IsAborted(err))
	mu.Lock()
	defer mu.Unlock()
	// Cancellation is checked before every paced callback: nothing fires
	// after the cancellation point.
	assert.Equal(t, 2, calls)
}

// =============================================================================
// ERROR TAXONOMY TESTS
// =============================================================================

func TestRun_HTTPErrorCarriesStatusAndDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":"flow not found"}`))
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), nil)
	_, err := client.Run(context.Background(), "s", "q", nil)

	require.Error(t, err)
	assert.True(t, IsHTTPError(err))

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusUnprocessableEntity, clientErr.Status)
	assert.Equal(t, "flow not found", clientErr.Message)
}

func TestRun_NetworkError(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1") // nothing listens here
	client := NewClient(cfg, nil)

	_, err := client.Run(context.Background(), "s", "q", nil)

	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.False(t, IsAborted(err))
}

func TestRun_CancelMidStreamIsAborted(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte(`{"event":"token","data":{"chunk":"partial"}}` + "\n"))
		flusher.Flush()
		<-release // hold the stream open until the client cancels
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(testConfig(server.URL), nil)

	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var chunks []string
	done := make(chan error, 1)
	go func() {
		_, err := client.Run(ctx, "s", "q", func(cumulative string) {
			mu.Lock()
			chunks = append(chunks, cumulative)
			mu.Unlock()
		})
		done <- err
	}()

	// Wait for the first chunk, then cancel.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(chunks) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.True(t, IsAborted(err))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"partial"}, chunks)
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(ErrAborted))
	assert.True(t, IsAborted(context.Canceled))
	assert.False(t, IsAborted(&ClientError{Type: ErrTypeNetwork, Message: "net"}))
	assert.False(t, IsAborted(nil))
}

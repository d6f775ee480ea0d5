// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/flowchat-tui/internal/conversation"
	"github.com/jeranaias/flowchat-tui/internal/flow"
)

func newTestWidget(t *testing.T, handler http.HandlerFunc, opts Options) *Widget {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := flow.DefaultConfig()
	cfg.HostURL = srv.URL
	cfg.FlowID = "flow-1"
	opts.Flow = cfg

	w, err := New(opts, nil)
	require.NoError(t, err)
	return w
}

func drainUntil(t *testing.T, w *Widget, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		select {
		case <-w.Updates():
		default:
		}
		return cond()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmit_StreamsAndSettles(t *testing.T) {
	var calls recorder
	w := newTestWidget(t, func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(rw, `{"event":"token","data":{"chunk":"Hel"}}`)
		fmt.Fprintln(rw, `{"event":"token","data":{"chunk":"Hello"}}`)
		fmt.Fprintln(rw, `{"event":"end","data":{"result":{}}}`)
	}, Options{Callbacks: Callbacks{OnMessage: calls.onMessage}})

	require.True(t, w.Submit("hi"))
	require.False(t, w.Submit("again"), "submit must be rejected while a run is in flight")

	drainUntil(t, w, func() bool {
		_, loading := w.Snapshot()
		return !loading
	})

	msgs, _ := w.Snapshot()
	require.Len(t, msgs, 2)
	require.Equal(t, conversation.RoleUser, msgs[0].Role)
	require.Equal(t, "hi", msgs[0].Text)
	require.Equal(t, conversation.RoleBot, msgs[1].Role)
	require.Equal(t, "Hello", msgs[1].Text)

	got := calls.all()
	require.Len(t, got, 2)
	require.Equal(t, "user:hi", got[0])
	require.Equal(t, "bot:Hello", got[1])
}

func TestSubmit_BlankRejected(t *testing.T) {
	w := newTestWidget(t, func(rw http.ResponseWriter, r *http.Request) {}, Options{})
	require.False(t, w.Submit("   "))
	msgs, loading := w.Snapshot()
	require.Empty(t, msgs)
	require.False(t, loading)
}

func TestStop_MidStreamIsSilent(t *testing.T) {
	release := make(chan struct{})
	var errCalls recorder
	w := newTestWidget(t, func(rw http.ResponseWriter, r *http.Request) {
		f, ok := rw.(http.Flusher)
		require.True(t, ok)
		fmt.Fprintln(rw, `{"event":"token","data":{"chunk":"par"}}`)
		f.Flush()
		<-release
	}, Options{Callbacks: Callbacks{OnError: func(info ErrorInfo) { errCalls.add(info.Code) }}})
	defer close(release)

	require.True(t, w.Submit("question"))
	drainUntil(t, w, func() bool {
		msgs, _ := w.Snapshot()
		return len(msgs) == 2 && msgs[1].Text == "par"
	})

	w.Stop()
	drainUntil(t, w, func() bool {
		_, loading := w.Snapshot()
		return !loading
	})

	msgs, _ := w.Snapshot()
	require.Len(t, msgs, 1, "the partial bot message must be discarded")
	require.Equal(t, conversation.RoleUser, msgs[0].Role)
	require.Empty(t, errCalls.all(), "aborting must not surface an error")

	require.True(t, w.Submit("next"), "a new submit must be accepted after stop")
}

func TestRunFailure_StaticErrorMessageAndCallback(t *testing.T) {
	var errCalls recorder
	w := newTestWidget(t, func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadGateway)
	}, Options{
		ErrorMessage: "whoops",
		Callbacks:    Callbacks{OnError: func(info ErrorInfo) { errCalls.add(info.Code) }},
	})

	require.True(t, w.Submit("hi"))
	drainUntil(t, w, func() bool {
		_, loading := w.Snapshot()
		return !loading
	})

	msgs, _ := w.Snapshot()
	require.Len(t, msgs, 2)
	require.Equal(t, conversation.RoleError, msgs[1].Role)
	require.Equal(t, "whoops", msgs[1].Text, "raw error detail must not reach the transcript")
	require.Equal(t, []string{"http_error"}, errCalls.all())
}

func TestClose_ResetsAndRotatesSession(t *testing.T) {
	var visibility recorder
	w := newTestWidget(t, func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(rw, `{"event":"end","data":{"result":{"outputs":[{"outputs":[{"results":{"message":"ok"}}]}]}}}`)
	}, Options{Callbacks: Callbacks{
		OnModalVisibilityChange: func(open bool) { visibility.add(fmt.Sprintf("%v", open)) },
	}})

	w.Open()
	require.True(t, w.IsOpen())

	require.True(t, w.Submit("hi"))
	drainUntil(t, w, func() bool {
		_, loading := w.Snapshot()
		return !loading
	})

	before := w.SessionID()
	w.Close()
	require.False(t, w.IsOpen())
	msgs, _ := w.Snapshot()
	require.Empty(t, msgs)
	require.NotEqual(t, before, w.SessionID())
	require.Equal(t, []string{"true", "false"}, visibility.all())
}

func TestStart_OnLoadFiresOnce(t *testing.T) {
	var loads recorder
	w := newTestWidget(t, func(rw http.ResponseWriter, r *http.Request) {}, Options{
		StartOpen: true,
		Callbacks: Callbacks{OnLoad: func() { loads.add("load") }},
	})

	w.Start()
	w.Start()
	require.Equal(t, []string{"load"}, loads.all())
	require.True(t, w.IsOpen())
}

// recorder collects callback invocations across goroutines.
type recorder struct {
	mu      sync.Mutex
	entries []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, s)
}

func (r *recorder) onMessage(role conversation.Role, text string, _ time.Time) {
	r.add(string(role) + ":" + text)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries...)
}

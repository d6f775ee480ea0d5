// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/flowchat-tui/internal/conversation"
	"github.com/jeranaias/flowchat-tui/internal/flow"
	"github.com/jeranaias/flowchat-tui/internal/session"
)

// ============================================================================
// Capabilities and callbacks
// ============================================================================

// Capabilities parameterizes renderers over the presentation features a
// surface supports. Variants share the same controller and differ only here.
type Capabilities struct {
	// SupportsMarkdown enables markdown rendering of bot messages.
	SupportsMarkdown bool

	// SupportsCitations enables citation extraction and bubble rendering.
	// When false, citation markers are left verbatim in the text.
	SupportsCitations bool

	// FontSize is the base font size hint for renderers that honor it.
	FontSize int
}

// ErrorInfo describes a failed run to external collaborators. The
// conversation log gets the static user-facing error string instead; raw
// failure detail never reaches the transcript.
type ErrorInfo struct {
	// Message is a human-readable description of the failure.
	Message string

	// Code classifies the failure ("http_error", "network_error", ...).
	Code string

	// Detail carries the response body for HTTP failures, if any.
	Detail string
}

// Callbacks are optional hooks fired by the widget. Nil fields are skipped.
// Callbacks fire on the run goroutine; collaborators must not block.
type Callbacks struct {
	// OnMessage fires once per settled message: user messages at submit
	// time, bot messages when a run settles successfully. Streaming
	// chunks do not fire it.
	OnMessage func(role conversation.Role, text string, createdAt time.Time)

	// OnError fires when a run fails. Aborted runs settle silently and
	// never fire it.
	OnError func(info ErrorInfo)

	// OnLoad fires exactly once, the first time the widget starts.
	OnLoad func()

	// OnModalVisibilityChange fires when the widget is opened or closed.
	OnModalVisibilityChange func(open bool)
}

// ============================================================================
// Options
// ============================================================================

// Options configures a Widget.
type Options struct {
	// Flow configures the flow-execution client. Required.
	Flow *flow.Config

	// SessionID overrides the generated session identifier.
	SessionID string

	// ErrorMessage is the static text appended to the conversation when a
	// run fails. Raw error detail goes to OnError and the debug log only.
	ErrorMessage string

	// StartOpen opens the widget immediately on Start.
	StartOpen bool

	Caps      Capabilities
	Callbacks Callbacks
}

const defaultErrorMessage = "Sorry, something went wrong. Please try again."

// ============================================================================
// Widget
// ============================================================================

// Widget coordinates a conversation log, a session, and flow runs. All
// methods are safe for concurrent use.
type Widget struct {
	client   *flow.Client
	log      *conversation.Log
	sessions *session.Manager

	caps      Capabilities
	callbacks Callbacks
	errMsg    string
	startOpen bool

	mu   sync.Mutex
	open bool

	loadOnce sync.Once

	// updates carries coalesced change notifications for renderers.
	updates chan struct{}

	logger *zap.SugaredLogger
}

// New creates a Widget from opts. logger may be nil.
func New(opts Options, logger *zap.SugaredLogger) (*Widget, error) {
	if opts.Flow == nil {
		return nil, errors.New("widget: flow config is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := flow.NewClient(opts.Flow, logger)
	errMsg := opts.ErrorMessage
	if errMsg == "" {
		errMsg = defaultErrorMessage
	}
	return &Widget{
		client:    client,
		log:       conversation.NewLog(),
		sessions:  session.NewManager(opts.SessionID),
		caps:      opts.Caps,
		callbacks: opts.Callbacks,
		errMsg:    errMsg,
		startOpen: opts.StartOpen,
		updates:   make(chan struct{}, 1),
		logger:    logger,
	}, nil
}

// Capabilities returns the presentation capability set.
func (w *Widget) Capabilities() Capabilities { return w.caps }

// SessionID returns the current flow session identifier.
func (w *Widget) SessionID() string { return w.sessions.ID() }

// Updates returns the renderer notification channel. Notifications are
// coalesced; after receiving one, pull state with Snapshot.
func (w *Widget) Updates() <-chan struct{} { return w.updates }

// Snapshot returns the current messages and whether a run is in flight.
func (w *Widget) Snapshot() ([]*conversation.Message, bool) {
	return w.log.Messages(), w.log.IsLoading()
}

// Start fires the one-time load hook and, if configured, opens the widget.
func (w *Widget) Start() {
	w.loadOnce.Do(func() {
		if w.callbacks.OnLoad != nil {
			w.callbacks.OnLoad()
		}
	})
	if w.startOpen {
		w.Open()
	}
}

// Open marks the widget visible. No-op when already open.
func (w *Widget) Open() {
	w.mu.Lock()
	if w.open {
		w.mu.Unlock()
		return
	}
	w.open = true
	w.mu.Unlock()

	if w.callbacks.OnModalVisibilityChange != nil {
		w.callbacks.OnModalVisibilityChange(true)
	}
	w.notify()
}

// IsOpen reports whether the widget is currently visible.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// Close hides the widget, aborts any in-flight run, clears the
// conversation, and rotates the session identifier so the next open starts
// a fresh flow session.
func (w *Widget) Close() {
	w.mu.Lock()
	wasOpen := w.open
	w.open = false
	w.mu.Unlock()

	w.sessions.Cancel()
	w.log.Reset()
	w.sessions.Regenerate()

	if wasOpen && w.callbacks.OnModalVisibilityChange != nil {
		w.callbacks.OnModalVisibilityChange(false)
	}
	w.notify()
}

// Submit sends input as a user message and starts a flow run. It returns
// false without side effects when the input is blank or a run is already in
// flight.
func (w *Widget) Submit(input string) bool {
	userMsg, ok := w.log.Submit(input)
	if !ok {
		return false
	}
	if w.callbacks.OnMessage != nil {
		w.callbacks.OnMessage(userMsg.Role, userMsg.Text, userMsg.CreatedAt)
	}
	w.notify()

	ctx, cancel := context.WithCancel(context.Background())
	gen := w.sessions.Begin(cancel)
	go w.run(ctx, gen, userMsg.Text)
	return true
}

// Stop aborts the in-flight run, if any. The pending bot message is
// discarded and no error surfaces.
func (w *Widget) Stop() {
	w.sessions.Cancel()
}

func (w *Widget) run(ctx context.Context, gen uint64, input string) {
	final, err := w.client.Run(ctx, w.sessions.ID(), input, func(cumulative string) {
		if !w.sessions.Current(gen) {
			return
		}
		w.log.ApplyChunk(cumulative)
		w.notify()
	})
	stale := !w.sessions.Current(gen)
	w.sessions.Finish()

	switch {
	case stale:
		// Stopped or closed while the response was in flight. The pending
		// message is gone (or the log was reset); settle without a trace.
		w.log.SettleAborted()
	case err == nil:
		msg := w.log.SettleSuccess(final)
		if msg != nil && w.callbacks.OnMessage != nil {
			w.callbacks.OnMessage(msg.Role, msg.Text, msg.CreatedAt)
		}
	case flow.IsAborted(err):
		w.log.SettleAborted()
	default:
		w.logger.Debugw("run failed", "error", err)
		w.log.SettleError(w.errMsg)
		if w.callbacks.OnError != nil {
			w.callbacks.OnError(errorInfo(err))
		}
	}
	w.notify()
}

func (w *Widget) notify() {
	select {
	case w.updates <- struct{}{}:
	default:
	}
}

func errorInfo(err error) ErrorInfo {
	var ce *flow.ClientError
	if errors.As(err, &ce) {
		info := ErrorInfo{Message: ce.Message, Detail: ce.Body}
		switch ce.Type {
		case flow.ErrTypeHTTP:
			info.Code = "http_error"
			info.Message = fmt.Sprintf("%s (status %d)", ce.Message, ce.Status)
		case flow.ErrTypeNetwork:
			info.Code = "network_error"
		case flow.ErrTypeInvalidResponse:
			info.Code = "invalid_response"
		default:
			info.Code = "unknown"
		}
		return info
	}
	return ErrorInfo{Message: err.Error(), Code: "unknown"}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation tracks the ordered message log and the lifecycle of
// the single in-flight bot response.
package conversation

import (
	"strings"
	"sync"
)

// =============================================================================
// STATE TYPE
// =============================================================================

// State is the conversation's run state.
type State int

const (
	StateIdle             State = iota // no run active
	StateAwaitingResponse              // run active; pending bot message may not exist yet
)

// String returns the string representation of the state.
func (s State) String() string {
	if s == StateAwaitingResponse {
		return "awaiting_response"
	}
	return "idle"
}

// =============================================================================
// CONVERSATION LOG
// =============================================================================

// Log owns the message list and the pending bot message reference.
//
// The mutex covers the boundary between the UI event loop and the streaming
// goroutine; all methods are safe for concurrent use.
type Log struct {
	mu           sync.Mutex
	state        State
	messages     []*Message
	pendingBotID string
}

// NewLog creates an empty conversation log in the idle state.
func NewLog() *Log {
	return &Log{}
}

// State returns the current run state.
func (l *Log) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// IsLoading reports whether a run is active. Renderers drive spinners and
// input gating off this boolean alone.
func (l *Log) IsLoading() bool {
	return l.State() == StateAwaitingResponse
}

// Messages returns a snapshot copy of the log. The returned messages are
// shared pointers; treat them as read-only.
func (l *Log) Messages() []*Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// MessageCount returns the number of messages in the log.
func (l *Log) MessageCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// HasPending reports whether an in-flight bot message exists.
func (l *Log) HasPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pendingBotID != ""
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Submit appends a user message and moves to AwaitingResponse.
//
// Returns (nil, false) without side effects when text is blank or a run is
// already active: a second submit is rejected, never queued.
func (l *Log) Submit(text string) (*Message, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return nil, false
	}

	msg := NewMessage(RoleUser, text)
	l.messages = append(l.messages, msg)
	l.state = StateAwaitingResponse
	return msg, true
}

// ApplyChunk applies a cumulative text update from the stream. The first
// chunk creates the pending bot message; later chunks overwrite its text in
// place. No-op when no run is active (stale callbacks after settlement are
// dropped here as a second line of defense).
func (l *Log) ApplyChunk(cumulative string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateAwaitingResponse {
		return
	}

	if pending := l.pendingLocked(); pending != nil {
		pending.Text = cumulative
		return
	}

	msg := NewMessage(RoleBot, cumulative)
	l.messages = append(l.messages, msg)
	l.pendingBotID = msg.ID
}

// SettleSuccess freezes the pending bot message with the reconciled final
// text and returns to idle. When the run produced no chunks at all (e.g.
// the fallback message path), the bot message is created here.
func (l *Log) SettleSuccess(finalText string) *Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := l.pendingLocked()
	if msg == nil {
		msg = NewMessage(RoleBot, finalText)
		l.messages = append(l.messages, msg)
	} else {
		msg.Text = finalText
	}

	l.pendingBotID = ""
	l.state = StateIdle
	return msg
}

// SettleAborted removes the pending bot message from the log entirely and
// returns to idle. The user never sees a truncated answer, and no error
// message is recorded.
func (l *Log) SettleAborted() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removePendingLocked()
	l.state = StateIdle
}

// SettleError removes the pending bot message if present, appends an
// error-role message with the configured user-facing text, and returns to
// idle. The technical error never reaches the log.
func (l *Log) SettleError(displayText string) *Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removePendingLocked()
	msg := NewMessage(RoleError, displayText)
	l.messages = append(l.messages, msg)
	l.state = StateIdle
	return msg
}

// Reset clears the log and pending state and returns to idle. Session id
// regeneration is the owner's responsibility.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = nil
	l.pendingBotID = ""
	l.state = StateIdle
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// pendingLocked returns the pending bot message, or nil.
func (l *Log) pendingLocked() *Message {
	if l.pendingBotID == "" {
		return nil
	}
	for _, msg := range l.messages {
		if msg.ID == l.pendingBotID {
			return msg
		}
	}
	return nil
}

// removePendingLocked drops the pending bot message from the log.
func (l *Log) removePendingLocked() {
	if l.pendingBotID == "" {
		return
	}
	for i, msg := range l.messages {
		if msg.ID == l.pendingBotID {
			l.messages = append(l.messages[:i], l.messages[i+1:]...)
			break
		}
	}
	l.pendingBotID = ""
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides session identity and run cancellation.
package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager tracks the session id and the cancel function of the in-flight
// run. All methods are safe for concurrent use.
type Manager struct {
	mu         sync.Mutex
	sessionID  string
	cancelFunc context.CancelFunc
	generation uint64
}

// NewManager creates a manager. When override is empty a fresh uuid session
// id is generated; otherwise the caller-supplied id is used as-is.
func NewManager(override string) *Manager {
	id := override
	if id == "" {
		id = uuid.NewString()
	}
	return &Manager{sessionID: id}
}

// ID returns the current session id.
func (m *Manager) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Regenerate issues a fresh session id. Called on conversation close.
func (m *Manager) Regenerate() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionID = uuid.NewString()
	return m.sessionID
}

// =============================================================================
// RUN CANCELLATION
// =============================================================================

// Begin stores the cancel function for a new run and returns the run's
// generation. Any previous run is cancelled first so at most one is alive.
func (m *Manager) Begin(cancel context.CancelFunc) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	m.cancelFunc = cancel
	m.generation++
	return m.generation
}

// Cancel aborts the in-flight run, if any, and reports whether a run was
// actually cancelled. Returns synchronously; the run's settlement follows
// asynchronously. Safe to call repeatedly.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancelFunc == nil {
		return false
	}
	m.cancelFunc()
	m.cancelFunc = nil
	return true
}

// Finish clears the cancel function after a run settles. The context is
// cancelled regardless, preventing leaks on every settle path.
func (m *Manager) Finish() {
	m.Cancel()
}

// Current reports whether generation identifies the live run. Chunk
// callbacks from a superseded or cancelled run carry a stale generation and
// must be dropped.
func (m *Manager) Current(generation uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return generation == m.generation && m.cancelFunc != nil
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewManager_GeneratesID(t *testing.T) {
	m := NewManager("")
	assert.NotEmpty(t, m.ID())

	other := NewManager("")
	assert.NotEqual(t, m.ID(), other.ID())
}

func TestNewManager_Override(t *testing.T) {
	m := NewManager("my-session")
	assert.Equal(t, "my-session", m.ID())
}

func TestRegenerate_ChangesID(t *testing.T) {
	m := NewManager("")
	before := m.ID()

	after := m.Regenerate()

	assert.NotEqual(t, before, after)
	assert.Equal(t, after, m.ID())
}

func TestBegin_CancelsPreviousRun(t *testing.T) {
	m := NewManager("")

	ctx1, cancel1 := context.WithCancel(context.Background())
	gen1 := m.Begin(cancel1)

	_, cancel2 := context.WithCancel(context.Background())
	gen2 := m.Begin(cancel2)

	assert.Error(t, ctx1.Err(), "starting a new run cancels the previous one")
	assert.Greater(t, gen2, gen1)
	assert.False(t, m.Current(gen1))
	assert.True(t, m.Current(gen2))
}

func TestCancel_AbortsAndInvalidatesGeneration(t *testing.T) {
	m := NewManager("")

	ctx, cancel := context.WithCancel(context.Background())
	gen := m.Begin(cancel)

	assert.True(t, m.Cancel())

	assert.Error(t, ctx.Err())
	assert.False(t, m.Current(gen), "callbacks from a cancelled run must be stale")

	// Safe to call again; nothing is left to cancel.
	assert.False(t, m.Cancel())
}

func TestCancel_ReportsFalseWithNoRun(t *testing.T) {
	m := NewManager("")
	assert.False(t, m.Cancel())
}

func TestFinish_ClearsRun(t *testing.T) {
	m := NewManager("")

	ctx, cancel := context.WithCancel(context.Background())
	gen := m.Begin(cancel)

	m.Finish()

	assert.Error(t, ctx.Err(), "finish always cancels to prevent context leaks")
	assert.False(t, m.Current(gen))
}

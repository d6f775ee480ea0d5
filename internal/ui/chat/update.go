// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshViewport(true)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			m.widget.Close()
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.Submit):
			if m.widget.Submit(m.input.Value()) {
				m.input.Reset()
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, m.keyMap.Cancel):
			m.widget.Stop()
			return m, nil

		case key.Matches(msg, m.keyMap.Clear):
			// Close and reopen: clears the transcript and rotates the
			// flow session so the server starts fresh too.
			m.widget.Close()
			m.widget.Open()
			m.refreshViewport(true)
			return m, nil

		case key.Matches(msg, m.keyMap.Up),
			key.Matches(msg, m.keyMap.Down),
			key.Matches(msg, m.keyMap.PageUp),
			key.Matches(msg, m.keyMap.PageDown):
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)

	case WidgetUpdateMsg:
		m.refreshViewport(true)
		m.syncPlaceholder()
		cmds = append(cmds, listenForUpdates(m.widget))

	case UpdatesClosedMsg:
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 3
	inputHeight := 3
	statusHeight := 1
	vpHeight := height - headerHeight - inputHeight - statusHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = width - 6
}

// refreshViewport re-renders the transcript. followTail keeps the view
// pinned to the newest message while a response streams in.
func (m *Model) refreshViewport(followTail bool) {
	if !m.ready {
		return
	}
	msgs, loading := m.widget.Snapshot()
	m.viewport.SetContent(m.renderTranscript(msgs, loading))
	if followTail {
		m.viewport.GotoBottom()
	}
}

func (m *Model) syncPlaceholder() {
	if _, loading := m.widget.Snapshot(); loading {
		m.input.Placeholder = m.opts.PlaceholderSending
	} else {
		m.input.Placeholder = m.opts.Placeholder
	}
}

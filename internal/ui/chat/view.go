// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the chat screen: header, transcript viewport, input area,
// and a status bar with shortcuts.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.theme.Header.Width(m.width - 2).Render(
		m.theme.HeaderTitle.Render(m.opts.Title),
	)

	inputView := m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		inputView,
		m.statusBar(),
	)
}

func (m Model) statusBar() string {
	var parts []string
	for _, b := range m.keyMap.ShortHelp() {
		parts = append(parts,
			m.theme.ShortcutKey.Render(b.Help().Key)+" "+
				m.theme.ShortcutDesc.Render(b.Help().Desc))
	}
	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strconv"
	"strings"

	"github.com/jeranaias/flowchat-tui/internal/citation"
	"github.com/jeranaias/flowchat-tui/internal/conversation"
)

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

func (m *Model) renderTranscript(msgs []*conversation.Message, loading bool) string {
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	if loading {
		b.WriteString("\n")
		b.WriteString(m.spinner.View())
		b.WriteString(m.theme.ThinkingText.Render(" thinking..."))
	}
	return b.String()
}

func (m *Model) renderMessage(msg *conversation.Message) string {
	ts := m.theme.Timestamp.Render(msg.CreatedAt.Format("15:04"))

	switch msg.Role {
	case conversation.RoleUser:
		return m.theme.UserBubble.Render(msg.Text) + " " + ts
	case conversation.RoleError:
		return m.theme.ErrorBubble.Render(msg.Text)
	default:
		return m.renderBotMessage(msg) + " " + ts
	}
}

// renderBotMessage renders the body (optionally as markdown) and, when
// citations are enabled, swaps placeholder tokens for numbered references
// and appends a source chip per citation. Placeholders never reach the
// screen raw.
func (m *Model) renderBotMessage(msg *conversation.Message) string {
	text := msg.Text
	var cites []citation.Citation

	if m.widget.Capabilities().SupportsCitations {
		parsed := citation.Extract(text)
		text = parsed.DisplayText
		cites = parsed.Citations
	}

	body := m.renderMarkdown(text)

	for _, c := range cites {
		ref := m.theme.CitationRef.Render("[" + strconv.Itoa(c.ID) + "]")
		body = strings.ReplaceAll(body, citation.Placeholder(c.ID), ref)
	}

	out := m.theme.BotBubble.Render(strings.TrimRight(body, "\n"))

	if len(cites) > 0 {
		var chips []string
		for _, c := range cites {
			chip := m.theme.CitationRef.Render("["+strconv.Itoa(c.ID)+"] ") +
				m.theme.CitationLabel.Render(c.DisplayLabel())
			chips = append(chips, m.theme.CitationChip.Render(chip))
		}
		out += "\n" + strings.Join(chips, "\n")
	}
	return out
}

// renderMarkdown renders text with glamour when available. Citation
// placeholder tokens are plain text and pass through untouched.
func (m *Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	rendered, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}

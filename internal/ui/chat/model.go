// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/flowchat-tui/internal/ui/styles"
	"github.com/jeranaias/flowchat-tui/internal/widget"
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Options configures the chat view.
type Options struct {
	// Title is shown in the header.
	Title string

	// Placeholder is the input hint while idle; PlaceholderSending replaces
	// it while a response is streaming.
	Placeholder        string
	PlaceholderSending string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// Controller
	widget *widget.Widget

	// Styling
	theme *styles.Theme

	// Markdown rendering (nil when markdown is disabled)
	renderer *glamour.TermRenderer

	// Dimensions
	width  int
	height int
	ready  bool

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Key bindings
	keyMap KeyMap

	opts Options
}

// New creates the chat view bound to w.
func New(w *widget.Widget, theme *styles.Theme, opts Options) Model {
	if opts.Title == "" {
		opts.Title = "Chat"
	}
	if opts.Placeholder == "" {
		opts.Placeholder = "Type your message..."
	}
	if opts.PlaceholderSending == "" {
		opts.PlaceholderSending = "Waiting for response..."
	}

	input := textinput.New()
	input.Placeholder = opts.Placeholder
	input.PlaceholderStyle = theme.InputPlaceholder
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		widget:  w,
		theme:   theme,
		input:   input,
		spinner: sp,
		keyMap:  DefaultKeyMap(),
		opts:    opts,
	}

	if w.Capabilities().SupportsMarkdown {
		// Renderer failure just disables markdown, never the chat.
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(defaultWrapWidth),
		); err == nil {
			m.renderer = r
		}
	}

	return m
}

const defaultWrapWidth = 80

// Init starts the spinner, input cursor, and widget observation.
func (m Model) Init() tea.Cmd {
	m.widget.Start()
	m.widget.Open()
	return tea.Batch(textinput.Blink, m.spinner.Tick, listenForUpdates(m.widget))
}

// listenForUpdates blocks on the widget update channel and converts each
// notification into a Bubble Tea message.
func listenForUpdates(w *widget.Widget) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-w.Updates(); !ok {
			return UpdatesClosedMsg{}
		}
		return WidgetUpdateMsg{}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - Single query command handler for the flowchat CLI.
//
// Handles the "flowchat ask" command which sends one question to the flow
// and prints the response.
//
// Examples:
//   flowchat ask "What is the capital of France?"
//   flowchat --plain ask "List the steps" > steps.md
//   flowchat --session support-42 ask "And the follow-up?"

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/flowchat-tui/internal/citation"
	"github.com/jeranaias/flowchat-tui/internal/config"
	"github.com/jeranaias/flowchat-tui/internal/flow"
	"github.com/jeranaias/flowchat-tui/internal/session"
	"github.com/jeranaias/flowchat-tui/internal/ui/styles"
	"go.uber.org/zap"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// markdownRenderer is the shared glamour renderer for markdown output.
var markdownRenderer *glamour.TermRenderer

func init() {
	var err error
	markdownRenderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(defaultTermWidth),
	)
	if err != nil {
		// Fall back to plain text if renderer initialization fails
		markdownRenderer = nil
	}
}

// renderMarkdown renders markdown content for terminal display. Returns
// the original content if rendering fails or the renderer is unavailable.
func renderMarkdown(content string) string {
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// STYLES
// =============================================================================

var (
	citeRefStyle = lipgloss.NewStyle().
			Foreground(styles.Teal).
			Bold(true)

	citeLabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	dimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)
)

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAskCommand runs one flow query and prints the response.
func HandleAskCommand(cfg *config.Config, args Args, logger *zap.SugaredLogger) error {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return errors.New("usage: flowchat ask \"question\"")
	}

	client := flow.NewClient(cfg.FlowClientConfig(), logger)
	sessions := session.NewManager(cfg.Session.SessionID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First Ctrl+C cancels the run
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		cancel()
	}()

	streaming := !IsStdoutTTY() || args.Plain || !cfg.UI.EnableMarkdown

	var printed int
	onChunk := func(cumulative string) {
		if !streaming {
			return
		}
		if len(cumulative) > printed {
			fmt.Print(cumulative[printed:])
			printed = len(cumulative)
		}
	}

	if !streaming && !args.Quiet {
		fmt.Fprintln(os.Stderr, dimStyle.Render("Waiting for response..."))
	}

	final, err := client.Run(ctx, sessions.ID(), query, onChunk)
	if err != nil {
		if flow.IsAborted(err) {
			if streaming {
				fmt.Println()
			}
			return nil
		}
		return fmt.Errorf("%s %w", errorStyle.Render("[Error]"), err)
	}

	if streaming {
		// The final text can extend past the streamed accumulation when
		// the end event carried a longer reconciled message.
		if len(final) > printed {
			fmt.Print(final[printed:])
		}
		fmt.Println()
		return nil
	}

	printRendered(cfg, final)
	return nil
}

// printRendered prints the response with markdown rendering and a sources
// section built from extracted citations.
func printRendered(cfg *config.Config, text string) {
	var cites []citation.Citation
	if cfg.UI.EnableCitations {
		parsed := citation.Extract(text)
		text = parsed.DisplayText
		cites = parsed.Citations
	}

	out := renderMarkdown(text)
	for _, c := range cites {
		ref := citeRefStyle.Render(fmt.Sprintf("[%d]", c.ID))
		out = strings.ReplaceAll(out, citation.Placeholder(c.ID), ref)
	}
	fmt.Print(out)

	if len(cites) > 0 {
		fmt.Println(dimStyle.Render("Sources:"))
		for _, c := range cites {
			fmt.Printf("  %s %s\n",
				citeRefStyle.Render(fmt.Sprintf("[%d]", c.ID)),
				citeLabelStyle.Render(c.DisplayLabel()))
		}
	}
}

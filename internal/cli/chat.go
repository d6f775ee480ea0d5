// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL for the flowchat CLI.
//
// Handles the "flowchat chat" command: a readline-style loop for plain
// terminals where the full TUI is unwanted (ssh sessions, minimal
// environments). Slash commands:
//
//   /new      Start a fresh conversation (rotates the flow session)
//   /session  Show the current session id
//   /help     Show commands
//   /quit     Exit (also: exit, quit, Ctrl+D)

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/flowchat-tui/internal/config"
	"github.com/jeranaias/flowchat-tui/internal/conversation"
	"github.com/jeranaias/flowchat-tui/internal/flow"
	"github.com/jeranaias/flowchat-tui/internal/history"
	"github.com/jeranaias/flowchat-tui/internal/session"
	"github.com/jeranaias/flowchat-tui/internal/ui/styles"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with history navigation.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// SESSION STATE
// =============================================================================

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Indigo).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)
)

// chatSession holds the state for an interactive chat session. Run
// cancellation goes through the session manager, which is safe to hit from
// the signal goroutine while the REPL goroutine starts and settles runs.
type chatSession struct {
	cfg      *config.Config
	client   *flow.Client
	sessions *session.Manager
	log      *conversation.Log
	store    *history.Store // nil when history is disabled
	input    *ChatCLI
	quiet    bool
}

// HandleChatCommand runs the interactive chat REPL.
func HandleChatCommand(cfg *config.Config, args Args, logger *zap.SugaredLogger) error {
	client := flow.NewClient(cfg.FlowClientConfig(), logger)

	sess := &chatSession{
		cfg:      cfg,
		client:   client,
		sessions: session.NewManager(cfg.Session.SessionID),
		log:      conversation.NewLog(),
		input:    NewChatCLI(),
		quiet:    args.Quiet,
	}
	defer sess.input.Close()

	if cfg.History.Enabled {
		if path, err := cfg.HistoryDBPath(); err == nil {
			if store, err := history.Open(path); err == nil {
				sess.store = store
				defer store.Close()
			}
		}
	}

	// First Ctrl+C cancels the in-flight run, not the REPL
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			if sess.sessions.Cancel() {
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	if !args.Quiet {
		printWelcome(cfg)
	}

	for {
		input, err := sess.input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			// liner.ErrPromptAborted on Ctrl+C, io.EOF on Ctrl+D
			fmt.Println()
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := sess.handleSlashCommand(input); quit {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}

		if err := sess.processMessage(input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

func (s *chatSession) processMessage(input string) error {
	if _, ok := s.log.Submit(input); !ok {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.sessions.Begin(cancel)
	defer s.sessions.Finish()

	var printed int
	final, err := s.client.Run(ctx, s.sessions.ID(), input, func(cumulative string) {
		s.log.ApplyChunk(cumulative)
		if len(cumulative) > printed {
			fmt.Print(cumulative[printed:])
			printed = len(cumulative)
		}
	})

	switch {
	case err == nil:
		s.log.SettleSuccess(final)
		if len(final) > printed {
			fmt.Print(final[printed:])
		}
		fmt.Println()
		s.persist()
	case flow.IsAborted(err):
		s.log.SettleAborted()
		fmt.Println()
	default:
		s.log.SettleError(s.cfg.UI.ErrorMessage)
		s.persist()
		return err
	}
	return nil
}

func (s *chatSession) persist() {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.sessions.ID(), s.log.Messages()); err != nil {
		fmt.Fprintf(os.Stderr, "%s history save failed: %v\n",
			warningStyle.Render("[Warning]"), err)
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand executes a slash command. Returns true to exit.
func (s *chatSession) handleSlashCommand(cmd string) bool {
	switch strings.ToLower(strings.Fields(cmd)[0]) {
	case "/quit", "/exit", "/q":
		return true

	case "/new":
		s.log.Reset()
		s.sessions.Regenerate()
		fmt.Println(dimStyle.Render("Started a new conversation (session " + s.sessions.ID() + ")"))

	case "/session":
		fmt.Println(dimStyle.Render("session: " + s.sessions.ID()))

	case "/help":
		fmt.Println(dimStyle.Render("Commands: /new  /session  /help  /quit"))

	default:
		fmt.Println(warningStyle.Render("Unknown command: " + cmd))
	}
	return false
}

func printWelcome(cfg *config.Config) {
	fmt.Println(promptStyle.Render(cfg.UI.WindowTitle))
	fmt.Println(dimStyle.Render("Type a message, /help for commands, Ctrl+D to exit."))
	fmt.Println()
}

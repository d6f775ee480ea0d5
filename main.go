// flowchat - a terminal chat client for flow-execution APIs.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/flowchat-tui/internal/cli"
	"github.com/jeranaias/flowchat-tui/internal/config"
	"github.com/jeranaias/flowchat-tui/internal/conversation"
	"github.com/jeranaias/flowchat-tui/internal/debuglog"
	"github.com/jeranaias/flowchat-tui/internal/history"
	"github.com/jeranaias/flowchat-tui/internal/ui/chat"
	"github.com/jeranaias/flowchat-tui/internal/ui/styles"
	"github.com/jeranaias/flowchat-tui/internal/widget"
)

// Version information (set at build time)
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	// Commands that need no configuration
	switch cmd {
	case cli.CmdVersion:
		cli.PrintVersion()
		return
	case cli.CmdHelp:
		cli.PrintUsage()
		return
	}

	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if cmd != cli.CmdConfig {
			fmt.Fprintln(os.Stderr, "Run \"flowchat config init\" to create a starter config.")
			os.Exit(1)
		}
		cfg = config.Default()
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	switch cmd {
	case cli.CmdTUI:
		runTUI(cfg, logger)
	case cli.CmdAsk:
		if err := cli.HandleAskCommand(cfg, args, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdChat:
		if err := cli.HandleChatCommand(cfg, args, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdHistory:
		if err := cli.HandleHistoryCommand(cfg, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case cli.CmdConfig:
		if err := cli.HandleConfigCommand(cfg, args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadConfig loads the configuration and layers CLI flag overrides on top.
func loadConfig(args cli.Args) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if args.HostURL != "" {
		cfg.Flow.HostURL = args.HostURL
	}
	if args.FlowID != "" {
		cfg.Flow.FlowID = args.FlowID
	}
	if args.SessionID != "" {
		cfg.Session.SessionID = args.SessionID
	}
	if args.Buffered {
		cfg.Flow.BufferedMode = true
	}
	if args.Debug {
		cfg.Debug.Enabled = true
	}
	if args.Plain {
		cfg.UI.EnableMarkdown = false
	}

	// Flag overrides can invalidate a previously valid config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.SugaredLogger {
	path, err := cfg.DebugLogPath()
	if err != nil {
		return debuglog.Nop()
	}
	return debuglog.New(cfg.Debug.Enabled, path)
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(cfg *config.Config, logger *zap.SugaredLogger) {
	opts := cfg.WidgetOptions()

	// Persist the transcript after every settled message
	var store *history.Store
	if cfg.History.Enabled {
		if path, err := cfg.HistoryDBPath(); err == nil {
			if s, err := history.Open(path); err == nil {
				store = s
				defer store.Close()
			} else {
				logger.Debugw("history disabled", "error", err)
			}
		}
	}

	var w *widget.Widget
	persist := func() {
		if store == nil || w == nil {
			return
		}
		msgs, _ := w.Snapshot()
		if len(msgs) == 0 {
			return
		}
		if err := store.Save(w.SessionID(), msgs); err != nil {
			logger.Debugw("history save failed", "error", err)
		}
	}
	opts.Callbacks = widget.Callbacks{
		OnMessage: func(conversation.Role, string, time.Time) { persist() },
		OnError:   func(widget.ErrorInfo) { persist() },
	}

	w, err := widget.New(opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Note config edits while running; applied on next start.
	if path, err := config.ConfigPath(); err == nil {
		if watcher, err := config.NewWatcher(path, func(next *config.Config) {
			logger.Debugw("config file changed, restart to apply",
				"flow_id", next.Flow.FlowID)
		}); err == nil {
			if watcher.Watch() == nil {
				defer watcher.Close()
			}
		}
	}

	theme := styles.NewTheme(cfg.UI.Theme)
	model := chat.New(w, theme, chat.Options{
		Title:              cfg.UI.WindowTitle,
		Placeholder:        cfg.UI.Placeholder,
		PlaceholderSending: cfg.UI.PlaceholderSending,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running flowchat: %v\n", err)
		os.Exit(1)
	}
	persist()
}

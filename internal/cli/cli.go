// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information, set at build time via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string // --config PATH
	HostURL    string // --host URL
	FlowID     string // --flow ID
	SessionID  string // --session ID
	Buffered   bool   // --buffered
	Debug      bool   // --debug
	Quiet      bool   // -q, --quiet
	Plain      bool   // --plain (no markdown rendering)

	// Command-specific
	Query      string
	Subcommand string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `flowchat - terminal chat client for flow-execution APIs

Flowchat streams responses from a hosted flow (LangFlow-style run API)
into your terminal, with markdown rendering, inline source citations,
and local conversation history.

Usage:
  flowchat                    Start the chat TUI (default)
  flowchat ask "question"     Ask a single question, stream to stdout
  flowchat chat               Interactive chat REPL (plain terminal)
  flowchat history [list|show|delete] Manage saved conversations
  flowchat config [show|path|init]    Configuration
  flowchat version            Show version
  flowchat help               Show this help

Global flags:
  --config PATH     Use an alternate config file
  --host URL        Override the flow server URL
  --flow ID         Override the flow id
  --session ID      Use a fixed flow session id
  --buffered        Force the non-streaming transport path
  --debug           Write a debug log (~/.flowchat/debug.log)
  --plain           Disable markdown rendering
  -q, --quiet       Minimal output

Examples:
  flowchat ask "What is the capital of France?"
  flowchat --flow 7f2b ask "Summarize the onboarding doc"
  flowchat history list
  flowchat history show <session-id>
  flowchat config init

Environment:
  FLOWCHAT_HOST_URL, FLOWCHAT_FLOW_ID, FLOWCHAT_API_KEY override the
  config file. See ~/.flowchat/config.toml for the full surface.

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("flowchat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse parses command-line arguments and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses the given arguments. Split out from Parse for testing.
func ParseArgs(argv []string) (Command, Args) {
	remaining, args := parseGlobalFlags(argv)

	// No command defaults to the TUI
	if len(remaining) == 0 {
		return CmdTUI, args
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	args.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, args

	case "ask":
		args.Query = strings.Join(remaining, " ")
		return CmdAsk, args

	case "chat":
		return CmdChat, args

	case "history", "conversations":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
			args.Raw = remaining[1:]
		}
		return CmdHistory, args

	case "config":
		if len(remaining) > 0 {
			args.Subcommand = strings.ToLower(remaining[0])
			args.Raw = remaining[1:]
		}
		return CmdConfig, args

	case "version", "-v", "--version":
		return CmdVersion, args

	case "help", "-h", "--help":
		return CmdHelp, args

	default:
		// Unknown command: treat as an ask query for convenience
		args.Query = strings.Join(append([]string{cmd}, remaining...), " ")
		return CmdAsk, args
	}
}

// parseGlobalFlags extracts global flags, returning the remaining args.
func parseGlobalFlags(argv []string) ([]string, Args) {
	var args Args
	var remaining []string

	i := 0
	for i < len(argv) {
		arg := argv[i]
		switch arg {
		case "--config":
			if i+1 < len(argv) {
				args.ConfigPath = argv[i+1]
				i++
			}
		case "--host":
			if i+1 < len(argv) {
				args.HostURL = argv[i+1]
				i++
			}
		case "--flow":
			if i+1 < len(argv) {
				args.FlowID = argv[i+1]
				i++
			}
		case "--session":
			if i+1 < len(argv) {
				args.SessionID = argv[i+1]
				i++
			}
		case "--buffered":
			args.Buffered = true
		case "--debug":
			args.Debug = true
		case "--plain":
			args.Plain = true
		case "-q", "--quiet":
			args.Quiet = true
		default:
			remaining = append(remaining, arg)
		}
		i++
	}

	return remaining, args
}

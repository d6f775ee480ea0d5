// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the flowchat command line interface: argument
// parsing, the one-shot ask command, the plain interactive chat REPL, and
// history and config management commands. The TUI itself lives in
// internal/ui/chat; this package only dispatches to it.
package cli

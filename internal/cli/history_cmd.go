// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Saved conversation management for the flowchat CLI.
//
// Subcommands:
//   list            List saved conversations (default)
//   show <id>       Print a conversation transcript
//   delete <id>     Delete a conversation

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/flowchat-tui/internal/config"
	"github.com/jeranaias/flowchat-tui/internal/conversation"
	"github.com/jeranaias/flowchat-tui/internal/history"
	"github.com/jeranaias/flowchat-tui/internal/util"
)

// HandleHistoryCommand dispatches the history subcommands.
func HandleHistoryCommand(cfg *config.Config, args Args) error {
	path, err := cfg.HistoryDBPath()
	if err != nil {
		return err
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	switch args.Subcommand {
	case "", "list":
		return historyList(store)
	case "show":
		if len(args.Raw) == 0 {
			return errors.New("usage: flowchat history show <session-id>")
		}
		return historyShow(store, args.Raw[0])
	case "delete", "rm":
		if len(args.Raw) == 0 {
			return errors.New("usage: flowchat history delete <session-id>")
		}
		return historyDelete(store, args.Raw[0])
	default:
		return fmt.Errorf("unknown history subcommand %q (want list, show, or delete)", args.Subcommand)
	}
}

func historyList(store *history.Store) error {
	metas, err := store.List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println(dimStyle.Render("No saved conversations."))
		return nil
	}

	// Fixed-width columns so titles line up even with wide (CJK) session IDs.
	titleWidth := TerminalWidth() - 48
	if titleWidth < 20 {
		titleWidth = 20
	}
	for _, m := range metas {
		fmt.Printf("%s  %s  %s (%d messages)\n",
			m.UpdatedAt.Format("2006-01-02 15:04"),
			promptStyle.Render(util.PadRight(util.TruncateWidth(m.ID, 20), 20)),
			util.TruncateWidth(m.Title, titleWidth),
			m.MessageCount)
	}
	return nil
}

func historyShow(store *history.Store, id string) error {
	msgs, err := store.Load(id)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		label := msg.Role.DisplayName()
		switch msg.Role {
		case conversation.RoleUser:
			label = promptStyle.Render(label)
		case conversation.RoleError:
			label = errorStyle.Render(label)
		default:
			label = citeLabelStyle.Render(label)
		}
		fmt.Printf("%s %s\n%s\n\n",
			label,
			dimStyle.Render(msg.CreatedAt.Format("2006-01-02 15:04")),
			msg.Text)
	}
	return nil
}

func historyDelete(store *history.Store, id string) error {
	if err := store.Delete(id); err != nil {
		return err
	}
	fmt.Println(dimStyle.Render("Deleted conversation " + id))
	return nil
}

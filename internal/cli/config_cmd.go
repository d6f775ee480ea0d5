// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Configuration management for the flowchat CLI.
//
// Subcommands:
//   show     Print the effective configuration (default; API key redacted)
//   path     Print the config file path
//   init     Write a starter config file

package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/flowchat-tui/internal/config"
)

// HandleConfigCommand dispatches the config subcommands.
func HandleConfigCommand(cfg *config.Config, args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(cfg)
	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	case "init":
		return configInit()
	default:
		return fmt.Errorf("unknown config subcommand %q (want show, path, or init)", args.Subcommand)
	}
}

func configShow(cfg *config.Config) error {
	redacted := *cfg
	if redacted.Flow.APIKey != "" {
		redacted.Flow.APIKey = "***"
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(redacted); err != nil {
		return err
	}
	fmt.Print(buf.String())
	return nil
}

func configInit() error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := config.Save(config.Default()); err != nil {
		return err
	}
	fmt.Println(dimStyle.Render("Wrote starter config to " + path))
	fmt.Println(dimStyle.Render("Set flow.host_url and flow.flow_id before first use."))
	return nil
}

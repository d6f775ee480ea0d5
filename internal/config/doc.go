// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for flowchat.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - path given on the command line (--config)
//   - ~/.flowchat/config.toml
//   - Built-in defaults
package config

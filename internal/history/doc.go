// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history provides local transcript persistence for flowchat.
//
// Conversations are stored in a SQLite database (pure Go driver, no cgo)
// keyed by flow session id. The store is written to after each settled
// message, so a crash loses at most the in-flight response.
package history

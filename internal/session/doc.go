// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides session identity and run cancellation.
//
// A session id is stable for the lifetime of one open conversation and is
// sent with every flow request; closing the conversation regenerates it.
// The manager also holds the cancel function of the in-flight run behind a
// mutex, because cancellation is triggered from the UI loop while the run
// lives in a goroutine, and tracks a generation counter so callbacks from a
// cancelled run can be told apart from the live one.
package session

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package widget is the controller core of the chat widget.
//
// One Widget owns one conversation log, one session, and at most one
// in-flight flow run. Rendering is injected: renderers observe coalesced
// update notifications and pull immutable snapshots, parameterized by a
// capability set (markdown, citations, font size) instead of being
// re-implemented per presentation variant. External collaborators receive
// message, error, load, and visibility callbacks.
package widget

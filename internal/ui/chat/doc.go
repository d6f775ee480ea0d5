// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view for flowchat.
//
// The view is a thin renderer over the widget controller: it observes the
// widget's update channel, pulls snapshots, and draws them. All chat
// semantics (submission gating, streaming, cancellation, settlement) live
// in the controller; the key handlers only forward intent.
package chat

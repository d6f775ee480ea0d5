// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view for flowchat.
//
// This file defines the Bubble Tea message types used by the chat view.
package chat

// WidgetUpdateMsg signals that the widget state changed; the view pulls a
// fresh snapshot on receipt.
type WidgetUpdateMsg struct{}

// UpdatesClosedMsg signals that the widget update channel closed.
type UpdatesClosedMsg struct{}

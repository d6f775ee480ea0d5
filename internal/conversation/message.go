// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation tracks the ordered message log and the lifecycle of
// the single in-flight bot response.
package conversation

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
	RoleSystem Role = "system"
	RoleError  Role = "error"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleBot:
		return "Bot"
	case RoleSystem:
		return "System"
	case RoleError:
		return "Error"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in the conversation log.
//
// Text is mutable only while the message is the pending bot message; the
// log enforces that invariant.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message with a role-prefixed, timestamp-ordered ID.
func NewMessage(role Role, text string) *Message {
	now := time.Now()
	return &Message{
		ID:        generateID(role, now),
		Role:      role,
		Text:      text,
		CreatedAt: now,
	}
}

// Preview returns a truncated single-line preview of the message text.
func (m *Message) Preview(maxRunes int) string {
	text := strings.ReplaceAll(m.Text, "\n", " ")
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// generateID builds ids like "user_1712131415123_1a2b3c4d": monotonic-ish by
// timestamp, unique via a uuid fragment.
func generateID(role Role, ts time.Time) string {
	suffix := uuid.NewString()[:8]
	return string(role) + "_" + strconv.FormatInt(ts.UnixMilli(), 10) + "_" + suffix
}

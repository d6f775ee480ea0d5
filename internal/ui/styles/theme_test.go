// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewTheme_PinsBackground(t *testing.T) {
	dark := NewTheme("dark")
	if !dark.IsDark {
		t.Error("dark preference should pin a dark background")
	}

	light := NewTheme("light")
	if light.IsDark {
		t.Error("light preference should pin a light background")
	}
}

func TestNewTheme_StylesInitialized(t *testing.T) {
	theme := NewTheme("dark")

	// A zero style renders its input unchanged; configured styles must not
	// be zero values.
	if theme.UserBubble.GetPaddingLeft() == 0 {
		t.Error("UserBubble should have padding")
	}
	if theme.BotBubble.GetPaddingLeft() == 0 {
		t.Error("BotBubble should have padding")
	}
	if !theme.HeaderTitle.GetBold() {
		t.Error("HeaderTitle should be bold")
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/cospa-vn/cospa-tui/internal/ui/styles"
)

// RenderOverlay renders a titled box centered in the given terminal area.
func RenderOverlay(theme *styles.Theme, title, body string, width, height int) string {
	content := theme.OverlayTitle.Render(title) + "\n\n" + body
	box := theme.OverlayBox.Render(content)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// RenderList renders a simple selectable list for overlay bodies.
func RenderList(theme *styles.Theme, items []string, selected int) string {
	out := ""
	for i, item := range items {
		style := theme.ListItem
		if i == selected {
			style = theme.ListItemSelected
		}
		out += style.Render(item)
		if i < len(items)-1 {
			out += "\n"
		}
	}
	return out
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Submit        key.Binding
	Quit          key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding
	Conversations key.Binding
	NewConv       key.Binding
	Cities        key.Binding
	ToggleResults key.Binding
	NarrowSplit   key.Binding
	WidenSplit    key.Binding
	NextResult    key.Binding
	PrevResult    key.Binding
	SaveResult    key.Binding
	Help          key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat interface.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "gửi tin nhắn"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "thoát"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp", "cuộn lên"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn", "cuộn xuống"),
		),
		Conversations: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "danh sách hội thoại"),
		),
		NewConv: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "hội thoại mới"),
		),
		Cities: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "chọn thành phố"),
		),
		ToggleResults: key.NewBinding(
			key.WithKeys("ctrl+b"),
			key.WithHelp("C-b", "ẩn/hiện kết quả"),
		),
		NarrowSplit: key.NewBinding(
			key.WithKeys("ctrl+left"),
			key.WithHelp("C-←", "thu hẹp kết quả"),
		),
		WidenSplit: key.NewBinding(
			key.WithKeys("ctrl+right"),
			key.WithHelp("C-→", "mở rộng kết quả"),
		),
		NextResult: key.NewBinding(
			key.WithKeys("ctrl+j"),
			key.WithHelp("C-j", "kết quả tiếp"),
		),
		PrevResult: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("C-k", "kết quả trước"),
		),
		SaveResult: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "lưu địa điểm"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("C-g", "trợ giúp"),
		),
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the main Bubble Tea model for the cospa TUI: a chat
// pane talking to the assistant, a results pane listing location cards, and
// the overlays for conversation management, limit recovery, and city picking.
//
// All network work runs inside tea.Cmd closures so the update loop never
// blocks; results come back as typed messages.
package chat

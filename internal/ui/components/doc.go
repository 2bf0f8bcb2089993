// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable UI components for the cospa TUI:
// location result cards, the status bar, and centered overlay boxes.
package components

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the cospa-tui application.
//
// It contains:
//   - Atomic file writing (write-temp, fsync, rename) used by the prefs store
//     and config save path
//   - Rune- and width-aware string truncation, which matters for Vietnamese
//     text and mixed-width glyphs in the TUI
//   - Numeric conversion helpers
package util

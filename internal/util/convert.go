// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strconv"

// IntToString converts an int to string.
func IntToString(i int) string {
	return strconv.Itoa(i)
}

// ParseIntDefault parses s as an int, returning def when s is empty or invalid.
// Used for reading persisted counters where absence means zero.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// FloatToString converts a float64 to string with the given decimal precision.
func FloatToString(f float64, prec int) string {
	return strconv.FormatFloat(f, 'f', prec, 64)
}

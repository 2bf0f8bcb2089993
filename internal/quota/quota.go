// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package quota enforces the anonymous daily request limit.
//
// Anonymous sessions get DailyLimit assistant queries per calendar day,
// tracked entirely client-side in the prefs store. Authenticated sessions
// bypass the limiter completely: checks always allow and usage is never
// recorded. No network calls are made here.
package quota

import (
	"time"

	"github.com/cospa-vn/cospa-tui/internal/prefs"
	"github.com/cospa-vn/cospa-tui/internal/util"
)

// DailyLimit is the number of free assistant queries per anonymous day.
const DailyLimit = 3

// dateFormat is the day-granularity stamp stored alongside the counter.
const dateFormat = "2006-01-02"

// Limiter tracks anonymous daily usage in durable client storage.
type Limiter struct {
	store prefs.Store
	now   func() time.Time
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store prefs.Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// WithClock replaces the clock, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Check reports whether a request is allowed. Authenticated callers are
// always allowed. For anonymous callers a new day resets the counter to zero
// before comparing against the cap.
func (l *Limiter) Check(authenticated bool) bool {
	if authenticated {
		return true
	}

	today := l.now().Format(dateFormat)
	if l.store.Get(prefs.KeyRequestDate) != today {
		// New day: reset and allow.
		l.store.Set(prefs.KeyRequestDate, today)
		l.store.Set(prefs.KeyRequestCount, "0")
		return true
	}

	count := util.ParseIntDefault(l.store.Get(prefs.KeyRequestCount), 0)
	return count < DailyLimit
}

// Record counts one request against the anonymous quota. No-op for
// authenticated callers.
func (l *Limiter) Record(authenticated bool) {
	if authenticated {
		return
	}
	count := util.ParseIntDefault(l.store.Get(prefs.KeyRequestCount), 0)
	l.store.Set(prefs.KeyRequestCount, util.IntToString(count+1))
}

// LimitReached reports whether the anonymous quota is exhausted for today.
// Yesterday's exhausted counter does not count against a new day.
func (l *Limiter) LimitReached() bool {
	if l.store.Get(prefs.KeyRequestDate) != l.now().Format(dateFormat) {
		return false
	}
	return util.ParseIntDefault(l.store.Get(prefs.KeyRequestCount), 0) >= DailyLimit
}

// Remaining returns how many anonymous requests are left today. Shown in the
// status bar.
func (l *Limiter) Remaining() int {
	if l.store.Get(prefs.KeyRequestDate) != l.now().Format(dateFormat) {
		return DailyLimit
	}
	left := DailyLimit - util.ParseIntDefault(l.store.Get(prefs.KeyRequestCount), 0)
	if left < 0 {
		return 0
	}
	return left
}

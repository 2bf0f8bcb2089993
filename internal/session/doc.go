// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the chat session state: messages, the active
// conversation, location results, and the map center. The Controller
// coordinates the API client, the preference store, the daily quota,
// and the local history mirror, and is safe for concurrent use.
package session

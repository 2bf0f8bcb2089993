// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages and
// location results.
//
// # Key Types
//
//   - Message: single chat message with role, content, timestamp and the
//     location results it produced
//   - Conversation: server-side conversation metadata (id, title, counts)
//   - LocationResult: a cafe/coworking space returned by the assistant
//   - Coordinates: a lat/lng pair used as the map center and search hint
//
// Messages are append-only: once created they are never mutated, and the
// in-memory list is replaced wholesale when a conversation is loaded.
package model

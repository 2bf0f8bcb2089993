// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// DefaultConversationTitle is the title assigned by the backend when a
// conversation is created without one.
const DefaultConversationTitle = "Cuộc hội thoại"

// Conversation is server-side conversation metadata. The server enforces both
// the per-user conversation cap and the per-conversation message cap; the
// client only observes those limits as tagged errors.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// GetTitle returns the conversation title or the default.
func (c Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return DefaultConversationTitle
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message. The backend speaks a strict
// two-party scheme, so only user and assistant exist.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "Bạn"
	case RoleAssistant:
		return "CoSpa"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// WelcomeID is the reserved identifier of the fixed greeting that opens every
// fresh conversation.
const WelcomeID = "welcome"

// WelcomeText is the assistant greeting shown for an empty conversation.
const WelcomeText = "Xin chào! Mình là CoSpa, trợ lý giúp bạn tìm kiếm không gian làm việc " +
	"và quán cafe tốt nhất tại Việt Nam. Bạn đang tìm một chỗ yên tĩnh ở Hà Nội, " +
	"hay một quán cafe sôi động ở Sài Gòn?"

// Message represents a single message in a conversation.
//
// Identifiers are unique within a conversation. Assistant messages optionally
// carry the location results that produced them; those results are never
// detached or mutated afterwards.
type Message struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Locations []LocationResult `json:"relatedLocations,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates a new assistant message with attached results.
func NewAssistantMessage(content string, locations []LocationResult) Message {
	msg := NewMessage(RoleAssistant, content)
	if len(locations) > 0 {
		msg.Locations = locations
	}
	return msg
}

// WelcomeMessage returns the fixed greeting with the reserved "welcome" ID.
// It is always the first message of a fresh conversation.
func WelcomeMessage() Message {
	return Message{
		ID:        WelcomeID,
		Role:      RoleAssistant,
		Content:   WelcomeText,
		Timestamp: time.Now(),
	}
}

// HasLocations reports whether the message carries any location results.
func (m Message) HasLocations() bool {
	return len(m.Locations) > 0
}

// Preview returns a truncated single-line preview of the message content.
// Uses rune-based truncation to handle Vietnamese text correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + uuid.NewString()
}

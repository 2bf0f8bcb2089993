// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"strings"
)

// The backend signals freemium limits through the human-readable detail string
// of its error body. That wording is matched here, once, at the API boundary;
// everything downstream works with the tagged sentinels via errors.Is and
// never re-derives meaning from free text.
const (
	conversationLimitMarker = "giới hạn 3 cuộc hội thoại"
	messageLimitMarker      = "giới hạn 10 tin nhắn"
)

// Error variables for backend-signaled conditions.
var (
	// ErrConversationLimit indicates the user has reached the maximum number
	// of conversations. Surfaced when creating a conversation.
	ErrConversationLimit = errors.New("conversation limit reached")

	// ErrMessageLimit indicates the active conversation has reached its
	// message cap. Surfaced from the chat endpoint; the UI reacts by offering
	// a new conversation.
	ErrMessageLimit = errors.New("conversation message limit reached")
)

// APIError represents a non-2xx response from the CoSpa backend that does not
// map to a known limit. Detail carries the server-provided message when one
// was present.
type APIError struct {
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("cospa api error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("cospa api error (HTTP %d)", e.Status)
}

// classifyError maps an error response to a tagged error. The limit sentinels
// are wrapped so the server's full wording stays available for display.
func classifyError(status int, detail string) error {
	switch {
	case strings.Contains(detail, conversationLimitMarker):
		return fmt.Errorf("%w: %s", ErrConversationLimit, detail)
	case strings.Contains(detail, messageLimitMarker):
		return fmt.Errorf("%w: %s", ErrMessageLimit, detail)
	default:
		return &APIError{Status: status, Detail: detail}
	}
}

// Detail extracts the server-provided message from a classified error, or ""
// for transport-level failures.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Detail
	}
	if errors.Is(err, ErrConversationLimit) || errors.Is(err, ErrMessageLimit) {
		msg := err.Error()
		if i := strings.Index(msg, ": "); i >= 0 {
			return msg[i+2:]
		}
	}
	return ""
}

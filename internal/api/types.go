// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"time"

	"github.com/cospa-vn/cospa-tui/internal/model"
)

// =============================================================================
// CHAT WIRE TYPES
// =============================================================================

// HistoryEntry is one prior turn in the role-normalized two-party scheme the
// chat endpoint expects.
type HistoryEntry struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message        string             `json:"message"`
	History        []HistoryEntry     `json:"history"`
	UserLocation   *model.Coordinates `json:"user_location,omitempty"`
	ConversationID string             `json:"conversation_id,omitempty"`
	UserID         string             `json:"user_id,omitempty"`
}

// ChatResponse is the decoded reply of POST /api/chat with location results
// already converted to domain types.
type ChatResponse struct {
	Reply     string
	Locations []model.LocationResult
}

// chatResponseWire mirrors the raw response body.
type chatResponseWire struct {
	Reply     string         `json:"reply"`
	Locations []locationWire `json:"locations"`
}

// locationWire is the backend's snake_case location shape.
type locationWire struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Brand        string   `json:"brand"`
	Rating       float64  `json:"rating"`
	ReviewCount  int      `json:"review_count"`
	Address      string   `json:"address"`
	Distance     string   `json:"distance"`
	Lat          float64  `json:"lat"`
	Lng          float64  `json:"lng"`
	Amenities    []string `json:"amenities"`
	IsSponsored  bool     `json:"isSponsored"`
	Description  string   `json:"description"`
	ThumbnailURL string   `json:"thumbnail_url"`
	PhoneNumber  string   `json:"phone_number"`
	LinkGoogle   string   `json:"link_google"`
	LinkWeb      string   `json:"link_web"`
}

// toModel converts a wire location to the domain type, applying the image
// fallback and defaulting open status the way the production client does.
func (w locationWire) toModel() model.LocationResult {
	loc := model.LocationResult{
		ID:          w.ID,
		Name:        w.Name,
		Category:    model.Category(w.Type),
		Brand:       w.Brand,
		Rating:      w.Rating,
		ReviewCount: w.ReviewCount,
		Address:     w.Address,
		Distance:    w.Distance,
		ImageURL:    w.ThumbnailURL,
		Coordinates: model.Coordinates{Lat: w.Lat, Lng: w.Lng},
		Amenities:   w.Amenities,
		Sponsored:   w.IsSponsored,
		Open:        true,
		Description: w.Description,
		PhoneNumber: w.PhoneNumber,
		GoogleLink:  w.LinkGoogle,
		WebLink:     w.LinkWeb,
	}
	if loc.Amenities == nil {
		loc.Amenities = []string{}
	}
	if loc.ImageURL == "" {
		loc.ImageURL = model.DefaultImageURL
	}
	return loc
}

// =============================================================================
// USER SYNC WIRE TYPES
// =============================================================================

// UserProfile is the identity payload of POST /api/users/sync. The fields come
// from the completed external sign-in; the client treats them as opaque.
type UserProfile struct {
	ClerkID   string `json:"clerk_id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

type syncResponseWire struct {
	UserID string `json:"user_id"`
}

// =============================================================================
// CONVERSATION WIRE TYPES
// =============================================================================

type createConversationRequest struct {
	UserID string `json:"user_id"`
	Title  string `json:"title"`
}

type createConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

type renameConversationRequest struct {
	Title string `json:"title"`
}

type conversationWire struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	MessageCount int    `json:"message_count"`
}

type listConversationsResponse struct {
	Conversations []conversationWire `json:"conversations"`
}

func (w conversationWire) toModel() model.Conversation {
	return model.Conversation{
		ID:           w.ID,
		Title:        w.Title,
		CreatedAt:    parseServerTime(w.CreatedAt),
		UpdatedAt:    parseServerTime(w.UpdatedAt),
		MessageCount: w.MessageCount,
	}
}

// parseServerTime decodes the backend's RFC 3339 timestamps, tolerating a
// missing fraction or zone. A blank or unparseable value yields the zero time.
func parseServerTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// =============================================================================
// MESSAGE WIRE TYPES
// =============================================================================

type messageWire struct {
	ID               string         `json:"id"`
	Role             string         `json:"role"`
	Content          string         `json:"content"`
	Timestamp        int64          `json:"timestamp"` // epoch millis
	RelatedLocations []locationWire `json:"relatedLocations"`
}

type listMessagesResponse struct {
	Messages []messageWire `json:"messages"`
}

func (w messageWire) toModel() model.Message {
	msg := model.Message{
		ID:        w.ID,
		Role:      model.Role(w.Role),
		Content:   w.Content,
		Timestamp: time.UnixMilli(w.Timestamp),
	}
	if len(w.RelatedLocations) > 0 {
		msg.Locations = make([]model.LocationResult, 0, len(w.RelatedLocations))
		for _, loc := range w.RelatedLocations {
			msg.Locations = append(msg.Locations, loc.toModel())
		}
	}
	return msg
}

// =============================================================================
// SAVED LOCATION WIRE TYPES
// =============================================================================

type saveLocationRequest struct {
	UserID string `json:"user_id"`
	SiteID string `json:"site_id"`
}

// errorResponseWire is the backend's error body shape.
type errorResponseWire struct {
	Detail string `json:"detail"`
}

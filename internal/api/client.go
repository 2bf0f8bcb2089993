// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the CoSpa backend.
//
// The backend owns everything interesting: AI prompt orchestration, location
// ranking, conversation persistence and quota enforcement. This package is a
// thin request/response mapping with one important responsibility - error
// classification. Non-success responses are converted to tagged errors
// (ErrConversationLimit, ErrMessageLimit, *APIError) exactly once, here, so
// callers never pattern-match server wording themselves.
//
// List, delete, rename and message-fetch swallow failures into empty/false
// results: the UI treats a broken conversation list as "no conversations",
// never as a hard error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cospa-vn/cospa-tui/internal/model"
)

// Configuration constants for the CoSpa backend API.
const (
	// DefaultBaseURL is the base URL of the backend.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default timeout for API requests. The chat
	// endpoint runs model inference server-side, so it gets headroom.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024 // 10MB
)

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// Shared HTTP client for all backend requests.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
	Timeout: DefaultTimeout,
}

// Client is a client for the CoSpa backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// pacer throttles outgoing requests so rapid conversation switching or
	// key mashing cannot hammer the backend.
	pacer *rate.Limiter
}

// NewClient creates a client for the given base URL. An empty baseURL falls
// back to DefaultBaseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: sharedHTTPClient,
		pacer:      rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
	}
}

// WithTimeout sets the request timeout. This swaps in a dedicated HTTP client
// so the shared pooled client's timeout is left alone.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient = &http.Client{
		Transport: sharedHTTPClient.Transport,
		Timeout:   timeout,
	}
	return c
}

// WithHTTPClient sets a custom HTTP client, for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// CHAT
// =============================================================================

// Chat submits a message with its conversational history to POST /api/chat
// and returns the assistant reply with any location results.
//
// Limit conditions surface as ErrMessageLimit / ErrConversationLimit; other
// server-signaled failures as *APIError; transport failures wrapped as-is.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var wire chatResponseWire
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &wire); err != nil {
		return nil, err
	}

	resp := &ChatResponse{Reply: wire.Reply}
	if len(wire.Locations) > 0 {
		resp.Locations = make([]model.LocationResult, 0, len(wire.Locations))
		for _, loc := range wire.Locations {
			resp.Locations = append(resp.Locations, loc.toModel())
		}
	}
	return resp, nil
}

// =============================================================================
// USER SYNC
// =============================================================================

// SyncUser upserts the signed-in identity with the backend and returns the
// backend user id. The call is idempotent.
func (c *Client) SyncUser(ctx context.Context, profile UserProfile) (string, error) {
	var wire syncResponseWire
	if err := c.do(ctx, http.MethodPost, "/api/users/sync", profile, &wire); err != nil {
		return "", fmt.Errorf("sync user: %w", err)
	}
	return wire.UserID, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// CreateConversation creates a conversation for the owner and returns its id.
// An empty title lets the backend assign the default. Fails with
// ErrConversationLimit when the owner's conversation cap is reached.
func (c *Client) CreateConversation(ctx context.Context, userID, title string) (string, error) {
	if title == "" {
		title = model.DefaultConversationTitle
	}
	var wire createConversationResponse
	err := c.do(ctx, http.MethodPost, "/api/conversations",
		createConversationRequest{UserID: userID, Title: title}, &wire)
	if err != nil {
		return "", err
	}
	return wire.ConversationID, nil
}

// ListConversations returns the owner's conversations in server order (most
// recently updated first). Any failure yields an empty list: a broken list
// endpoint must degrade to "no conversations", not an error screen.
func (c *Client) ListConversations(ctx context.Context, userID string) []model.Conversation {
	var wire listConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/conversations/"+userID, nil, &wire); err != nil {
		log.Printf("list conversations failed: %v", err)
		return []model.Conversation{}
	}

	conversations := make([]model.Conversation, 0, len(wire.Conversations))
	for _, conv := range wire.Conversations {
		conversations = append(conversations, conv.toModel())
	}
	return conversations
}

// DeleteConversation deletes a conversation, reporting success as a boolean.
// Transport errors are swallowed into false.
func (c *Client) DeleteConversation(ctx context.Context, id string) bool {
	if err := c.do(ctx, http.MethodDelete, "/api/conversations/"+id, nil, nil); err != nil {
		log.Printf("delete conversation %s failed: %v", id, err)
		return false
	}
	return true
}

// RenameConversation updates a conversation title, reporting success as a
// boolean.
func (c *Client) RenameConversation(ctx context.Context, id, title string) bool {
	err := c.do(ctx, http.MethodPatch, "/api/conversations/"+id,
		renameConversationRequest{Title: title}, nil)
	if err != nil {
		log.Printf("rename conversation %s failed: %v", id, err)
		return false
	}
	return true
}

// FetchMessages returns a conversation's messages in server order with their
// attached location results. Any failure yields an empty list.
func (c *Client) FetchMessages(ctx context.Context, conversationID string) []model.Message {
	var wire listMessagesResponse
	err := c.do(ctx, http.MethodGet, "/api/conversations/"+conversationID+"/messages", nil, &wire)
	if err != nil {
		log.Printf("fetch messages for %s failed: %v", conversationID, err)
		return []model.Message{}
	}

	messages := make([]model.Message, 0, len(wire.Messages))
	for _, msg := range wire.Messages {
		messages = append(messages, msg.toModel())
	}
	return messages
}

// =============================================================================
// SAVED LOCATIONS
// =============================================================================

// SaveLocation marks a location as a favorite for the user.
func (c *Client) SaveLocation(ctx context.Context, userID, siteID string) error {
	err := c.do(ctx, http.MethodPost, "/api/saved-locations/save",
		saveLocationRequest{UserID: userID, SiteID: siteID}, nil)
	if err != nil {
		return fmt.Errorf("save location: %w", err)
	}
	return nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do performs one JSON request/response cycle. A nil body sends no payload; a
// nil out discards the response body after the status check.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.pacer.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Printf("API Request: %s %s", method, path)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	log.Printf("API Response: %d %s (%v)", resp.StatusCode, path, time.Since(start))

	// SECURITY: Read response with size limit to prevent memory exhaustion
	raw, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	limited := io.LimitReader(resp.Body, MaxResponseSize)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(raw)) == MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return raw, nil
}

// handleErrorResponse converts a non-2xx response into a tagged error.
func (c *Client) handleErrorResponse(status int, raw []byte) error {
	var wire errorResponseWire
	if err := json.Unmarshal(raw, &wire); err == nil && wire.Detail != "" {
		return classifyError(status, wire.Detail)
	}
	// Unparseable body: keep whatever text came back for operator debugging.
	return &APIError{Status: status, Detail: strings.TrimSpace(string(raw))}
}

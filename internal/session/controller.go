// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cospa-vn/cospa-tui/internal/api"
	"github.com/cospa-vn/cospa-tui/internal/history"
	"github.com/cospa-vn/cospa-tui/internal/model"
	"github.com/cospa-vn/cospa-tui/internal/prefs"
	"github.com/cospa-vn/cospa-tui/internal/quota"
)

// =============================================================================
// ERRORS AND FIXED REPLIES
// =============================================================================

var (
	// ErrBlankMessage is returned when the user submits empty input.
	ErrBlankMessage = errors.New("message is blank")

	// ErrBusy is returned when a send is attempted while another is in flight.
	ErrBusy = errors.New("a message is already in flight")

	// ErrSignInRequired is returned for operations that need an account.
	ErrSignInRequired = errors.New("sign in required")
)

// Assistant-voiced notices, shown inline in the chat.
const (
	connectivityNotice = "Xin lỗi, hiện tại mình đang gặp sự cố kết nối."

	conversationCapNotice = "Bạn đã đạt giới hạn 3 cuộc hội thoại.\n\n" +
		"Vui lòng liên hệ admin để nâng cấp tài khoản và sử dụng không giới hạn cuộc hội thoại."

	signInToSaveNotice = "Vui lòng đăng nhập để lưu địa điểm"
)

func dailyLimitNotice() string {
	return fmt.Sprintf("Bạn đã sử dụng hết %d lượt tìm kiếm miễn phí trong ngày hôm nay. "+
		"Vui lòng đăng nhập để tiếp tục sử dụng không giới hạn! 🔐", quota.DailyLimit)
}

// =============================================================================
// CONTROLLER
// =============================================================================

// SendResult reports how a send concluded beyond the message list itself.
type SendResult struct {
	// RateLimited is set when the daily free quota denied the send.
	// A synthetic assistant notice was appended; nothing hit the network.
	RateLimited bool

	// MessageLimit is set when the backend rejected the send because the
	// conversation reached its message cap. Nothing was appended; the UI
	// should offer to start a new conversation.
	MessageLimit bool

	// Stale is set when the reply arrived after the user switched
	// conversations. The reply was discarded.
	Stale bool
}

// Controller owns the live chat session. All exported methods are safe to
// call from concurrent goroutines (bubbletea runs commands off the UI loop).
type Controller struct {
	mu      sync.Mutex
	client  *api.Client
	store   prefs.Store
	limiter *quota.Limiter
	mirror  *history.Store // optional; nil disables the local mirror

	messages      []model.Message
	conversations []model.Conversation
	locations     []model.LocationResult
	mapCenter     model.Coordinates

	conversationID string
	userID         string
	loading        bool
	generation     uint64
	notice         string // non-fatal startup problem for the status bar
	limitDetail    string // backend wording of a pending message-limit rejection
}

// NewController wires a controller from its collaborators. mirror may be nil.
func NewController(client *api.Client, store prefs.Store, limiter *quota.Limiter, mirror *history.Store) *Controller {
	return &Controller{
		client:    client,
		store:     store,
		limiter:   limiter,
		mirror:    mirror,
		messages:  []model.Message{model.WelcomeMessage()},
		mapCenter: model.DefaultCenter,
	}
}

// WithMapCenter sets the initial map center (builder style, call before use).
func (c *Controller) WithMapCenter(center model.Coordinates) *Controller {
	c.mapCenter = center
	return c
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Initialize restores identity and conversation state from the preference
// store and, for signed-in users, bootstraps the conversation list. Failures
// degrade to anonymous mode and are remembered for the status bar.
func (c *Controller) Initialize(ctx context.Context) {
	c.mu.Lock()
	c.conversationID = c.store.Get(prefs.KeyConversationID)
	c.userID = c.store.Get(prefs.KeyUserID)
	userID := c.userID
	conversationID := c.conversationID
	c.mu.Unlock()

	if userID == "" {
		return
	}

	c.bootstrapConversations(ctx, userID, conversationID)
}

// SignIn syncs the given identity with the backend, persists the returned
// user id, and bootstraps the conversation list.
func (c *Controller) SignIn(ctx context.Context, profile api.UserProfile) error {
	userID, err := c.client.SyncUser(ctx, profile)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	c.mu.Lock()
	c.userID = userID
	conversationID := c.conversationID
	if err := c.store.Set(prefs.KeyUserID, userID); err != nil {
		log.Printf("persist user id: %v", err)
	}
	c.mu.Unlock()

	c.bootstrapConversations(ctx, userID, conversationID)
	return nil
}

// SignOut clears the stored identity. The conversation id is kept so an
// anonymous session keeps its context, matching the stored-key contract.
func (c *Controller) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = ""
	if err := c.store.Delete(prefs.KeyUserID); err != nil {
		log.Printf("clear user id: %v", err)
	}
}

// bootstrapConversations lists the user's conversations and picks or creates
// the active one. Mirrors the list locally.
func (c *Controller) bootstrapConversations(ctx context.Context, userID, conversationID string) {
	convs := c.client.ListConversations(ctx, userID)

	c.mu.Lock()
	c.conversations = convs
	c.mu.Unlock()
	c.mirrorConversations(convs)

	switch {
	case len(convs) == 0 && conversationID == "":
		id, err := c.client.CreateConversation(ctx, userID, "")
		if err != nil {
			c.mu.Lock()
			if errors.Is(err, api.ErrConversationLimit) {
				c.notice = conversationCapNotice
			} else {
				c.notice = connectivityNotice
			}
			c.mu.Unlock()
			log.Printf("auto-create conversation: %v", err)
			return
		}
		c.mu.Lock()
		c.setConversationLocked(id)
		c.mu.Unlock()
		c.refreshConversations(ctx)
	case len(convs) > 0 && conversationID == "":
		c.SelectConversation(ctx, convs[0].ID)
	case conversationID != "":
		c.loadMessages(ctx, conversationID)
	}
}

// =============================================================================
// SENDING
// =============================================================================

// SendMessage submits text to the assistant and appends the exchange to the
// session. It blocks for the round trip; run it from a command goroutine.
func (c *Controller) SendMessage(ctx context.Context, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrBlankMessage
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}

	authenticated := c.userID != ""
	if !c.limiter.Check(authenticated) {
		c.messages = append(c.messages, model.NewAssistantMessage(dailyLimitNotice(), nil))
		c.mu.Unlock()
		return &SendResult{RateLimited: true}, nil
	}

	// History covers the exchange so far, excluding the message being sent.
	histEntries := make([]api.HistoryEntry, 0, len(c.messages))
	for _, msg := range c.messages {
		histEntries = append(histEntries, api.HistoryEntry{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}

	userMsg := model.NewUserMessage(text)
	c.messages = append(c.messages, userMsg)
	c.loading = true
	gen := c.generation
	c.limiter.Record(authenticated)

	req := api.ChatRequest{
		Message:        text,
		History:        histEntries,
		UserLocation:   &model.Coordinates{Lat: c.mapCenter.Lat, Lng: c.mapCenter.Lng},
		ConversationID: c.conversationID,
		UserID:         c.userID,
	}
	conversationID := c.conversationID
	c.mu.Unlock()

	resp, err := c.client.Chat(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		// The user switched conversations while this send was in flight.
		// The reply belongs to a conversation no longer on screen.
		return &SendResult{Stale: true}, nil
	}
	c.loading = false

	if err != nil {
		if errors.Is(err, api.ErrMessageLimit) {
			c.limitDetail = api.Detail(err)
			return &SendResult{MessageLimit: true}, nil
		}
		content := connectivityNotice
		if detail := api.Detail(err); detail != "" {
			content = detail
		}
		c.messages = append(c.messages, model.NewAssistantMessage(content, nil))
		return &SendResult{}, nil
	}

	reply := model.NewAssistantMessage(resp.Reply, resp.Locations)
	c.messages = append(c.messages, reply)
	if len(resp.Locations) > 0 {
		c.locations = resp.Locations
		c.mapCenter = resp.Locations[0].Coordinates
	}

	c.mirrorMessages(conversationID, []model.Message{userMsg, reply})
	return &SendResult{}, nil
}

// StartNewConversationAfterLimit creates and switches to a fresh conversation
// after the active one hit its message cap. On the conversation cap, the
// explanation is appended to the chat instead.
func (c *Controller) StartNewConversationAfterLimit(ctx context.Context) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return ErrSignInRequired
	}

	id, err := c.client.CreateConversation(ctx, userID, "")
	if err != nil {
		c.mu.Lock()
		if errors.Is(err, api.ErrConversationLimit) {
			c.messages = append(c.messages, model.NewAssistantMessage(conversationCapNotice, nil))
		} else {
			c.messages = append(c.messages, model.NewAssistantMessage(connectivityNotice, nil))
		}
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.setConversationLocked(id)
	c.resetToWelcomeLocked()
	c.mu.Unlock()

	c.refreshConversations(ctx)
	return nil
}

// DeclineNewConversation keeps the capped conversation and surfaces the
// backend's limit explanation verbatim as an assistant message.
func (c *Controller) DeclineNewConversation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	notice := c.limitDetail
	if notice == "" {
		notice = connectivityNotice
	}
	c.messages = append(c.messages, model.NewAssistantMessage(notice, nil))
	c.limitDetail = ""
}

// =============================================================================
// CONVERSATION MANAGEMENT
// =============================================================================

// SelectConversation switches the session to another conversation and loads
// its messages. An in-flight send for the previous conversation is discarded.
func (c *Controller) SelectConversation(ctx context.Context, id string) {
	c.mu.Lock()
	c.setConversationLocked(id)
	c.mu.Unlock()

	c.loadMessages(ctx, id)
}

// CreateConversation creates and switches to a new conversation. Returns
// api.ErrConversationLimit (wrapped) when the account's cap is reached.
func (c *Controller) CreateConversation(ctx context.Context) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return ErrSignInRequired
	}

	id, err := c.client.CreateConversation(ctx, userID, "")
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.setConversationLocked(id)
	c.resetToWelcomeLocked()
	c.mu.Unlock()

	c.refreshConversations(ctx)
	return nil
}

// DeleteConversation removes a conversation. When the active conversation is
// deleted, the session moves to the most recent remaining one, or back to a
// fresh welcome state when none remain.
func (c *Controller) DeleteConversation(ctx context.Context, id string) bool {
	if !c.client.DeleteConversation(ctx, id) {
		return false
	}
	if c.mirror != nil {
		if err := c.mirror.DeleteConversation(id); err != nil {
			log.Printf("history: drop conversation: %v", err)
		}
	}

	c.mu.Lock()
	userID := c.userID
	current := c.conversationID
	c.mu.Unlock()

	updated := c.client.ListConversations(ctx, userID)
	c.mu.Lock()
	c.conversations = updated
	c.mu.Unlock()

	if id != current {
		return true
	}

	if len(updated) > 0 {
		c.SelectConversation(ctx, updated[0].ID)
		return true
	}

	c.mu.Lock()
	c.conversationID = ""
	c.generation++
	c.loading = false
	if err := c.store.Delete(prefs.KeyConversationID); err != nil {
		log.Printf("clear conversation id: %v", err)
	}
	c.resetToWelcomeLocked()
	c.mu.Unlock()
	return true
}

// RenameConversation updates a conversation title and refreshes the list.
func (c *Controller) RenameConversation(ctx context.Context, id, title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	if !c.client.RenameConversation(ctx, id, title) {
		return false
	}
	c.refreshConversations(ctx)
	return true
}

// refreshConversations re-fetches the conversation list and mirrors it.
func (c *Controller) refreshConversations(ctx context.Context) {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return
	}

	convs := c.client.ListConversations(ctx, userID)
	c.mu.Lock()
	c.conversations = convs
	c.mu.Unlock()
	c.mirrorConversations(convs)
}

// loadMessages fetches a conversation's messages and rebuilds the location
// cache from every attached result. Empty conversations reset to the welcome
// greeting.
func (c *Controller) loadMessages(ctx context.Context, conversationID string) {
	msgs := c.client.FetchMessages(ctx, conversationID)

	c.mu.Lock()
	if c.conversationID != conversationID {
		// The user moved on while we were fetching.
		c.mu.Unlock()
		return
	}
	if len(msgs) == 0 {
		c.resetToWelcomeLocked()
		c.mu.Unlock()
		return
	}

	c.messages = msgs
	if union := model.UnionLocations(msgs); len(union) > 0 {
		c.locations = union
		c.mapCenter = union[len(union)-1].Coordinates
	}
	c.mu.Unlock()

	c.mirrorMessages(conversationID, msgs)
}

// setConversationLocked switches the active conversation id, persists it, and
// invalidates any in-flight send. Callers hold c.mu.
func (c *Controller) setConversationLocked(id string) {
	c.conversationID = id
	c.generation++
	c.loading = false
	if err := c.store.Set(prefs.KeyConversationID, id); err != nil {
		log.Printf("persist conversation id: %v", err)
	}
}

// resetToWelcomeLocked replaces the message list with the greeting.
// Callers hold c.mu.
func (c *Controller) resetToWelcomeLocked() {
	c.messages = []model.Message{model.WelcomeMessage()}
}

// =============================================================================
// LOCATIONS AND MAP
// =============================================================================

// SaveLocation marks a result as a favorite. Anonymous users are told to
// sign in first.
func (c *Controller) SaveLocation(ctx context.Context, siteID string) error {
	c.mu.Lock()
	userID := c.userID
	var saved *model.LocationResult
	for i := range c.locations {
		if c.locations[i].ID == siteID {
			saved = &c.locations[i]
			break
		}
	}
	c.mu.Unlock()

	if userID == "" {
		return fmt.Errorf("%w: %s", ErrSignInRequired, signInToSaveNotice)
	}

	if err := c.client.SaveLocation(ctx, userID, siteID); err != nil {
		return err
	}
	if c.mirror != nil && saved != nil {
		if err := c.mirror.RecordSavedLocation(*saved); err != nil {
			log.Printf("history: record saved location: %v", err)
		}
	}
	return nil
}

// SetMapCenter moves the map center, e.g. when the user picks a city or a
// result card.
func (c *Controller) SetMapCenter(center model.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mapCenter = center
}

// =============================================================================
// SNAPSHOT ACCESSORS
// =============================================================================

// Messages returns a copy of the current message list.
func (c *Controller) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Conversations returns a copy of the conversation list.
func (c *Controller) Conversations() []model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Conversation, len(c.conversations))
	copy(out, c.conversations)
	return out
}

// Locations returns a copy of the current location results.
func (c *Controller) Locations() []model.LocationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.LocationResult, len(c.locations))
	copy(out, c.locations)
	return out
}

// MapCenter returns the current map center.
func (c *Controller) MapCenter() model.Coordinates {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mapCenter
}

// IsLoading reports whether a send is in flight.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// ConversationID returns the active conversation id ("" when none).
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// UserID returns the backend user id ("" when anonymous).
func (c *Controller) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Authenticated reports whether a user id is present.
func (c *Controller) Authenticated() bool {
	return c.UserID() != ""
}

// QuotaRemaining returns how many free sends are left today.
func (c *Controller) QuotaRemaining() int {
	return c.limiter.Remaining()
}

// Notice returns a non-fatal startup problem for display, or "".
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// ActiveConversationTitle returns the active conversation's title, or the
// default when unknown.
func (c *Controller) ActiveConversationTitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conv := range c.conversations {
		if conv.ID == c.conversationID {
			return conv.GetTitle()
		}
	}
	return model.DefaultConversationTitle
}

// =============================================================================
// HISTORY MIRROR (best-effort)
// =============================================================================

func (c *Controller) mirrorConversations(convs []model.Conversation) {
	if c.mirror == nil {
		return
	}
	for _, conv := range convs {
		if err := c.mirror.RecordConversation(conv); err != nil {
			log.Printf("history: record conversation: %v", err)
			return
		}
	}
}

func (c *Controller) mirrorMessages(conversationID string, msgs []model.Message) {
	if c.mirror == nil || conversationID == "" {
		return
	}
	if err := c.mirror.RecordMessages(conversationID, msgs); err != nil {
		log.Printf("history: record messages: %v", err)
	}
}

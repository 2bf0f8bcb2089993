// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cospa-vn/cospa-tui/internal/api"
	"github.com/cospa-vn/cospa-tui/internal/model"
	"github.com/cospa-vn/cospa-tui/internal/prefs"
	"github.com/cospa-vn/cospa-tui/internal/quota"
)

// fakeBackend is a scriptable stand-in for the cospa API.
type fakeBackend struct {
	t *testing.T

	chatReply     string
	chatLocations []map[string]any
	chatStatus    int
	chatDetail    string
	chatRequests  atomic.Int64

	conversations []map[string]any
	messages      map[string][]map[string]any

	createdID     string
	createStatus  int
	createDetail  string
	deleteOK      bool
	renameOK      bool
	savedRequests atomic.Int64

	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		t:         t,
		chatReply: "Mình gợi ý vài quán nhé!",
		messages:  map[string][]map[string]any{},
		createdID: "conv_new",
		deleteOK:  true,
		renameOK:  true,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		fb.chatRequests.Add(1)
		if fb.chatStatus != 0 {
			w.WriteHeader(fb.chatStatus)
			json.NewEncoder(w).Encode(map[string]string{"detail": fb.chatDetail})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"reply":     fb.chatReply,
			"locations": fb.chatLocations,
		})
	})
	mux.HandleFunc("POST /api/users/sync", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"user_id": "user_1"})
	})
	mux.HandleFunc("POST /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		if fb.createStatus != 0 {
			w.WriteHeader(fb.createStatus)
			json.NewEncoder(w).Encode(map[string]string{"detail": fb.createDetail})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"conversation_id": fb.createdID})
	})
	mux.HandleFunc("DELETE /api/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !fb.deleteOK {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		for i, conv := range fb.conversations {
			if conv["id"] == r.PathValue("id") {
				fb.conversations = append(fb.conversations[:i], fb.conversations[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PATCH /api/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !fb.renameOK {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"messages": fb.messages[r.PathValue("id")]})
	})
	mux.HandleFunc("GET /api/conversations/{userID}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"conversations": fb.conversations})
	})
	mux.HandleFunc("POST /api/saved-locations/save", func(w http.ResponseWriter, r *http.Request) {
		fb.savedRequests.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	fb.server = httptest.NewServer(mux)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) addConversation(id, title string) {
	fb.conversations = append(fb.conversations, map[string]any{
		"id":            id,
		"title":         title,
		"created_at":    time.Now().Format(time.RFC3339),
		"updated_at":    time.Now().Format(time.RFC3339),
		"message_count": 0,
	})
}

func wireLocation(id, name string, lat, lng float64) map[string]any {
	return map[string]any{
		"id": id, "name": name, "type": "Cafe",
		"rating": 4.5, "review_count": 10,
		"address": "123 Test St", "distance": "1.2 km",
		"lat": lat, "lng": lng,
		"amenities": []string{"wifi"},
	}
}

func newTestController(t *testing.T, fb *fakeBackend, store prefs.Store) *Controller {
	t.Helper()
	client := api.NewClient(fb.server.URL).WithTimeout(5 * time.Second)
	return NewController(client, store, quota.NewLimiter(store), nil)
}

// =============================================================================
// SENDING
// =============================================================================

func TestSendMessage_OptimisticAppendAndReply(t *testing.T) {
	fb := newFakeBackend(t)
	fb.chatLocations = []map[string]any{wireLocation("loc_1", "Cafe A", 21.03, 105.85)}
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	res, err := ctrl.SendMessage(context.Background(), "tìm quán cafe yên tĩnh")
	require.NoError(t, err)
	assert.False(t, res.RateLimited)
	assert.False(t, res.MessageLimit)

	msgs := ctrl.Messages()
	require.Len(t, msgs, 3) // welcome, user, assistant
	assert.Equal(t, model.RoleUser, msgs[1].Role)
	assert.Equal(t, "tìm quán cafe yên tĩnh", msgs[1].Content)
	assert.Equal(t, model.RoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].Locations, 1)

	// Location cache replaced and map centered on the first result.
	locs := ctrl.Locations()
	require.Len(t, locs, 1)
	assert.Equal(t, "loc_1", locs[0].ID)
	assert.InDelta(t, 21.03, ctrl.MapCenter().Lat, 1e-9)
	assert.False(t, ctrl.IsLoading())
}

func TestSendMessage_BlankAndBusy(t *testing.T) {
	fb := newFakeBackend(t)
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	_, err := ctrl.SendMessage(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrBlankMessage)

	ctrl.mu.Lock()
	ctrl.loading = true
	ctrl.mu.Unlock()
	_, err = ctrl.SendMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestSendMessage_EmptyLocationsLeaveCacheAlone(t *testing.T) {
	fb := newFakeBackend(t)
	fb.chatLocations = []map[string]any{wireLocation("loc_1", "Cafe A", 21.03, 105.85)}
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	_, err := ctrl.SendMessage(context.Background(), "quán cafe")
	require.NoError(t, err)
	center := ctrl.MapCenter()

	// Next reply has no locations: cache and center stay as they were.
	fb.chatLocations = nil
	_, err = ctrl.SendMessage(context.Background(), "cảm ơn")
	require.NoError(t, err)

	assert.Len(t, ctrl.Locations(), 1)
	assert.Equal(t, center, ctrl.MapCenter())
}

func TestSendMessage_DailyQuotaDenied(t *testing.T) {
	fb := newFakeBackend(t)
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	for i := 0; i < quota.DailyLimit; i++ {
		_, err := ctrl.SendMessage(context.Background(), fmt.Sprintf("câu hỏi %d", i))
		require.NoError(t, err)
	}
	require.Equal(t, int64(quota.DailyLimit), fb.chatRequests.Load())

	res, err := ctrl.SendMessage(context.Background(), "một câu nữa")
	require.NoError(t, err)
	assert.True(t, res.RateLimited)
	// Denied without touching the network.
	assert.Equal(t, int64(quota.DailyLimit), fb.chatRequests.Load())
	assert.False(t, ctrl.IsLoading())

	msgs := ctrl.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "lượt tìm kiếm miễn phí")
	assert.Equal(t, 0, ctrl.QuotaRemaining())
}

func TestSendMessage_ConnectivityFailure(t *testing.T) {
	fb := newFakeBackend(t)
	ctrl := newTestController(t, fb, prefs.NewMemStore())
	fb.server.Close() // sever the connection

	res, err := ctrl.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, res.MessageLimit)

	msgs := ctrl.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, connectivityNotice, last.Content)
	assert.False(t, ctrl.IsLoading())
}

func TestSendMessage_APIErrorDetailShownVerbatim(t *testing.T) {
	fb := newFakeBackend(t)
	fb.chatStatus = http.StatusBadRequest
	fb.chatDetail = "Câu hỏi không hợp lệ"
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	_, err := ctrl.SendMessage(context.Background(), "hello")
	require.NoError(t, err)

	msgs := ctrl.Messages()
	assert.Equal(t, "Câu hỏi không hợp lệ", msgs[len(msgs)-1].Content)
}

func TestSendMessage_MessageLimitPrompt(t *testing.T) {
	fb := newFakeBackend(t)
	fb.chatStatus = http.StatusForbidden
	fb.chatDetail = "Cuộc hội thoại đã đạt giới hạn 10 tin nhắn"
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	res, err := ctrl.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, res.MessageLimit)
	assert.False(t, ctrl.IsLoading())

	// No assistant message yet: the UI is asking the user what to do.
	msgs := ctrl.Messages()
	assert.Equal(t, model.RoleUser, msgs[len(msgs)-1].Role)

	// User declines: the backend's wording appears verbatim.
	ctrl.DeclineNewConversation()
	msgs = ctrl.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.Contains(t, last.Content, "giới hạn 10 tin nhắn")
}

func TestSendMessage_StaleReplyDiscarded(t *testing.T) {
	fb := newFakeBackend(t)
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	// Simulate a conversation switch racing the in-flight send by bumping
	// the generation between dispatch and settle.
	done := make(chan *SendResult, 1)
	release := make(chan struct{})
	fb.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode(map[string]any{"reply": "late reply"})
	})

	var sendErr error
	go func() {
		res, err := ctrl.SendMessage(context.Background(), "hello")
		sendErr = err
		done <- res
	}()

	require.Eventually(t, ctrl.IsLoading, time.Second, 5*time.Millisecond)
	ctrl.mu.Lock()
	ctrl.generation++
	ctrl.loading = false
	ctrl.mu.Unlock()
	close(release)

	res := <-done
	require.NoError(t, sendErr)
	assert.True(t, res.Stale)
	for _, msg := range ctrl.Messages() {
		assert.NotEqual(t, "late reply", msg.Content)
	}
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func TestSelectConversation_ReplacesStateAndUnionsLocations(t *testing.T) {
	fb := newFakeBackend(t)
	fb.messages["conv_1"] = []map[string]any{
		{"id": "m1", "role": "user", "content": "quán cafe?", "timestamp": 1700000000000},
		{"id": "m2", "role": "assistant", "content": "Đây nhé", "timestamp": 1700000001000,
			"relatedLocations": []map[string]any{wireLocation("loc_1", "Cafe A", 21.0, 105.8)}},
		{"id": "m3", "role": "assistant", "content": "Thêm một quán", "timestamp": 1700000002000,
			"relatedLocations": []map[string]any{wireLocation("loc_2", "Cafe B", 10.8, 106.6)}},
	}
	store := prefs.NewMemStore()
	ctrl := newTestController(t, fb, store)

	ctrl.SelectConversation(context.Background(), "conv_1")

	msgs := ctrl.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m3", msgs[2].ID)

	locs := ctrl.Locations()
	require.Len(t, locs, 2)
	assert.Equal(t, "loc_1", locs[0].ID)
	assert.Equal(t, "loc_2", locs[1].ID)
	// Centered on the last result.
	assert.InDelta(t, 10.8, ctrl.MapCenter().Lat, 1e-9)

	assert.Equal(t, "conv_1", store.Get(prefs.KeyConversationID))
}

func TestSelectConversation_EmptyResetsToWelcome(t *testing.T) {
	fb := newFakeBackend(t)
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	ctrl.SelectConversation(context.Background(), "abc123")

	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.WelcomeID, msgs[0].ID)
	assert.Equal(t, model.WelcomeText, msgs[0].Content)
}

func TestCreateConversation(t *testing.T) {
	fb := newFakeBackend(t)
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.Initialize(context.Background())

	fb.createdID = "conv_9"
	require.NoError(t, ctrl.CreateConversation(context.Background()))

	assert.Equal(t, "conv_9", ctrl.ConversationID())
	assert.Equal(t, "conv_9", store.Get(prefs.KeyConversationID))
	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.WelcomeID, msgs[0].ID)
}

func TestCreateConversation_RequiresSignIn(t *testing.T) {
	fb := newFakeBackend(t)
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	err := ctrl.CreateConversation(context.Background())
	assert.ErrorIs(t, err, ErrSignInRequired)
}

func TestCreateConversation_CapSurfacesTaggedError(t *testing.T) {
	fb := newFakeBackend(t)
	fb.createStatus = http.StatusForbidden
	fb.createDetail = "Bạn đã đạt giới hạn 3 cuộc hội thoại"
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.mu.Lock()
	ctrl.userID = "user_1"
	ctrl.mu.Unlock()

	err := ctrl.CreateConversation(context.Background())
	assert.ErrorIs(t, err, api.ErrConversationLimit)
}

func TestStartNewConversationAfterLimit(t *testing.T) {
	fb := newFakeBackend(t)
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.Initialize(context.Background())

	fb.createdID = "conv_fresh"
	require.NoError(t, ctrl.StartNewConversationAfterLimit(context.Background()))

	assert.Equal(t, "conv_fresh", ctrl.ConversationID())
	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.WelcomeID, msgs[0].ID)
}

func TestStartNewConversationAfterLimit_CapAppendsNotice(t *testing.T) {
	fb := newFakeBackend(t)
	fb.createStatus = http.StatusForbidden
	fb.createDetail = "Bạn đã đạt giới hạn 3 cuộc hội thoại"
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.mu.Lock()
	ctrl.userID = "user_1"
	ctrl.mu.Unlock()

	err := ctrl.StartNewConversationAfterLimit(context.Background())
	require.Error(t, err)

	msgs := ctrl.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Bạn đã đạt giới hạn 3 cuộc hội thoại."))
}

func TestDeleteConversation_ReassignsActive(t *testing.T) {
	fb := newFakeBackend(t)
	fb.addConversation("conv_1", "Một")
	fb.addConversation("conv_2", "Hai")
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	require.NoError(t, store.Set(prefs.KeyConversationID, "conv_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.Initialize(context.Background())
	require.Equal(t, "conv_1", ctrl.ConversationID())

	ok := ctrl.DeleteConversation(context.Background(), "conv_1")
	require.True(t, ok)

	// The first remaining conversation becomes active.
	assert.Equal(t, "conv_2", ctrl.ConversationID())
	assert.Equal(t, "conv_2", store.Get(prefs.KeyConversationID))
}

func TestDeleteConversation_LastOneClearsActive(t *testing.T) {
	fb := newFakeBackend(t)
	fb.addConversation("conv_1", "Một")
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	require.NoError(t, store.Set(prefs.KeyConversationID, "conv_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.Initialize(context.Background())

	ok := ctrl.DeleteConversation(context.Background(), "conv_1")
	require.True(t, ok)

	assert.Equal(t, "", ctrl.ConversationID())
	assert.Equal(t, "", store.Get(prefs.KeyConversationID))
	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.WelcomeID, msgs[0].ID)
}

func TestDeleteConversation_LastOneDiscardsInFlightReply(t *testing.T) {
	fb := newFakeBackend(t)
	fb.addConversation("conv_1", "Một")
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	require.NoError(t, store.Set(prefs.KeyConversationID, "conv_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.Initialize(context.Background())

	// Hold the chat reply open so the delete races the in-flight send;
	// everything else still goes to the normal fake handlers.
	mux := fb.server.Config.Handler
	release := make(chan struct{})
	fb.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/chat" {
			<-release
			json.NewEncoder(w).Encode(map[string]any{"reply": "late reply"})
			return
		}
		mux.ServeHTTP(w, r)
	})

	done := make(chan *SendResult, 1)
	var sendErr error
	go func() {
		res, err := ctrl.SendMessage(context.Background(), "hello")
		sendErr = err
		done <- res
	}()

	require.Eventually(t, ctrl.IsLoading, time.Second, 5*time.Millisecond)
	require.True(t, ctrl.DeleteConversation(context.Background(), "conv_1"))
	close(release)

	res := <-done
	require.NoError(t, sendErr)
	assert.True(t, res.Stale)

	// The fresh welcome view must not receive the dead conversation's reply.
	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.WelcomeID, msgs[0].ID)
	assert.False(t, ctrl.IsLoading())
}

func TestDeleteConversation_InactiveKeepsActive(t *testing.T) {
	fb := newFakeBackend(t)
	fb.addConversation("conv_1", "Một")
	fb.addConversation("conv_2", "Hai")
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	require.NoError(t, store.Set(prefs.KeyConversationID, "conv_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.Initialize(context.Background())

	require.True(t, ctrl.DeleteConversation(context.Background(), "conv_2"))
	assert.Equal(t, "conv_1", ctrl.ConversationID())
}

func TestRenameConversation(t *testing.T) {
	fb := newFakeBackend(t)
	fb.addConversation("conv_1", "Một")
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	ctrl := newTestController(t, fb, store)
	ctrl.Initialize(context.Background())

	assert.True(t, ctrl.RenameConversation(context.Background(), "conv_1", "Tên mới"))
	assert.False(t, ctrl.RenameConversation(context.Background(), "conv_1", "   "))

	fb.renameOK = false
	assert.False(t, ctrl.RenameConversation(context.Background(), "conv_1", "Khác"))
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestInitialize_AnonymousKeepsWelcome(t *testing.T) {
	fb := newFakeBackend(t)
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	ctrl.Initialize(context.Background())

	assert.False(t, ctrl.Authenticated())
	msgs := ctrl.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.WelcomeID, msgs[0].ID)
}

func TestInitialize_AutoCreatesFirstConversation(t *testing.T) {
	fb := newFakeBackend(t)
	fb.createdID = "conv_first"
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	ctrl := newTestController(t, fb, store)

	ctrl.Initialize(context.Background())

	assert.Equal(t, "conv_first", ctrl.ConversationID())
	assert.Equal(t, "conv_first", store.Get(prefs.KeyConversationID))
}

func TestInitialize_SelectsMostRecentConversation(t *testing.T) {
	fb := newFakeBackend(t)
	fb.addConversation("conv_recent", "Gần đây")
	fb.addConversation("conv_old", "Cũ")
	store := prefs.NewMemStore()
	require.NoError(t, store.Set(prefs.KeyUserID, "user_1"))
	ctrl := newTestController(t, fb, store)

	ctrl.Initialize(context.Background())

	assert.Equal(t, "conv_recent", ctrl.ConversationID())
}

func TestSignIn(t *testing.T) {
	fb := newFakeBackend(t)
	store := prefs.NewMemStore()
	ctrl := newTestController(t, fb, store)

	err := ctrl.SignIn(context.Background(), api.UserProfile{
		ClerkID: "clerk_abc", Email: "an@example.com", FullName: "Nguyễn Văn An",
	})
	require.NoError(t, err)

	assert.Equal(t, "user_1", ctrl.UserID())
	assert.Equal(t, "user_1", store.Get(prefs.KeyUserID))
	assert.True(t, ctrl.Authenticated())

	ctrl.SignOut()
	assert.False(t, ctrl.Authenticated())
	assert.Equal(t, "", store.Get(prefs.KeyUserID))
}

// =============================================================================
// LOCATIONS
// =============================================================================

func TestSaveLocation(t *testing.T) {
	fb := newFakeBackend(t)
	store := prefs.NewMemStore()
	ctrl := newTestController(t, fb, store)

	// Anonymous users are told to sign in.
	err := ctrl.SaveLocation(context.Background(), "loc_1")
	assert.ErrorIs(t, err, ErrSignInRequired)
	assert.Equal(t, int64(0), fb.savedRequests.Load())

	ctrl.mu.Lock()
	ctrl.userID = "user_1"
	ctrl.mu.Unlock()
	require.NoError(t, ctrl.SaveLocation(context.Background(), "loc_1"))
	assert.Equal(t, int64(1), fb.savedRequests.Load())
}

func TestSetMapCenter(t *testing.T) {
	fb := newFakeBackend(t)
	ctrl := newTestController(t, fb, prefs.NewMemStore())

	assert.Equal(t, model.DefaultCenter, ctrl.MapCenter())

	saigon := model.Cities[3].Center
	ctrl.SetMapCenter(saigon)
	assert.Equal(t, saigon, ctrl.MapCenter())
}

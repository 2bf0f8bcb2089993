// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cospa-vn/cospa-tui/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordConversation_Upsert(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	conv := model.Conversation{ID: "conv_1", Title: "Quán ở Hà Nội", CreatedAt: now, UpdatedAt: now, MessageCount: 2}
	require.NoError(t, store.RecordConversation(conv))

	conv.Title = "Đổi tên"
	conv.MessageCount = 4
	require.NoError(t, store.RecordConversation(conv))

	got, err := store.Conversations()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Đổi tên", got[0].Title)
	assert.Equal(t, 4, got[0].MessageCount)
}

func TestRecordMessages_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	base := time.Now().Truncate(time.Millisecond)

	msgs := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "tìm quán cafe yên tĩnh", Timestamp: base},
		{ID: "m2", Role: model.RoleAssistant, Content: "Mình gợi ý vài quán nhé", Timestamp: base.Add(time.Second)},
	}
	require.NoError(t, store.RecordMessages("conv_1", msgs))

	got, err := store.Messages("conv_1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, model.RoleUser, got[0].Role)
	assert.Equal(t, base.UnixMilli(), got[0].Timestamp.UnixMilli())
	assert.Equal(t, model.RoleAssistant, got[1].Role)
}

func TestRecordMessages_SkipsWelcome(t *testing.T) {
	store := newTestStore(t)

	msgs := []model.Message{
		model.WelcomeMessage(),
		{ID: "m1", Role: model.RoleUser, Content: "hello", Timestamp: time.Now()},
	}
	require.NoError(t, store.RecordMessages("conv_1", msgs))

	got, err := store.Messages("conv_1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
}

func TestRecordMessages_Idempotent(t *testing.T) {
	store := newTestStore(t)
	msgs := []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "hello", Timestamp: time.Now()},
	}
	require.NoError(t, store.RecordMessages("conv_1", msgs))
	require.NoError(t, store.RecordMessages("conv_1", msgs))

	got, err := store.Messages("conv_1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDeleteConversation_CascadesMessages(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RecordMessages("conv_1", []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "hello", Timestamp: time.Now()},
	}))

	require.NoError(t, store.DeleteConversation("conv_1"))

	msgs, err := store.Messages("conv_1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	convs, err := store.Conversations()
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestSavedLocations(t *testing.T) {
	store := newTestStore(t)

	loc := model.LocationResult{
		ID:          "loc_1",
		Name:        "Tranquil Books & Coffee",
		Address:     "5 Nguyễn Quang Bích, Hà Nội",
		Category:    model.CategoryCafe,
		Coordinates: model.Coordinates{Lat: 21.0334, Lng: 105.8466},
	}
	require.NoError(t, store.RecordSavedLocation(loc))
	require.NoError(t, store.RecordSavedLocation(loc)) // saving twice is fine

	got, err := store.SavedLocations()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "loc_1", got[0].LocationID)
	assert.Equal(t, string(model.CategoryCafe), got[0].Category)
	assert.InDelta(t, 21.0334, got[0].Coords.Lat, 1e-9)
}

func TestSearch(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()

	require.NoError(t, store.RecordMessages("conv_1", []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "quiet cafe with fast wifi", Timestamp: base},
		{ID: "m2", Role: model.RoleAssistant, Content: "Here are some coworking spaces", Timestamp: base.Add(time.Second)},
	}))

	hits, err := store.Search("wifi", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0].MessageID)
	assert.Equal(t, "conv_1", hits[0].ConversationID)

	// Empty query returns nothing rather than erroring.
	hits, err = store.Search("   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Quoted terms keep FTS operators inert.
	_, err = store.Search(`wifi AND "cafe`, 10)
	require.NoError(t, err)
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.RecordConversation(model.Conversation{ID: "x"}), ErrClosed)
	_, err := store.Conversations()
	assert.ErrorIs(t, err, ErrClosed)
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cospa-vn/cospa-tui/internal/api"
	"github.com/cospa-vn/cospa-tui/internal/model"
	"github.com/cospa-vn/cospa-tui/internal/prefs"
	"github.com/cospa-vn/cospa-tui/internal/quota"
	"github.com/cospa-vn/cospa-tui/internal/session"
	"github.com/cospa-vn/cospa-tui/internal/ui/styles"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	store := prefs.NewMemStore()
	ctrl := session.NewController(api.NewClient("http://127.0.0.1:1"), store, quota.NewLimiter(store), nil)
	m := New(ctrl, styles.NewTheme(), 40)
	m.width = 120
	m.height = 40
	m.resize()
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestSplitClamping(t *testing.T) {
	m := newTestModel(t)

	m.splitPercent = maxSplitPercent
	updated, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlRight})
	m = updated.(Model)
	if m.splitPercent != maxSplitPercent {
		t.Errorf("splitPercent = %d, want clamped at %d", m.splitPercent, maxSplitPercent)
	}

	m.splitPercent = minSplitPercent
	updated, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlLeft})
	m = updated.(Model)
	if m.splitPercent != minSplitPercent {
		t.Errorf("splitPercent = %d, want clamped at %d", m.splitPercent, minSplitPercent)
	}
}

func TestNewClampsConfiguredSplit(t *testing.T) {
	store := prefs.NewMemStore()
	ctrl := session.NewController(api.NewClient("http://127.0.0.1:1"), store, quota.NewLimiter(store), nil)

	m := New(ctrl, styles.NewTheme(), 95)
	if m.splitPercent != 40 {
		t.Errorf("out-of-range split should fall back to 40, got %d", m.splitPercent)
	}
}

func TestSubmitWhileLoadingKeepsInput(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"reply":"ok"}`))
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	store := prefs.NewMemStore()
	ctrl := session.NewController(api.NewClient(srv.URL), store, quota.NewLimiter(store), nil)
	m := New(ctrl, styles.NewTheme(), 40)
	m.width = 120
	m.height = 40
	m.resize()

	go ctrl.SendMessage(context.Background(), "đang gửi")
	deadline := time.Now().Add(time.Second)
	for !ctrl.IsLoading() {
		if time.Now().After(deadline) {
			t.Fatal("controller never entered loading state")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.input.SetValue("tin nhắn tiếp theo")
	updated, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)

	if cmd != nil {
		t.Error("enter while loading should not dispatch a send")
	}
	if m.input.Value() != "tin nhắn tiếp theo" {
		t.Errorf("input.Value() = %q, want the typed text kept", m.input.Value())
	}
}

func TestMessageLimitOpensPrompt(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.handleSendDone(sendDoneMsg{result: &session.SendResult{MessageLimit: true}})
	m = updated.(Model)
	if m.overlay != overlayLimit {
		t.Errorf("overlay = %v, want overlayLimit", m.overlay)
	}

	// Declining closes the prompt and surfaces the notice in the transcript.
	updated, _ = m.handleLimitKey(keyMsg("n"))
	m = updated.(Model)
	if m.overlay != overlayNone {
		t.Errorf("overlay = %v, want overlayNone after decline", m.overlay)
	}
}

func TestStaleSendDoneIsIgnored(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.handleSendDone(sendDoneMsg{result: &session.SendResult{Stale: true}})
	m = updated.(Model)
	if m.overlay != overlayNone {
		t.Errorf("stale result should not change overlay state")
	}
}

func TestCapReachedOpensUpgradeNotice(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.Update(conversationChangedMsg{capReached: true})
	m = updated.(Model)
	if m.overlay != overlayUpgrade {
		t.Errorf("overlay = %v, want overlayUpgrade", m.overlay)
	}

	// Any key dismisses it.
	updated, _ = m.handleKey(keyMsg("x"))
	m = updated.(Model)
	if m.overlay != overlayNone {
		t.Errorf("overlay = %v, want overlayNone after dismissal", m.overlay)
	}
}

func TestCityPickerMovesMapCenter(t *testing.T) {
	m := newTestModel(t)

	updated, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = updated.(Model)
	if m.overlay != overlayCities {
		t.Fatalf("overlay = %v, want overlayCities", m.overlay)
	}

	// Move to the last city and select it.
	for range model.Cities {
		updated, _ = m.handleCitiesKey(keyMsg("j"))
		m = updated.(Model)
	}
	updated, _ = m.handleCitiesKey(keyMsg("enter"))
	m = updated.(Model)

	if m.overlay != overlayNone {
		t.Errorf("overlay = %v, want closed after selection", m.overlay)
	}
	want := model.Cities[len(model.Cities)-1].Center
	if got := m.ctrl.MapCenter(); got != want {
		t.Errorf("MapCenter = %v, want %v", got, want)
	}
}

func TestViewRendersTranscriptAndStatus(t *testing.T) {
	m := newTestModel(t)
	m.refreshViewport()

	out := m.View()
	if !strings.Contains(out, "CoSpa") {
		t.Error("view missing brand header")
	}
	// The welcome greeting is on screen at start.
	if !strings.Contains(out, "Xin chào") {
		t.Error("view missing welcome message")
	}
	if !strings.Contains(out, "còn 3 lượt") {
		t.Error("view missing quota status")
	}
}

func TestViewBeforeFirstSizeMsg(t *testing.T) {
	store := prefs.NewMemStore()
	ctrl := session.NewController(api.NewClient("http://127.0.0.1:1"), store, quota.NewLimiter(store), nil)
	m := New(ctrl, styles.NewTheme(), 40)

	if m.View() == "" {
		t.Error("zero-width view should still render a placeholder")
	}
}

func TestToggleResultsPane(t *testing.T) {
	m := newTestModel(t)
	if m.resultsPaneWidth() == 0 {
		t.Fatal("results pane should start visible at width 120")
	}

	updated, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlB})
	m = updated.(Model)
	if m.resultsPaneWidth() != 0 {
		t.Error("results pane should be hidden after toggle")
	}
	if m.chatPaneWidth() != m.width {
		t.Error("chat pane should take the full width when results are hidden")
	}
}

func TestNarrowTerminalHidesResults(t *testing.T) {
	m := newTestModel(t)
	m.width = 50
	if m.resultsPaneWidth() != 0 {
		t.Error("results pane should hide below 60 columns")
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cospa-vn/cospa-tui/internal/api"
	"github.com/cospa-vn/cospa-tui/internal/session"
)

func isCapError(err error) bool {
	return errors.Is(err, api.ErrConversationLimit)
}

// =============================================================================
// MESSAGES
// =============================================================================

// initDoneMsg signals that controller initialization finished.
type initDoneMsg struct{}

// sendDoneMsg carries the outcome of a SendMessage round trip.
type sendDoneMsg struct {
	result *session.SendResult
	err    error
}

// conversationChangedMsg signals that the active conversation or the
// conversation list changed and the view should re-read controller state.
type conversationChangedMsg struct {
	// capReached is set when the change failed on the conversation cap.
	capReached bool
}

// saveDoneMsg carries the outcome of saving a location.
type saveDoneMsg struct {
	name string
	err  error
}

// =============================================================================
// COMMANDS
// =============================================================================

// initCmd restores session state in the background.
func (m Model) initCmd() tea.Cmd {
	return func() tea.Msg {
		m.ctrl.Initialize(context.Background())
		return initDoneMsg{}
	}
}

// sendCmd submits the user's message to the assistant.
func (m Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.ctrl.SendMessage(context.Background(), text)
		return sendDoneMsg{result: res, err: err}
	}
}

// selectConversationCmd switches to another conversation.
func (m Model) selectConversationCmd(id string) tea.Cmd {
	return func() tea.Msg {
		m.ctrl.SelectConversation(context.Background(), id)
		return conversationChangedMsg{}
	}
}

// createConversationCmd creates and switches to a fresh conversation.
func (m Model) createConversationCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.ctrl.CreateConversation(context.Background())
		return conversationChangedMsg{capReached: isCapError(err)}
	}
}

// startAfterLimitCmd is the accepted half of the message-limit prompt.
func (m Model) startAfterLimitCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.ctrl.StartNewConversationAfterLimit(context.Background())
		return conversationChangedMsg{capReached: isCapError(err)}
	}
}

// deleteConversationCmd deletes a conversation and refreshes the list.
func (m Model) deleteConversationCmd(id string) tea.Cmd {
	return func() tea.Msg {
		m.ctrl.DeleteConversation(context.Background(), id)
		return conversationChangedMsg{}
	}
}

// renameConversationCmd renames a conversation.
func (m Model) renameConversationCmd(id, title string) tea.Cmd {
	return func() tea.Msg {
		m.ctrl.RenameConversation(context.Background(), id, title)
		return conversationChangedMsg{}
	}
}

// saveLocationCmd favorites the selected result.
func (m Model) saveLocationCmd(siteID, name string) tea.Cmd {
	return func() tea.Msg {
		err := m.ctrl.SaveLocation(context.Background(), siteID)
		return saveDoneMsg{name: name, err: err}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/cospa-vn/cospa-tui/internal/model"
	"github.com/cospa-vn/cospa-tui/internal/ui/components"
	"github.com/cospa-vn/cospa-tui/internal/util"
)

// View renders the whole screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Đang khởi động..."
	}

	switch m.overlay {
	case overlayPicker, overlayRename:
		return m.viewPicker()
	case overlayLimit:
		return m.viewLimitPrompt()
	case overlayUpgrade:
		return m.viewUpgradeNotice()
	case overlayCities:
		return m.viewCityPicker()
	case overlayHelp:
		return m.viewHelp()
	}

	header := m.viewHeader()
	statusBar := components.RenderStatusBar(m.theme, components.StatusInfo{
		ConversationTitle: m.ctrl.ActiveConversationTitle(),
		Authenticated:     m.ctrl.Authenticated(),
		QuotaRemaining:    m.ctrl.QuotaRemaining(),
		MapCenter:         m.ctrl.MapCenter(),
		Notice:            m.ctrl.Notice(),
	}, m.width)

	chatPane := m.viewport.View()
	main := chatPane
	if w := m.resultsPaneWidth(); w > 0 {
		main = lipgloss.JoinHorizontal(lipgloss.Top, chatPane, m.viewResults(w))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		main,
		statusBar,
		m.viewInputRow(),
	)
}

// viewHeader renders the one-line brand header.
func (m Model) viewHeader() string {
	brand := m.theme.HeaderBrand.Render("☕ CoSpa")
	meta := m.theme.HeaderMeta.Render("tìm quán cafe & không gian làm việc")
	return m.theme.Header.Width(m.width).Render(brand + "  " + meta)
}

// viewInputRow renders the input line, the spinner while loading, and any
// transient status message.
func (m Model) viewInputRow() string {
	if m.ctrl.IsLoading() {
		return m.theme.InputContainer.Width(m.width).Render(
			m.spinner.View() + m.theme.ThinkingText.Render(" CoSpa đang suy nghĩ..."))
	}

	row := m.input.View()
	if m.statusMsg != "" && time.Now().Before(m.statusUntil) {
		row += "  " + m.statusMsg
	}
	return m.theme.InputContainer.Width(m.width).Render(row)
}

// viewResults renders the location cards side pane.
func (m Model) viewResults(width int) string {
	locs := m.ctrl.Locations()

	var b strings.Builder
	b.WriteString(m.theme.OverlayTitle.Render(fmt.Sprintf("Kết quả (%d)", len(locs))))
	b.WriteString("\n")

	if len(locs) == 0 {
		b.WriteString(m.theme.CardMeta.Render("Chưa có kết quả.\nHỏi CoSpa để tìm địa điểm."))
	}

	cardWidth := width - 4
	maxCards := (m.viewport.Height - 1) / 7 // rough card height with border
	if maxCards < 1 {
		maxCards = 1
	}

	// Keep the selected card visible within the pane.
	start := 0
	if m.resultIndex >= maxCards {
		start = m.resultIndex - maxCards + 1
	}
	for i := start; i < len(locs) && i < start+maxCards; i++ {
		b.WriteString(components.RenderLocationCard(m.theme, locs[i], cardWidth, i == m.resultIndex))
		b.WriteString("\n")
	}

	return m.theme.ResultsPane.
		Width(width - 1).
		Height(m.viewport.Height).
		MaxHeight(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// MESSAGE RENDERING
// =============================================================================

// refreshViewport re-renders the message transcript into the viewport.
func (m *Model) refreshViewport() {
	msgs := m.ctrl.Messages()
	width := m.chatPaneWidth()
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	for i, msg := range msgs {
		b.WriteString(m.renderMessage(msg, width))
		if i < len(msgs)-1 {
			b.WriteString("\n")
		}
	}
	m.viewport.SetContent(b.String())
}

// renderMessage renders one message bubble with its role label.
func (m Model) renderMessage(msg model.Message, width int) string {
	label := m.theme.RoleLabel.Render(msg.Role.DisplayName())

	content := msg.Content
	if msg.Role == model.RoleAssistant && m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	}

	bubble := m.theme.AssistantBubble
	if msg.Role == model.RoleUser {
		bubble = m.theme.UserBubble
	}

	body := bubble.MaxWidth(width - 2).Render(content)
	out := label + "\n" + body
	if msg.HasLocations() {
		out += "\n" + m.theme.CardMeta.Render(
			fmt.Sprintf("  ↳ %d địa điểm trong khung kết quả", len(msg.Locations)))
	}
	return out + "\n"
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m Model) viewPicker() string {
	convs := m.ctrl.Conversations()

	var body string
	if len(convs) == 0 {
		body = m.theme.CardMeta.Render("Chưa có cuộc hội thoại nào.")
	} else {
		items := make([]string, len(convs))
		for i, conv := range convs {
			title := util.TruncateWidth(conv.GetTitle(), 36)
			meta := m.theme.ListItemMeta.Render(fmt.Sprintf(" (%d tin nhắn)", conv.MessageCount))
			if conv.ID == m.ctrl.ConversationID() {
				title = "● " + title
			}
			items[i] = title + meta
		}
		body = components.RenderList(m.theme, items, m.pickerIndex)
	}

	if m.overlay == overlayRename {
		body += "\n\n" + m.renameInput.View()
	} else {
		body += "\n\n" + m.theme.PromptKeys.Render("enter") + m.theme.PromptText.Render(" chọn  ") +
			m.theme.PromptKeys.Render("n") + m.theme.PromptText.Render(" mới  ") +
			m.theme.PromptKeys.Render("d") + m.theme.PromptText.Render(" xóa  ") +
			m.theme.PromptKeys.Render("r") + m.theme.PromptText.Render(" đổi tên  ") +
			m.theme.PromptKeys.Render("esc") + m.theme.PromptText.Render(" đóng")
	}

	return components.RenderOverlay(m.theme, "Cuộc hội thoại", body, m.width, m.height)
}

func (m Model) viewLimitPrompt() string {
	body := m.theme.PromptText.Render("Cuộc hội thoại đã đạt giới hạn 10 tin nhắn.\nTạo cuộc hội thoại mới?") +
		"\n\n" +
		m.theme.PromptKeys.Render("y") + m.theme.PromptText.Render(" tạo mới    ") +
		m.theme.PromptKeys.Render("n") + m.theme.PromptText.Render(" giữ lại")
	return components.RenderOverlay(m.theme, "Giới hạn tin nhắn", body, m.width, m.height)
}

func (m Model) viewUpgradeNotice() string {
	body := m.theme.PromptText.Render("Bạn đã đạt giới hạn 3 cuộc hội thoại.\n\n"+
		"Vui lòng liên hệ admin để nâng cấp tài khoản\nvà sử dụng không giới hạn cuộc hội thoại.") +
		"\n\n" + m.theme.ListItemMeta.Render("nhấn phím bất kỳ để đóng")
	return components.RenderOverlay(m.theme, "Nâng cấp tài khoản", body, m.width, m.height)
}

func (m Model) viewCityPicker() string {
	items := make([]string, len(model.Cities))
	for i, city := range model.Cities {
		items[i] = city.Name
	}
	body := components.RenderList(m.theme, items, m.cityIndex) +
		"\n\n" + m.theme.ListItemMeta.Render("enter chọn · esc đóng")
	return components.RenderOverlay(m.theme, "Chọn thành phố", body, m.width, m.height)
}

func (m Model) viewHelp() string {
	bindings := []struct{ keys, desc string }{
		{"Enter", "gửi tin nhắn"},
		{"C-o", "danh sách hội thoại"},
		{"C-n", "hội thoại mới"},
		{"C-t", "chọn thành phố"},
		{"C-b", "ẩn/hiện khung kết quả"},
		{"C-← / C-→", "điều chỉnh khung kết quả"},
		{"C-j / C-k", "chọn địa điểm"},
		{"C-s", "lưu địa điểm đã chọn"},
		{"PgUp / PgDn", "cuộn hội thoại"},
		{"C-c", "thoát"},
	}

	var b strings.Builder
	for _, bind := range bindings {
		b.WriteString(m.theme.PromptKeys.Render(fmt.Sprintf("%-12s", bind.keys)))
		b.WriteString(m.theme.PromptText.Render(bind.desc))
		b.WriteString("\n")
	}
	return components.RenderOverlay(m.theme, "Phím tắt", strings.TrimRight(b.String(), "\n"), m.width, m.height)
}

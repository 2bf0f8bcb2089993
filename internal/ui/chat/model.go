// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/cospa-vn/cospa-tui/internal/model"
	"github.com/cospa-vn/cospa-tui/internal/session"
	"github.com/cospa-vn/cospa-tui/internal/ui/styles"
)

// =============================================================================
// OVERLAY STATE
// =============================================================================

// overlay identifies which modal overlay, if any, is on screen.
type overlay int

const (
	overlayNone    overlay = iota
	overlayPicker          // conversation list
	overlayRename          // rename input inside the picker
	overlayLimit           // message-limit y/n prompt
	overlayUpgrade         // conversation-cap upsell
	overlayCities          // city picker
	overlayHelp            // key binding reference
)

// Split ratio bounds for the results pane, in percent of the terminal width.
const (
	minSplitPercent  = 30
	maxSplitPercent  = 70
	splitStepPercent = 5
)

const inputCharLimit = 1024

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the cospa TUI.
type Model struct {
	ctrl  *session.Controller
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	// Key bindings
	keyMap KeyMap

	// Layout
	splitPercent int  // results pane width, percent of terminal
	showResults  bool // results pane visible

	// Overlay state
	overlay     overlay
	pickerIndex int
	cityIndex   int
	renameInput textinput.Model
	renameID    string

	// Results selection
	resultIndex int

	// Transient feedback shown in the input row
	statusMsg   string
	statusUntil time.Time
}

// New creates the chat model around an initialized controller.
func New(ctrl *session.Controller, theme *styles.Theme, splitPercent int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Hỏi về địa điểm (ví dụ: 'Coworking space ở Hà Nội có cà phê ngon')..."
	ti.CharLimit = inputCharLimit
	ti.Focus()

	ri := textinput.New()
	ri.Prompt = "Tên mới: "
	ri.CharLimit = 120

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(76),
	)
	if err != nil {
		renderer = nil // fall back to plain text rendering
	}

	if splitPercent < minSplitPercent || splitPercent > maxSplitPercent {
		splitPercent = 40
	}

	return Model{
		ctrl:         ctrl,
		theme:        theme,
		viewport:     vp,
		input:        ti,
		renameInput:  ri,
		spinner:      sp,
		renderer:     renderer,
		keyMap:       DefaultKeyMap(),
		splitPercent: splitPercent,
		showResults:  true,
	}
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts background initialization and the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initCmd())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		if !m.ctrl.IsLoading() {
			return m, nil
		}
		// Keep the optimistic user message on screen while waiting.
		m.refreshViewport()
		m.viewport.GotoBottom()
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case initDoneMsg:
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case sendDoneMsg:
		return m.handleSendDone(msg)

	case conversationChangedMsg:
		if msg.capReached {
			m.overlay = overlayUpgrade
		}
		m.resultIndex = 0
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case saveDoneMsg:
		if msg.err != nil {
			m.setStatus(m.theme.ErrorText.Render(friendlySaveError(msg.err)))
		} else {
			m.setStatus(m.theme.SuccessText.Render("Đã lưu " + msg.name))
		}
		return m, nil
	}

	return m.updateComponents(msg)
}

// handleSendDone reacts to a finished send.
func (m Model) handleSendDone(msg sendDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		// Blank input or a send already in flight; nothing to redraw.
		return m, nil
	}
	if msg.result.Stale {
		return m, nil
	}
	if msg.result.MessageLimit {
		m.overlay = overlayLimit
		return m, nil
	}
	m.resultIndex = 0
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, nil
}

// handleKey routes a key press to the active overlay or the main view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keyMap.Quit) {
		return m, tea.Quit
	}

	switch m.overlay {
	case overlayPicker:
		return m.handlePickerKey(msg)
	case overlayRename:
		return m.handleRenameKey(msg)
	case overlayLimit:
		return m.handleLimitKey(msg)
	case overlayUpgrade:
		m.overlay = overlayNone
		return m, nil
	case overlayCities:
		return m.handleCitiesKey(msg)
	case overlayHelp:
		m.overlay = overlayNone
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keyMap.Submit):
		// A send is already in flight: keep the typed text in the input
		// instead of clearing it into a guaranteed-busy controller.
		if m.ctrl.IsLoading() {
			return m, nil
		}
		text := m.input.Value()
		m.input.Reset()
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, tea.Batch(m.sendCmd(text), m.spinner.Tick)

	case key.Matches(msg, m.keyMap.Conversations):
		m.overlay = overlayPicker
		m.pickerIndex = 0
		return m, nil

	case key.Matches(msg, m.keyMap.NewConv):
		return m, m.createConversationCmd()

	case key.Matches(msg, m.keyMap.Cities):
		m.overlay = overlayCities
		m.cityIndex = 0
		return m, nil

	case key.Matches(msg, m.keyMap.ToggleResults):
		m.showResults = !m.showResults
		m.resize()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keyMap.NarrowSplit):
		m.splitPercent = clampSplit(m.splitPercent - splitStepPercent)
		m.resize()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keyMap.WidenSplit):
		m.splitPercent = clampSplit(m.splitPercent + splitStepPercent)
		m.resize()
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keyMap.NextResult):
		m.moveResultSelection(1)
		return m, nil

	case key.Matches(msg, m.keyMap.PrevResult):
		m.moveResultSelection(-1)
		return m, nil

	case key.Matches(msg, m.keyMap.SaveResult):
		locs := m.ctrl.Locations()
		if len(locs) == 0 {
			return m, nil
		}
		loc := locs[m.resultIndex]
		return m, m.saveLocationCmd(loc.ID, loc.Name)

	case key.Matches(msg, m.keyMap.ScrollUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.ScrollDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keyMap.Help):
		m.overlay = overlayHelp
		return m, nil
	}

	return m.updateComponents(msg)
}

// handlePickerKey drives the conversation picker overlay.
func (m Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	convs := m.ctrl.Conversations()

	switch msg.String() {
	case "esc":
		m.overlay = overlayNone
	case "up", "k":
		if m.pickerIndex > 0 {
			m.pickerIndex--
		}
	case "down", "j":
		if m.pickerIndex < len(convs)-1 {
			m.pickerIndex++
		}
	case "enter":
		m.overlay = overlayNone
		if m.pickerIndex < len(convs) {
			return m, m.selectConversationCmd(convs[m.pickerIndex].ID)
		}
	case "n":
		m.overlay = overlayNone
		return m, m.createConversationCmd()
	case "d":
		if m.pickerIndex < len(convs) {
			id := convs[m.pickerIndex].ID
			if m.pickerIndex > 0 {
				m.pickerIndex--
			}
			return m, m.deleteConversationCmd(id)
		}
	case "r":
		if m.pickerIndex < len(convs) {
			m.overlay = overlayRename
			m.renameID = convs[m.pickerIndex].ID
			m.renameInput.SetValue(convs[m.pickerIndex].GetTitle())
			m.renameInput.Focus()
			m.input.Blur()
		}
	}
	return m, nil
}

// handleRenameKey drives the rename input inside the picker.
func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.overlay = overlayPicker
		m.renameInput.Blur()
		m.input.Focus()
		return m, nil
	case "enter":
		title := m.renameInput.Value()
		id := m.renameID
		m.overlay = overlayNone
		m.renameInput.Blur()
		m.input.Focus()
		return m, m.renameConversationCmd(id, title)
	}

	var cmd tea.Cmd
	m.renameInput, cmd = m.renameInput.Update(msg)
	return m, cmd
}

// handleLimitKey drives the message-limit y/n prompt.
func (m Model) handleLimitKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.overlay = overlayNone
		return m, m.startAfterLimitCmd()
	case "n", "N", "esc":
		m.overlay = overlayNone
		m.ctrl.DeclineNewConversation()
		m.refreshViewport()
		m.viewport.GotoBottom()
	}
	return m, nil
}

// handleCitiesKey drives the city picker overlay.
func (m Model) handleCitiesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.overlay = overlayNone
	case "up", "k":
		if m.cityIndex > 0 {
			m.cityIndex--
		}
	case "down", "j":
		if m.cityIndex < len(model.Cities)-1 {
			m.cityIndex++
		}
	case "enter":
		m.overlay = overlayNone
		m.ctrl.SetMapCenter(model.Cities[m.cityIndex].Center)
	}
	return m, nil
}

// updateComponents forwards remaining messages to the focused components.
func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// =============================================================================
// HELPERS
// =============================================================================

// moveResultSelection moves the selected card, recentering the map on it.
func (m *Model) moveResultSelection(delta int) {
	locs := m.ctrl.Locations()
	if len(locs) == 0 {
		return
	}
	m.resultIndex += delta
	if m.resultIndex < 0 {
		m.resultIndex = 0
	}
	if m.resultIndex >= len(locs) {
		m.resultIndex = len(locs) - 1
	}
	m.ctrl.SetMapCenter(locs[m.resultIndex].Coordinates)
}

// resize recomputes pane dimensions after a size or layout change.
func (m *Model) resize() {
	chatWidth := m.chatPaneWidth()
	m.viewport.Width = chatWidth
	// Header, status bar, and the input row are fixed-height chrome.
	m.viewport.Height = m.height - 4
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.input.Width = chatWidth - 4

	if m.renderer != nil && chatWidth > 8 {
		if r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(chatWidth-8),
		); err == nil {
			m.renderer = r
		}
	}
}

// chatPaneWidth returns the width allotted to the chat pane.
func (m Model) chatPaneWidth() int {
	if !m.showResults || m.width < 60 {
		return m.width
	}
	return m.width - m.resultsPaneWidth()
}

// resultsPaneWidth returns the width allotted to the results pane.
func (m Model) resultsPaneWidth() int {
	if !m.showResults || m.width < 60 {
		return 0
	}
	return m.width * m.splitPercent / 100
}

// setStatus shows a transient message near the input for a few seconds.
func (m *Model) setStatus(s string) {
	m.statusMsg = s
	m.statusUntil = time.Now().Add(4 * time.Second)
}

func clampSplit(p int) int {
	if p < minSplitPercent {
		return minSplitPercent
	}
	if p > maxSplitPercent {
		return maxSplitPercent
	}
	return p
}

func friendlySaveError(err error) string {
	if errors.Is(err, session.ErrSignInRequired) {
		return "Vui lòng đăng nhập để lưu địa điểm"
	}
	return "Không lưu được địa điểm. Vui lòng thử lại."
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App       lipgloss.Style
	Container lipgloss.Style

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderMeta  lipgloss.Style

	// ==========================================================================
	// MESSAGE BUBBLE STYLES
	// ==========================================================================

	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	RoleLabel       lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusKey    lipgloss.Style
	StatusValue  lipgloss.Style
	QuotaOK      lipgloss.Style
	QuotaLow     lipgloss.Style
	StatusNotice lipgloss.Style

	// ==========================================================================
	// RESULTS PANE STYLES
	// ==========================================================================

	ResultsPane      lipgloss.Style
	CardBox          lipgloss.Style
	CardBoxSelected  lipgloss.Style
	CardName         lipgloss.Style
	CardCategory     lipgloss.Style
	CardRating       lipgloss.Style
	CardMeta         lipgloss.Style
	CardAmenity      lipgloss.Style
	SponsoredTag     lipgloss.Style
	OpenTag          lipgloss.Style

	// ==========================================================================
	// OVERLAY STYLES
	// ==========================================================================

	OverlayBox       lipgloss.Style
	OverlayTitle     lipgloss.Style
	ListItem         lipgloss.Style
	ListItemSelected lipgloss.Style
	ListItemMeta     lipgloss.Style
	PromptText       lipgloss.Style
	PromptKeys       lipgloss.Style

	// ==========================================================================
	// FEEDBACK STYLES
	// ==========================================================================

	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ErrorText    lipgloss.Style
	SuccessText  lipgloss.Style
}

// NewTheme creates a new theme with all styles configured, detecting the
// terminal background automatically.
func NewTheme() *Theme {
	return NewThemeForMode("")
}

// NewThemeForMode forces the palette variant ("dark" or "light"); any other
// value falls back to terminal auto-detection. The adaptive colors resolve
// through lipgloss's background flag, so it is set to match.
func NewThemeForMode(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	isDark := termenv.HasDarkBackground()
	switch mode {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle()
	t.Container = lipgloss.NewStyle().Padding(0, 1)

	// Header
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Espresso).
		Background(SurfaceDim).
		Padding(0, 2)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Espresso)

	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 2).
		MarginLeft(4)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 2).
		MarginRight(4)

	t.RoleLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusKey = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.StatusValue = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.QuotaOK = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.QuotaLow = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.StatusNotice = lipgloss.NewStyle().
		Foreground(Rose)

	// Results pane
	t.ResultsPane = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.CardBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.CardBoxSelected = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Espresso).
		Padding(0, 1)

	t.CardName = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.CardCategory = lipgloss.NewStyle().
		Foreground(Teal)

	t.CardRating = lipgloss.NewStyle().
		Foreground(Amber)

	t.CardMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.CardAmenity = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.SponsoredTag = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true)

	t.OpenTag = lipgloss.NewStyle().
		Foreground(Emerald)

	// Overlays
	t.OverlayBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Espresso).
		Padding(1, 2)

	t.OverlayTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Espresso)

	t.ListItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1)

	t.ListItemSelected = lipgloss.NewStyle().
		Foreground(Surface).
		Background(Espresso).
		Bold(true).
		Padding(0, 1)

	t.ListItemMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.PromptText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.PromptKeys = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	// Feedback
	t.Spinner = lipgloss.NewStyle().
		Foreground(Espresso)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)

	t.SuccessText = lipgloss.NewStyle().
		Foreground(Emerald)
}

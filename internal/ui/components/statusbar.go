// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/cospa-vn/cospa-tui/internal/model"
	"github.com/cospa-vn/cospa-tui/internal/ui/styles"
	"github.com/cospa-vn/cospa-tui/internal/util"
)

// StatusInfo carries everything the status bar displays.
type StatusInfo struct {
	ConversationTitle string
	Authenticated     bool
	QuotaRemaining    int
	MapCenter         model.Coordinates
	Notice            string
}

// RenderStatusBar renders the one-line status bar for the given width.
func RenderStatusBar(theme *styles.Theme, info StatusInfo, width int) string {
	var parts []string

	parts = append(parts,
		theme.StatusKey.Render("hội thoại")+" "+
			theme.StatusValue.Render(util.TruncateWidth(info.ConversationTitle, 24)))

	if info.Authenticated {
		parts = append(parts, theme.QuotaOK.Render("không giới hạn"))
	} else {
		quota := theme.QuotaOK
		if info.QuotaRemaining <= 1 {
			quota = theme.QuotaLow
		}
		parts = append(parts, quota.Render(fmt.Sprintf("còn %d lượt", info.QuotaRemaining)))
	}

	parts = append(parts,
		theme.StatusKey.Render("bản đồ")+" "+
			theme.StatusValue.Render(centerLabel(info.MapCenter)))

	if info.Notice != "" {
		parts = append(parts, theme.StatusNotice.Render(util.TruncateWidth(util.FirstLine(info.Notice), 40)))
	}

	bar := strings.Join(parts, theme.StatusValue.Render("  │  "))
	return theme.StatusBar.Width(width).MaxWidth(width).Render(bar)
}

// centerLabel names the map center after the nearest city preset, falling
// back to raw coordinates.
func centerLabel(center model.Coordinates) string {
	const closeEnough = 0.25 // degrees, roughly city-scale

	best := -1
	bestDist := closeEnough
	for i, city := range model.Cities {
		d := absFloat(city.Center.Lat-center.Lat) + absFloat(city.Center.Lng-center.Lng)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	if best >= 0 {
		return model.Cities[best].Name
	}
	return fmt.Sprintf("%.4f, %.4f", center.Lat, center.Lng)
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

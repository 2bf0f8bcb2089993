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

// maxAmenitiesShown caps the amenity line so cards stay compact.
const maxAmenitiesShown = 4

// RenderLocationCard renders one location result as a bordered card of the
// given inner width. The selected card gets the accent border.
func RenderLocationCard(theme *styles.Theme, loc model.LocationResult, width int, selected bool) string {
	if width < 10 {
		width = 10
	}

	var b strings.Builder

	name := theme.CardName.Render(util.TruncateWidth(loc.Name, width))
	b.WriteString(name)
	b.WriteString("\n")

	category := theme.CardCategory.Render(string(loc.Category))
	tags := []string{category}
	if loc.Sponsored {
		tags = append(tags, theme.SponsoredTag.Render("Tài trợ"))
	}
	if loc.Open {
		tags = append(tags, theme.OpenTag.Render("Đang mở"))
	}
	b.WriteString(strings.Join(tags, " · "))
	b.WriteString("\n")

	rating := theme.CardRating.Render(fmt.Sprintf("★ %.1f", loc.Rating))
	reviews := theme.CardMeta.Render(fmt.Sprintf("(%d đánh giá)", loc.ReviewCount))
	line := rating + " " + reviews
	if loc.Distance != "" {
		line += theme.CardMeta.Render(" · " + loc.Distance)
	}
	b.WriteString(line)
	b.WriteString("\n")

	b.WriteString(theme.CardMeta.Render(util.TruncateWidth(loc.Address, width)))

	if len(loc.Amenities) > 0 {
		shown := loc.Amenities
		extra := 0
		if len(shown) > maxAmenitiesShown {
			extra = len(shown) - maxAmenitiesShown
			shown = shown[:maxAmenitiesShown]
		}
		amenities := strings.Join(shown, ", ")
		if extra > 0 {
			amenities += fmt.Sprintf(" +%d", extra)
		}
		b.WriteString("\n")
		b.WriteString(theme.CardAmenity.Render(util.TruncateWidth(amenities, width)))
	}

	box := theme.CardBox
	if selected {
		box = theme.CardBoxSelected
	}
	return box.Width(width).Render(b.String())
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/cospa-vn/cospa-tui/internal/model"
	"github.com/cospa-vn/cospa-tui/internal/ui/styles"
)

func testLocation() model.LocationResult {
	return model.LocationResult{
		ID:          "loc_1",
		Name:        "Tranquil Books & Coffee",
		Category:    model.CategoryCafe,
		Rating:      4.6,
		ReviewCount: 128,
		Address:     "5 Nguyễn Quang Bích, Hà Nội",
		Distance:    "1.2 km",
		Amenities:   []string{"wifi", "ổ cắm", "yên tĩnh", "máy lạnh", "bãi đỗ xe"},
		Open:        true,
		Coordinates: model.Coordinates{Lat: 21.03, Lng: 105.84},
	}
}

func TestRenderLocationCard(t *testing.T) {
	theme := styles.NewTheme()
	out := RenderLocationCard(theme, testLocation(), 40, false)

	if !strings.Contains(out, "Tranquil Books & Coffee") {
		t.Error("card missing name")
	}
	if !strings.Contains(out, "4.6") {
		t.Error("card missing rating")
	}
	if !strings.Contains(out, "128") {
		t.Error("card missing review count")
	}
	// Five amenities collapse to four plus a counter.
	if !strings.Contains(out, "+1") {
		t.Error("card missing amenity overflow counter")
	}
}

func TestRenderLocationCard_Sponsored(t *testing.T) {
	theme := styles.NewTheme()
	loc := testLocation()
	loc.Sponsored = true

	out := RenderLocationCard(theme, loc, 40, true)
	if !strings.Contains(out, "Tài trợ") {
		t.Error("sponsored card missing tag")
	}
}

func TestRenderStatusBar(t *testing.T) {
	theme := styles.NewTheme()
	out := RenderStatusBar(theme, StatusInfo{
		ConversationTitle: "Cuộc hội thoại",
		QuotaRemaining:    2,
		MapCenter:         model.DefaultCenter,
	}, 100)

	if !strings.Contains(out, "còn 2 lượt") {
		t.Error("status bar missing quota")
	}
	// Default center is in Hà Nội.
	if !strings.Contains(out, "Hà Nội") {
		t.Error("status bar missing city label")
	}
}

func TestRenderStatusBar_Authenticated(t *testing.T) {
	theme := styles.NewTheme()
	out := RenderStatusBar(theme, StatusInfo{
		ConversationTitle: "Cuộc hội thoại",
		Authenticated:     true,
		MapCenter:         model.Coordinates{Lat: 0, Lng: 0},
	}, 100)

	if !strings.Contains(out, "không giới hạn") {
		t.Error("status bar should show unlimited for signed-in users")
	}
	if !strings.Contains(out, "0.0000") {
		t.Error("status bar should fall back to raw coordinates")
	}
}

func TestRenderList(t *testing.T) {
	theme := styles.NewTheme()
	out := RenderList(theme, []string{"một", "hai", "ba"}, 1)

	for _, item := range []string{"một", "hai", "ba"} {
		if !strings.Contains(out, item) {
			t.Errorf("list missing item %q", item)
		}
	}
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// COORDINATES
// =============================================================================

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultCenter is the fallback map center: the Hanoi Opera House.
var DefaultCenter = Coordinates{Lat: 21.0254, Lng: 105.8564}

// City is a supported city preset for centering the search.
type City struct {
	Name   string
	Center Coordinates
}

// Cities lists the cities the backend has coverage for.
var Cities = []City{
	{Name: "Hà Nội", Center: Coordinates{Lat: 21.0285, Lng: 105.8542}},
	{Name: "Quảng Ninh", Center: Coordinates{Lat: 21.0064, Lng: 107.2925}},
	{Name: "Hải Phòng", Center: Coordinates{Lat: 20.8449, Lng: 106.6881}},
	{Name: "TP. Hồ Chí Minh", Center: Coordinates{Lat: 10.8231, Lng: 106.6297}},
}

// =============================================================================
// LOCATION RESULT
// =============================================================================

// Category classifies a location result.
type Category string

const (
	CategoryCafe      Category = "Cafe"
	CategoryCoworking Category = "Coworking"
	CategoryOffice    Category = "Office"
	CategoryLibrary   Category = "Library"
)

// DefaultImageURL is used when the backend returns no thumbnail for a result.
const DefaultImageURL = "https://picsum.photos/400/300"

// LocationResult is a point of interest returned by the assistant for a query.
// Results are immutable once created and always stay attached to the assistant
// message that produced them.
type LocationResult struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    Category    `json:"type"`
	Brand       string      `json:"brand,omitempty"`
	Rating      float64     `json:"rating"`
	ReviewCount int         `json:"reviewCount"`
	Address     string      `json:"address"`
	Distance    string      `json:"distance"`
	ImageURL    string      `json:"imageUrl"`
	Coordinates Coordinates `json:"coordinates"`
	Amenities   []string    `json:"amenities"`
	Sponsored   bool        `json:"isSponsored,omitempty"`
	Open        bool        `json:"isOpen,omitempty"`
	Description string      `json:"description,omitempty"`
	PhoneNumber string      `json:"phoneNumber,omitempty"`
	GoogleLink  string      `json:"linkGoogle,omitempty"`
	WebLink     string      `json:"linkWeb,omitempty"`
}

// Image returns the thumbnail URL, falling back to the default when absent.
func (l LocationResult) Image() string {
	if l.ImageURL == "" {
		return DefaultImageURL
	}
	return l.ImageURL
}

// UnionLocations collects the location results attached to the given messages
// in message order. Used when switching conversations: the map shows the union
// of everything the conversation produced, centered on the last result.
func UnionLocations(messages []Message) []LocationResult {
	var all []LocationResult
	for _, msg := range messages {
		all = append(all, msg.Locations...)
	}
	return all
}

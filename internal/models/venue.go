package models

import (
	"math"
)

// BudgetTier is the coarse price classification attached to every venue.
type BudgetTier string

const (
	BudgetCheap     BudgetTier = "cheap"
	BudgetMid       BudgetTier = "mid"
	BudgetExpensive BudgetTier = "expensive"
)

// Venue is the canonical normalized record for a point of interest.
// Every provider adapter maps its upstream payload into this shape at
// the normalization boundary; nothing dict-shaped crosses layers.
type Venue struct {
	ID           string     `json:"id"`   // source-scoped, e.g. "osm:way:12345"
	Name         string     `json:"name"` // falls back to "Unnamed"
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	Address      string     `json:"address"`
	Category     string     `json:"category"` // restaurant, cafe, fast_food, museum, ...
	Cuisine      string     `json:"cuisine,omitempty"`
	BudgetTier   BudgetTier `json:"budget_tier"`
	Website      string     `json:"website,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Rating       float64    `json:"rating,omitempty"`
	SourceURL    string     `json:"source_url,omitempty"`
	Provider     string     `json:"provider"`
	QualityScore float64    `json:"quality_score"`
	Tags         []string   `json:"tags,omitempty"` // free-text tag blob used by the cuisine filter
}

// HasFiniteCoordinates reports whether the venue carries a usable (lat, lon)
// pair. Records failing this check are dropped before dedup.
func (v Venue) HasFiniteCoordinates() bool {
	if math.IsNaN(v.Latitude) || math.IsInf(v.Latitude, 0) {
		return false
	}
	if math.IsNaN(v.Longitude) || math.IsInf(v.Longitude, 0) {
		return false
	}
	if v.Latitude == 0 && v.Longitude == 0 {
		return false
	}
	return v.Latitude >= -90 && v.Latitude <= 90 && v.Longitude >= -180 && v.Longitude <= 180
}

// BoundingBox is always in canonical (south, west, north, east) ordering,
// regardless of the upstream geocoder's native convention.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() (lat, lon float64) {
	return (b.South + b.North) / 2, (b.West + b.East) / 2
}

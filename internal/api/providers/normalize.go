package providers

import (
	"fmt"

	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

// budgetFromAmenity derives a neutral budget tier from the coarse venue type
// when the source carries no price signal.
func budgetFromAmenity(amenity string) models.BudgetTier {
	switch amenity {
	case "fast_food":
		return models.BudgetCheap
	case "cafe":
		return models.BudgetCheap
	default:
		return models.BudgetMid
	}
}

// budgetFromPriceLevel maps a Google-style 0–4 price level to a tier.
// A negative level means "unknown".
func budgetFromPriceLevel(level int) models.BudgetTier {
	switch {
	case level < 0:
		return models.BudgetMid
	case level <= 1:
		return models.BudgetCheap
	case level == 2:
		return models.BudgetMid
	default:
		return models.BudgetExpensive
	}
}

// fallbackAddress synthesizes a display address from coordinates when the
// source has no address tags at all. The orchestrator may later replace it
// via reverse geocoding.
func fallbackAddress(lat, lon float64) string {
	return fmt.Sprintf("near (%.5f, %.5f)", lat, lon)
}

// finishVenue applies the normalization invariants every adapter must hold:
// name fallback, guaranteed budget tier, synthesized address, and a
// completeness-adjusted quality score clamped to [0,1].
func finishVenue(v models.Venue, baseQuality float64) models.Venue {
	if v.Name == "" {
		v.Name = "Unnamed"
	}
	if v.BudgetTier == "" {
		v.BudgetTier = models.BudgetMid
	}
	if v.Address == "" {
		v.Address = fallbackAddress(v.Latitude, v.Longitude)
	}

	score := baseQuality
	if v.Website != "" {
		score += 0.04
	}
	if v.Phone != "" {
		score += 0.04
	}
	if v.Cuisine != "" {
		score += 0.04
	}
	if v.Rating > 0 {
		score += 0.03
	}
	if score > 1 {
		score = 1
	}
	v.QualityScore = score
	return v
}

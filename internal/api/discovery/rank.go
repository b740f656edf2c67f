package discovery

import (
	"sort"
	"strings"

	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

// ranker applies chain exclusion, the cuisine keyword filter and the
// budget-friendly-first sort order.
type ranker struct {
	chainDenylist []string
}

// ExcludeChains drops venues whose name contains a known chain substring,
// case-insensitive. Deliberately blunt: a local place whose name happens to
// contain a chain substring is an accepted false positive.
func (r ranker) ExcludeChains(venues []models.Venue) []models.Venue {
	kept := make([]models.Venue, 0, len(venues))
	for _, v := range venues {
		if r.isChain(v.Name) {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}

func (r ranker) isChain(name string) bool {
	lower := strings.ToLower(name)
	for _, chain := range r.chainDenylist {
		if strings.Contains(lower, strings.ToLower(chain)) {
			return true
		}
	}
	return false
}

// FilterCuisine keeps venues matching the requested cuisine. The request
// token is singularized and matched against the explicit cuisine tag, the
// free-text tag blob, or in reverse (venue cuisine found within the request),
// any one match being sufficient.
func (r ranker) FilterCuisine(venues []models.Venue, cuisine string) []models.Venue {
	want := singularize(strings.ToLower(cuisine))
	if want == "" {
		return venues
	}

	kept := make([]models.Venue, 0, len(venues))
	for _, v := range venues {
		if matchesCuisine(v, want) {
			kept = append(kept, v)
		}
	}
	return kept
}

func matchesCuisine(v models.Venue, want string) bool {
	venueCuisine := strings.ToLower(v.Cuisine)
	if strings.Contains(venueCuisine, want) {
		return true
	}
	// Reverse match: the venue's singularized cuisine tag appears in the
	// requested token ("burger" within "burgers" etc.).
	if venueCuisine != "" && strings.Contains(want, singularize(venueCuisine)) {
		return true
	}
	for _, tag := range v.Tags {
		if strings.Contains(strings.ToLower(tag), want) {
			return true
		}
	}
	return false
}

// singularize applies the simple suffix rules the cuisine filter relies on:
// "'s" is dropped, "ies" becomes "y", a trailing "s" is stripped.
func singularize(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "'s") {
		s = strings.TrimSuffix(s, "'s")
	}
	switch {
	case strings.HasSuffix(s, "ies") && len(s) > 3:
		return strings.TrimSuffix(s, "ies") + "y"
	case strings.HasSuffix(s, "ss"):
		return s
	case strings.HasSuffix(s, "s") && len(s) > 1:
		return strings.TrimSuffix(s, "s")
	}
	return s
}

// amenityPriority orders venue types cheapest-first; unknown categories sort
// last.
func amenityPriority(category string) int {
	switch category {
	case "fast_food":
		return 0
	case "cafe":
		return 1
	case "restaurant":
		return 2
	default:
		return 3
	}
}

func tierRank(t models.BudgetTier) int {
	switch t {
	case models.BudgetCheap:
		return 0
	case models.BudgetExpensive:
		return 2
	default: // mid and unknown
		return 1
	}
}

// Sort orders venues budget-friendly-first: amenity priority, then budget
// tier, then quality score descending as a stable final key.
func (r ranker) Sort(venues []models.Venue) {
	sort.SliceStable(venues, func(i, j int) bool {
		pi, pj := amenityPriority(venues[i].Category), amenityPriority(venues[j].Category)
		if pi != pj {
			return pi < pj
		}
		ti, tj := tierRank(venues[i].BudgetTier), tierRank(venues[j].BudgetTier)
		if ti != tj {
			return ti < tj
		}
		return venues[i].QualityScore > venues[j].QualityScore
	})
}

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

var testDenylist = []string{"mcdonald's", "subway", "burger king", "starbucks"}

func TestExcludeChains(t *testing.T) {
	r := ranker{chainDenylist: testDenylist}
	venues := []models.Venue{
		{Name: "Subway"},
		{Name: "SUBWAY Sandwiches #4021"},
		{Name: "Maria's Sushi Bar"},
		{Name: "Starbucks Coffee"},
		{Name: "The Codfish House"},
	}

	kept := r.ExcludeChains(venues)
	require.Len(t, kept, 2)
	assert.Equal(t, "Maria's Sushi Bar", kept[0].Name)
	assert.Equal(t, "The Codfish House", kept[1].Name)
}

func TestSingularize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"burgers", "burger"},
		{"bakeries", "bakery"},
		{"mcdonald's", "mcdonald"},
		{"sushi", "sushi"},
		{"swiss", "swiss"},
		{"tapas", "tapa"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, singularize(tt.in), "input %q", tt.in)
	}
}

func TestFilterCuisinePluralMatchesSingularTag(t *testing.T) {
	r := ranker{}
	venues := []models.Venue{
		{Name: "Burger Shack", Cuisine: "burger"},
		{Name: "Pasta Place", Cuisine: "italian"},
	}

	kept := r.FilterCuisine(venues, "burgers")
	require.Len(t, kept, 1)
	assert.Equal(t, "Burger Shack", kept[0].Name)
}

func TestFilterCuisineMatchesTagBlob(t *testing.T) {
	r := ranker{}
	venues := []models.Venue{
		{Name: "Sakura", Tags: []string{"cuisine=sushi;japanese", "amenity=restaurant"}},
		{Name: "O Forno", Tags: []string{"cuisine=portuguese"}},
	}

	kept := r.FilterCuisine(venues, "sushi")
	require.Len(t, kept, 1)
	assert.Equal(t, "Sakura", kept[0].Name)
}

func TestFilterCuisineReverseMatch(t *testing.T) {
	r := ranker{}
	// The venue's singular tag "taco" appears inside the requested "tacos".
	venues := []models.Venue{{Name: "El Paso", Cuisine: "taco"}}
	kept := r.FilterCuisine(venues, "tacos")
	assert.Len(t, kept, 1)
}

func TestSortBudgetFriendlyFirst(t *testing.T) {
	r := ranker{}
	venues := []models.Venue{
		{Name: "Fine Dining", Category: "restaurant", BudgetTier: models.BudgetExpensive},
		{Name: "Corner Cafe", Category: "cafe", BudgetTier: models.BudgetCheap},
		{Name: "Mid Restaurant", Category: "restaurant", BudgetTier: models.BudgetMid},
		{Name: "Museum", Category: "museum", BudgetTier: models.BudgetMid},
		{Name: "Quick Bites", Category: "fast_food", BudgetTier: models.BudgetCheap},
		{Name: "Cheap Restaurant", Category: "restaurant", BudgetTier: models.BudgetCheap},
	}

	r.Sort(venues)

	got := make([]string, len(venues))
	for i, v := range venues {
		got[i] = v.Name
	}
	assert.Equal(t, []string{
		"Quick Bites",     // fast_food beats everything
		"Corner Cafe",     // cafe next
		"Cheap Restaurant", // restaurants ordered by tier
		"Mid Restaurant",
		"Fine Dining",
		"Museum", // unknown amenity sorts last
	}, got)
}

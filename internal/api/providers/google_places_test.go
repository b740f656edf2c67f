package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

func TestGooglePlacesRequiresAPIKey(t *testing.T) {
	store, limiter := testDeps(t)
	_, err := NewGooglePlacesAdapter("https://example.invalid", "", store.Namespace("google_places"), limiter, testLogger())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestGooglePlacesNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Contains(t, r.URL.Query().Get("query"), "sushi")
		w.Write([]byte(`{"status":"OK","results":[
			{"place_id":"ChIJabc","name":"Sushi Yama",
			 "geometry":{"location":{"lat":41.15,"lng":-8.61}},
			 "formatted_address":"Rua Example 1, Porto","price_level":3,"rating":4.6,
			 "types":["restaurant","food","establishment"]},
			{"place_id":"ChIJdef","name":"Cheap Bites",
			 "geometry":{"location":{"lat":41.16,"lng":-8.62}},
			 "formatted_address":"Rua Example 2, Porto","price_level":1,
			 "types":["meal_takeaway"]},
			{"place_id":"ChIJghi","name":"No Price Info",
			 "geometry":{"location":{"lat":41.17,"lng":-8.63}},
			 "formatted_address":"Rua Example 3, Porto",
			 "types":["establishment"]}
		]}`))
	}))
	defer srv.Close()

	store, limiter := testDeps(t)
	a, err := NewGooglePlacesAdapter(srv.URL, "secret", store.Namespace("google_places"), limiter, testLogger())
	require.NoError(t, err)

	res := a.Discover(context.Background(), Query{City: "Porto", Cuisine: "sushi"})
	require.Equal(t, models.ProviderOK, res.Status)
	require.Len(t, res.Venues, 3)

	assert.Equal(t, "google:ChIJabc", res.Venues[0].ID)
	assert.Equal(t, models.BudgetExpensive, res.Venues[0].BudgetTier)
	assert.Equal(t, "restaurant", res.Venues[0].Category)
	assert.InDelta(t, 4.6, res.Venues[0].Rating, 1e-9)

	assert.Equal(t, models.BudgetCheap, res.Venues[1].BudgetTier)
	assert.Equal(t, "fast_food", res.Venues[1].Category)

	// Missing price level stays a neutral mid tier, never empty.
	assert.Equal(t, models.BudgetMid, res.Venues[2].BudgetTier)
}

func TestGooglePlacesAPIErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"REQUEST_DENIED","results":[]}`))
	}))
	defer srv.Close()

	store, limiter := testDeps(t)
	a, err := NewGooglePlacesAdapter(srv.URL, "secret", store.Namespace("google_places"), limiter, testLogger())
	require.NoError(t, err)

	res := a.Discover(context.Background(), Query{City: "Porto"})
	assert.Equal(t, models.ProviderDegraded, res.Status)
	assert.Empty(t, res.Venues)
}

func TestGooglePlacesZeroResultsIsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer srv.Close()

	store, limiter := testDeps(t)
	a, err := NewGooglePlacesAdapter(srv.URL, "secret", store.Namespace("google_places"), limiter, testLogger())
	require.NoError(t, err)

	res := a.Discover(context.Background(), Query{City: "Atlantis"})
	assert.Equal(t, models.ProviderOK, res.Status)
	assert.Empty(t, res.Venues)
}

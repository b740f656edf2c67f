package discovery

import (
	"math"
	"sort"
	"strings"

	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

// legal suffixes stripped during name normalization so "Joe's Pizza LLC"
// and "Joe's Pizza" compare equal.
var legalSuffixes = map[string]struct{}{
	"ltd": {}, "llc": {}, "inc": {}, "co": {}, "gmbh": {}, "sa": {}, "lda": {},
}

// normalizeName produces the comparison key for dedup: lowercase, punctuation
// stripped, legal suffixes dropped, whitespace collapsed.
func normalizeName(name string) string {
	lower := strings.ToLower(name)
	var sb strings.Builder
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r > 127: // keep non-ASCII letters as-is
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}

	words := strings.Fields(sb.String())
	out := words[:0]
	for _, w := range words {
		if _, isLegal := legalSuffixes[w]; isLegal {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// haversineMeters computes the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371_000 // Earth's radius in meters

	lat1Rad := lat1 * math.Pi / 180
	lon1Rad := lon1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	lon2Rad := lon2 * math.Pi / 180

	dlat := lat2Rad - lat1Rad
	dlon := lon2Rad - lon1Rad

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

// merger collapses venues that refer to the same real-world place. Two
// venues merge iff their normalized names are equal AND they sit within
// radiusMeters of each other; either condition alone is insufficient (two
// food carts a meter apart with different names must not merge).
type merger struct {
	radiusMeters float64
}

// Merge collapses duplicate venues within one discovery pass. Merging is
// transitive: if A~B and B~C, all three collapse into one group. The output
// does not depend on input order beyond the quality-score tie-break.
func (m merger) Merge(venues []models.Venue) []models.Venue {
	n := len(venues)
	if n <= 1 {
		return venues
	}

	// Union-find over venue indices.
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	keys := make([]string, n)
	for i, v := range venues {
		keys[i] = normalizeName(v.Name)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if keys[i] == "" || keys[i] != keys[j] {
				continue
			}
			d := haversineMeters(venues[i].Latitude, venues[i].Longitude, venues[j].Latitude, venues[j].Longitude)
			if d < m.radiusMeters {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]models.Venue, n)
	for i, v := range venues {
		root := find(i)
		groups[root] = append(groups[root], v)
	}

	merged := make([]models.Venue, 0, len(groups))
	for _, group := range groups {
		merged = append(merged, mergeGroup(group))
	}

	// Deterministic output regardless of map iteration order.
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	return merged
}

// mergeGroup keeps the highest-quality representative and carries over any
// non-empty enrichment field from lower-scored duplicates without
// overwriting a populated field on the winner.
func mergeGroup(group []models.Venue) models.Venue {
	sort.Slice(group, func(i, j int) bool {
		if group[i].QualityScore != group[j].QualityScore {
			return group[i].QualityScore > group[j].QualityScore
		}
		return group[i].ID < group[j].ID // fixed tie-break, arrival-order independent
	})

	winner := group[0]
	for _, loser := range group[1:] {
		if winner.Website == "" {
			winner.Website = loser.Website
		}
		if winner.Phone == "" {
			winner.Phone = loser.Phone
		}
		if winner.Rating == 0 {
			winner.Rating = loser.Rating
		}
		if winner.Cuisine == "" {
			winner.Cuisine = loser.Cuisine
		}
		if winner.SourceURL == "" {
			winner.SourceURL = loser.SourceURL
		}
		if strings.HasPrefix(winner.Address, "near (") && loser.Address != "" && !strings.HasPrefix(loser.Address, "near (") {
			winner.Address = loser.Address
		}
		winner.Tags = append(winner.Tags, loser.Tags...)
	}
	return winner
}

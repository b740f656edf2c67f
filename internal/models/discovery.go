package models

// DiscoverRequest carries the parameters of one venue discovery pass.
type DiscoverRequest struct {
	City      string `json:"city"`
	Cuisine   string `json:"cuisine,omitempty"`
	LocalOnly bool   `json:"local_only,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// ProviderStatus describes how a single provider fared during one pass.
type ProviderStatus string

const (
	ProviderOK       ProviderStatus = "ok"       // live fetch succeeded
	ProviderStale    ProviderStatus = "stale"    // live fetch failed, served expired cache
	ProviderDegraded ProviderStatus = "degraded" // fetch failed or timed out, zero results
	ProviderSkipped  ProviderStatus = "skipped"  // needed a bounding box that geocoding could not supply
)

// ProviderResult is the typed degraded-result value each adapter call
// resolves to. Upstream failures become a Status, never an error that
// escapes the orchestrator.
type ProviderResult struct {
	Provider string
	Status   ProviderStatus
	Venues   []Venue
}

// ProviderOutcome is the per-provider summary exposed to the route layer,
// so it can tell "searched, found nothing" apart from "everything fell over".
type ProviderOutcome struct {
	Name   string         `json:"name"`
	Status ProviderStatus `json:"status"`
	Count  int            `json:"count"`
}

// DiscoverResponse is the downstream consumer contract: the merged,
// ranked venue list plus per-provider outcome metadata.
type DiscoverResponse struct {
	RequestID   string            `json:"request_id"`
	City        string            `json:"city"`
	BoundingBox *BoundingBox      `json:"bounding_box,omitempty"`
	Venues      []Venue           `json:"venues"`
	Providers   []ProviderOutcome `json:"providers"`
}

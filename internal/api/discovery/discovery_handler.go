package discovery

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-venue-discovery/internal/api"
	"github.com/FACorreiaa/go-venue-discovery/internal/models"
)

type HandlerImpl struct {
	discoveryService Service
	logger           *slog.Logger
}

func NewHandlerImpl(discoveryService Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		discoveryService: discoveryService,
		logger:           logger,
	}
}

// DiscoverRestaurants handles GET /discover/restaurants.
func (h *HandlerImpl) DiscoverRestaurants(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DiscoverRestaurants").Start(r.Context(), "DiscoverRestaurants", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/discover/restaurants"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "DiscoverRestaurants"))
	l.DebugContext(ctx, "Discover restaurants handler invoked")

	query := r.URL.Query()
	city := query.Get("city")
	if city == "" {
		l.ErrorContext(ctx, "Missing required city parameter")
		api.ErrorResponse(w, r, http.StatusBadRequest, "city is required")
		return
	}

	req := models.DiscoverRequest{
		City:    city,
		Cuisine: query.Get("cuisine"),
	}
	if raw := query.Get("local_only"); raw != "" {
		localOnly, err := strconv.ParseBool(raw)
		if err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "local_only must be a boolean")
			return
		}
		req.LocalOnly = localOnly
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			api.ErrorResponse(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		req.Limit = limit
	}

	resp, err := h.discoveryService.DiscoverRestaurants(ctx, req)
	if err != nil {
		l.ErrorContext(ctx, "Discovery failed", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// WarmCity handles POST /discover/warm: it kicks off a background discovery
// pass so that cron-style warming shares cache and rate-limit state with
// live traffic.
func (h *HandlerImpl) WarmCity(w http.ResponseWriter, r *http.Request) {
	l := h.logger.With(slog.String("handler", "WarmCity"))

	var req models.DiscoverRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.ErrorContext(r.Context(), "Failed to decode warm request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.City == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "city is required")
		return
	}

	go func() {
		// Detached from the request lifecycle; the warm pass populates the
		// shared caches and is allowed to fail silently.
		if _, err := h.discoveryService.DiscoverRestaurants(context.Background(), req); err != nil {
			l.Warn("Cache warming pass failed", slog.String("city", req.City), slog.Any("error", err))
		}
	}()

	api.WriteJSONResponse(w, r, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "warming started",
		"city":    req.City,
	})
}

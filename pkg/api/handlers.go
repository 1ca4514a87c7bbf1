package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"

	"github.com/azybler/geopath/pkg/geo"
	"github.com/azybler/geopath/pkg/pathfinder"
)

// Router is the interface pkg/api depends on, satisfied by *pathfinder.Finder.
// Handlers takes the interface rather than the concrete type so tests can
// supply a stub, exactly as the teacher's handlers.go depended on
// routing.Router rather than *routing.Engine.
type Router interface {
	FindPathAsync(ctx context.Context, start, end geo.Coordinate, opts pathfinder.SearchOptions) (pathfinder.Path, bool, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router Router
	stats  StatsResponse
}

// NewHandlers creates handlers with the given router.
func NewHandlers(router Router, stats StatsResponse) *Handlers {
	return &Handlers{
		router: router,
		stats:  stats,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return
	}

	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}

	start := geo.Coordinate{req.Start.Lng, req.Start.Lat}
	end := geo.Coordinate{req.End.Lng, req.End.Lat}

	path, ok, err := h.router.FindPathAsync(r.Context(), start, end, pathfinder.SearchOptions{})
	if err != nil {
		if errors.Is(err, pathfinder.ErrAmbiguousCoordinate) {
			writeError(w, http.StatusUnprocessableEntity, "ambiguous_coordinate", "")
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no_route_found", "")
		return
	}

	geom := make([]LatLngJSON, len(path.Geometry))
	for i, c := range path.Geometry {
		geom[i] = LatLngJSON{Lat: c.Lat(), Lng: c.Lon()}
	}
	resp := RouteResponse{
		TotalDistanceMeters: path.Weight * 1000,
		Geometry:            geom,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.stats)
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}

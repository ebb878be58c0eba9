package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tworjaga/cherenkov-engine/internal/query"
)

// ReadingsHandler exposes the query port's reading-oriented endpoints:
// query_range and query_geo.
type ReadingsHandler struct {
	query *query.Service
}

func NewReadingsHandler(q *query.Service) *ReadingsHandler {
	return &ReadingsHandler{query: q}
}

// List implements query_range: GET /readings?sensor_ids=a,b&start=...&end=...&agg=hour
func (h *ReadingsHandler) List(w http.ResponseWriter, r *http.Request) {
	start, ok := QueryInt64(r, "start")
	if !ok {
		WriteError(w, http.StatusBadRequest, "start is required (unix seconds)")
		return
	}
	end, ok := QueryInt64(r, "end")
	if !ok {
		end = time.Now().Unix()
	}

	var sensorIDs []uuid.UUID
	for _, s := range QueryStringList(r, "sensor_ids") {
		id, err := uuid.Parse(s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid sensor_ids entry: "+s)
			return
		}
		sensorIDs = append(sensorIDs, id)
	}

	agg := query.AggregationRaw
	if v, ok := QueryString(r, "agg"); ok {
		agg = query.Aggregation(v)
	}

	points, err := h.query.QueryRange(r.Context(), sensorIDs, start, end, agg)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, points)
}

// Geo implements query_geo: GET /readings/geo?lat=...&lon=...&radius_km=...&start=...&end=...
func (h *ReadingsHandler) Geo(w http.ResponseWriter, r *http.Request) {
	lat, ok := QueryFloat(r, "lat")
	if !ok {
		WriteError(w, http.StatusBadRequest, "lat is required")
		return
	}
	lon, ok := QueryFloat(r, "lon")
	if !ok {
		WriteError(w, http.StatusBadRequest, "lon is required")
		return
	}
	radiusKM, ok := QueryFloat(r, "radius_km")
	if !ok {
		WriteError(w, http.StatusBadRequest, "radius_km is required")
		return
	}
	start, ok := QueryInt64(r, "start")
	if !ok {
		WriteError(w, http.StatusBadRequest, "start is required (unix seconds)")
		return
	}
	end, ok := QueryInt64(r, "end")
	if !ok {
		end = time.Now().Unix()
	}

	results, err := h.query.QueryGeo(r.Context(), lat, lon, radiusKM, start, end)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, results)
}

// Routes registers reading routes on the given router.
func (h *ReadingsHandler) Routes(r chi.Router) {
	r.Get("/readings", h.List)
	r.Get("/readings/geo", h.Geo)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tworjaga/cherenkov-engine/internal/correlate"
)

// CorrelateHandler exposes the correlation engine's cluster list and
// facility status inference.
type CorrelateHandler struct {
	correlator *correlate.Engine
}

func NewCorrelateHandler(c *correlate.Engine) *CorrelateHandler {
	return &CorrelateHandler{correlator: c}
}

// Clusters implements correlate(): GET /clusters returns the current
// buffer clustered, typed, and scored, sorted by severity descending.
func (h *CorrelateHandler) Clusters(w http.ResponseWriter, r *http.Request) {
	if h.correlator == nil {
		WriteError(w, http.StatusServiceUnavailable, "correlation engine not available")
		return
	}
	WriteJSON(w, http.StatusOK, h.correlator.Correlate())
}

// FacilityStatus implements infer_facility_status: GET /facilities/{id}/status.
func (h *CorrelateHandler) FacilityStatus(w http.ResponseWriter, r *http.Request) {
	if h.correlator == nil {
		WriteError(w, http.StatusServiceUnavailable, "correlation engine not available")
		return
	}
	facilityID := chi.URLParam(r, "id")
	inference, ok := h.correlator.InferFacilityStatus(facilityID)
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown facility id")
		return
	}
	WriteJSON(w, http.StatusOK, inference)
}

// Routes registers correlation routes on the given router.
func (h *CorrelateHandler) Routes(r chi.Router) {
	r.Get("/clusters", h.Clusters)
	r.Get("/facilities/{id}/status", h.FacilityStatus)
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tworjaga/cherenkov-engine/internal/query"
)

const defaultAnomaliesLimit = 100

// AnomaliesHandler exposes the query port's get_anomalies endpoint.
type AnomaliesHandler struct {
	query *query.Service
}

func NewAnomaliesHandler(q *query.Service) *AnomaliesHandler {
	return &AnomaliesHandler{query: q}
}

// List implements get_anomalies: GET /anomalies?since=...&limit=...
func (h *AnomaliesHandler) List(w http.ResponseWriter, r *http.Request) {
	since, _ := QueryInt64(r, "since")
	limit, ok := QueryInt(r, "limit")
	if !ok {
		limit = defaultAnomaliesLimit
	}

	anomalies, err := h.query.GetAnomalies(r.Context(), since, limit)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, anomalies)
}

// Routes registers anomaly routes on the given router.
func (h *AnomaliesHandler) Routes(r chi.Router) {
	r.Get("/anomalies", h.List)
}

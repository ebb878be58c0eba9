package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tworjaga/cherenkov-engine/internal/query"
)

// SensorsHandler exposes the query port's sensor-oriented endpoints:
// get_sensor_latest and list_sensors.
type SensorsHandler struct {
	query *query.Service
}

func NewSensorsHandler(q *query.Service) *SensorsHandler {
	return &SensorsHandler{query: q}
}

// List implements list_sensors: GET /sensors
func (h *SensorsHandler) List(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.query.ListSensors(r.Context())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sensors)
}

// Latest implements get_sensor_latest: GET /sensors/{id}/latest
func (h *SensorsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid sensor id")
		return
	}

	reading, err := h.query.GetSensorLatest(r.Context(), id)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, reading)
}

// Routes registers sensor routes on the given router.
func (h *SensorsHandler) Routes(r chi.Router) {
	r.Get("/sensors", h.List)
	r.Get("/sensors/{id}/latest", h.Latest)
}

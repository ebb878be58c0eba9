package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tworjaga/cherenkov-engine/internal/query"
)

// HealthResponse is the admin port's health_check response body.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Hot           bool   `json:"hot"`
	Warm          bool   `json:"warm"`
	Cold          bool   `json:"cold"`
	Cache         bool   `json:"cache"`
}

// HealthHandler serves the aggregated tiered-storage health check.
type HealthHandler struct {
	query     *query.Service
	version   string
	startTime time.Time
}

func NewHealthHandler(q *query.Service, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{query: q, version: version, startTime: startTime}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.query.HealthCheck(r.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if health.Degraded {
		status = "degraded"
	}
	if !health.Hot && !health.Warm {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Hot:           health.Hot,
		Warm:          health.Warm,
		Cold:          health.Cold,
		Cache:         health.Cache,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(resp)
}

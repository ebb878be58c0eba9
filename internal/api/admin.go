package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tworjaga/cherenkov-engine/internal/database"
	"github.com/tworjaga/cherenkov-engine/internal/ingest"
)

// AdminHandler exposes the admin port's operational endpoints: dead-letter
// replay, pipeline stats, and warm-tier migrations.
type AdminHandler struct {
	db       *database.DB
	pipeline *ingest.Pipeline
}

func NewAdminHandler(db *database.DB, pipeline *ingest.Pipeline) *AdminHandler {
	return &AdminHandler{db: db, pipeline: pipeline}
}

// ReplayDLQ re-attempts every dead-lettered reading.
func (h *AdminHandler) ReplayDLQ(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		WriteError(w, http.StatusServiceUnavailable, "ingestion pipeline not available")
		return
	}

	succeeded, failed := h.pipeline.ReplayDLQ(r.Context())
	WriteJSON(w, http.StatusOK, map[string]any{
		"succeeded": succeeded,
		"failed":    failed,
	})
}

// Stats reports current pipeline health: DLQ depth, circuit breaker state,
// and dedup cache size.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.pipeline == nil {
		WriteError(w, http.StatusServiceUnavailable, "ingestion pipeline not available")
		return
	}

	stats := h.pipeline.Stats()
	WriteJSON(w, http.StatusOK, map[string]any{
		"dlq_depth":        stats.DLQDepth,
		"circuit_state":    stats.CircuitState,
		"dedup_cache_size": stats.DedupCacheSize,
	})
}

// Migrate applies pending warm-tier schema migrations. Warm tier only, per
// the admin port's documented scope — hot and cold tiers have no migrations.
func (h *AdminHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Migrate(r.Context()); err != nil {
		WriteError(w, http.StatusInternalServerError, "migration failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "migrated"})
}

// Routes registers admin routes on the given router.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Post("/admin/replay-dlq", h.ReplayDLQ)
	r.Get("/admin/stats", h.Stats)
	r.Post("/admin/migrate", h.Migrate)
}

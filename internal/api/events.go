package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/tworjaga/cherenkov-engine/internal/domain"
	"github.com/tworjaga/cherenkov-engine/internal/ingest"
)

const eventsSubscriberBuffer = 256

// EventBus is the subset of ingest.EventBus the SSE handler consumes.
type EventBus interface {
	Subscribe(filter ingest.EventFilter, capacity int) (<-chan domain.DomainEvent, func(), func() uint64)
	ReplaySince(lastEventID uuid.UUID, filter ingest.EventFilter) []domain.DomainEvent
}

type EventsHandler struct {
	bus EventBus
}

func NewEventsHandler(bus EventBus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

// StreamEvents opens an SSE connection and pushes filtered domain events:
// new readings, anomalies, cluster creation, and sensor status changes.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := ingest.EventFilter{}
	for _, t := range QueryStringList(r, "types") {
		filter.Types = append(filter.Types, domain.EventType(t))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		if id, err := uuid.Parse(lastEventID); err == nil {
			for _, e := range h.bus.ReplaySince(id, filter) {
				writeSSEEvent(w, e)
			}
			flusher.Flush()
		}
	}

	ch, cancel, _ := h.bus.Subscribe(filter, eventsSubscriberBuffer)
	defer cancel()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	log := hlog.FromRequest(r)
	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			writeSSEEvent(w, event)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, e domain.DomainEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.EventID, e.EventType, data)
}

// Routes registers event routes on the given router.
func (h *EventsHandler) Routes(r chi.Router) {
	r.Get("/events/stream", h.StreamEvents)
}

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tworjaga/cherenkov-engine/internal/query"
	"github.com/tworjaga/cherenkov-engine/internal/storage"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		health     storage.TierHealth
		wantStatus int
		wantBody   string
	}{
		{"all healthy", storage.TierHealth{Hot: true, Warm: true, Cold: true, Cache: true}, http.StatusOK, "healthy"},
		{"cache down stays healthy", storage.TierHealth{Hot: true, Warm: true, Cache: false}, http.StatusOK, `"status":"healthy"`},
		{"unhealthy hot and warm down", storage.TierHealth{Hot: false, Warm: false}, http.StatusServiceUnavailable, "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStorage()
			fs.health = tt.health
			svc := query.New(fs, nil, 7*24*time.Hour, 30*24*time.Hour, zerolog.Nop())
			h := NewHealthHandler(svc, "test-version", time.Now())

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Fatalf("expected body to contain %q, got %s", tt.wantBody, w.Body.String())
			}
		})
	}
}

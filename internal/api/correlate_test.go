package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tworjaga/cherenkov-engine/internal/correlate"
	"github.com/tworjaga/cherenkov-engine/internal/domain"
)

func TestCorrelateHandler_NilEngine(t *testing.T) {
	h := NewCorrelateHandler(nil)

	t.Run("clusters unavailable", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/clusters", nil)
		w := httptest.NewRecorder()
		h.Clusters(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", w.Code)
		}
	})

	t.Run("facility status unavailable", func(t *testing.T) {
		req := newRequestWithChiParam("id", "some-facility")
		w := httptest.NewRecorder()
		h.FacilityStatus(w, req)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", w.Code)
		}
	})
}

func TestCorrelateHandler_Clusters(t *testing.T) {
	engine := correlate.New(time.Hour, 100.0)
	engine.NotifyAnomaly(domain.Anomaly{
		DetectedAt: time.Now().Unix(),
		ZScore:     6.0,
	}, domain.NormalizedReading{Latitude: 37.4, Longitude: 141.0})
	h := NewCorrelateHandler(engine)

	req := httptest.NewRequest(http.MethodGet, "/clusters", nil)
	w := httptest.NewRecorder()
	h.Clusters(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got []domain.EventCluster
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(got))
	}
}

func TestCorrelateHandler_FacilityStatus(t *testing.T) {
	engine := correlate.New(time.Hour, 100.0)
	engine.LoadFacilities(correlate.DefaultFacilities())
	h := NewCorrelateHandler(engine)

	t.Run("known facility", func(t *testing.T) {
		req := newRequestWithChiParam("id", "fukushima-daiichi")
		w := httptest.NewRecorder()
		h.FacilityStatus(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	})

	t.Run("unknown facility", func(t *testing.T) {
		req := newRequestWithChiParam("id", "does-not-exist")
		w := httptest.NewRecorder()
		h.FacilityStatus(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// ── ParsePagination ──────────────────────────────────────────────────

func TestParsePagination(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		p, err := ParsePagination(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Limit != 50 || p.Offset != 0 {
			t.Errorf("got %+v, want {50 0}", p)
		}
	})
	t.Run("valid_custom", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?limit=25&offset=10", nil)
		p, err := ParsePagination(req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Limit != 25 || p.Offset != 10 {
			t.Errorf("got %+v, want {25 10}", p)
		}
	})
	t.Run("limit_zero_rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?limit=0", nil)
		if _, err := ParsePagination(req); err == nil {
			t.Error("expected error for limit=0")
		}
	})
	t.Run("negative_offset_rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?offset=-5", nil)
		if _, err := ParsePagination(req); err == nil {
			t.Error("expected error for offset=-5")
		}
	})
	t.Run("non_numeric_rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?limit=abc", nil)
		if _, err := ParsePagination(req); err == nil {
			t.Error("expected error for non-numeric limit")
		}
	})
}

// ── QueryInt ─────────────────────────────────────────────────────────

func TestQueryInt(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?n=42", nil)
		v, ok := QueryInt(req, "n")
		if !ok || v != 42 {
			t.Errorf("got (%d, %v), want (42, true)", v, ok)
		}
	})
	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		_, ok := QueryInt(req, "n")
		if ok {
			t.Error("expected ok=false for missing param")
		}
	})
	t.Run("non_numeric", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?n=abc", nil)
		_, ok := QueryInt(req, "n")
		if ok {
			t.Error("expected ok=false for non-numeric param")
		}
	})
}

// ── QueryInt64 ───────────────────────────────────────────────────────

func TestQueryInt64(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?n=9999999999", nil)
		v, ok := QueryInt64(req, "n")
		if !ok || v != 9999999999 {
			t.Errorf("got (%d, %v), want (9999999999, true)", v, ok)
		}
	})
	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		_, ok := QueryInt64(req, "n")
		if ok {
			t.Error("expected ok=false")
		}
	})
	t.Run("non_numeric", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?n=abc", nil)
		_, ok := QueryInt64(req, "n")
		if ok {
			t.Error("expected ok=false")
		}
	})
}

// ── QueryFloat ───────────────────────────────────────────────────────

func TestQueryFloat(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?radius=37.45", nil)
		v, ok := QueryFloat(req, "radius")
		if !ok || v != 37.45 {
			t.Errorf("got (%v, %v), want (37.45, true)", v, ok)
		}
	})
	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		_, ok := QueryFloat(req, "radius")
		if ok {
			t.Error("expected ok=false")
		}
	})
	t.Run("non_numeric", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?radius=abc", nil)
		_, ok := QueryFloat(req, "radius")
		if ok {
			t.Error("expected ok=false")
		}
	})
}

// ── QueryBool ────────────────────────────────────────────────────────

func TestQueryBool(t *testing.T) {
	t.Run("true", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?flag=true", nil)
		v, ok := QueryBool(req, "flag")
		if !ok || !v {
			t.Errorf("got (%v, %v), want (true, true)", v, ok)
		}
	})
	t.Run("false", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?flag=false", nil)
		v, ok := QueryBool(req, "flag")
		if !ok || v {
			t.Errorf("got (%v, %v), want (false, true)", v, ok)
		}
	})
	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		_, ok := QueryBool(req, "flag")
		if ok {
			t.Error("expected ok=false")
		}
	})
	t.Run("invalid", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?flag=maybe", nil)
		_, ok := QueryBool(req, "flag")
		if ok {
			t.Error("expected ok=false")
		}
	})
}

// ── QueryString ──────────────────────────────────────────────────────

func TestQueryString(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?q=hello", nil)
		v, ok := QueryString(req, "q")
		if !ok || v != "hello" {
			t.Errorf("got (%q, %v), want (\"hello\", true)", v, ok)
		}
	})
	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		_, ok := QueryString(req, "q")
		if ok {
			t.Error("expected ok=false")
		}
	})
}

// ── QueryTime ────────────────────────────────────────────────────────

func TestQueryTime(t *testing.T) {
	t.Run("valid_rfc3339", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?t=2024-01-15T10:30:00Z", nil)
		v, ok := QueryTime(req, "t")
		if !ok {
			t.Fatal("expected ok=true")
		}
		want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
		if !v.Equal(want) {
			t.Errorf("got %v, want %v", v, want)
		}
	})
	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		_, ok := QueryTime(req, "t")
		if ok {
			t.Error("expected ok=false")
		}
	})
	t.Run("invalid_format", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?t=not-a-time", nil)
		_, ok := QueryTime(req, "t")
		if ok {
			t.Error("expected ok=false")
		}
	})
}

// ── QueryStringList ──────────────────────────────────────────────────

func TestQueryStringList(t *testing.T) {
	t.Run("missing_returns_nil", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		got := QueryStringList(req, "types")
		if got != nil {
			t.Errorf("got %v, want nil", got)
		}
	})
	t.Run("multiple_values", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/?types=anomaly,reading", nil)
		got := QueryStringList(req, "types")
		if len(got) != 2 || got[0] != "anomaly" || got[1] != "reading" {
			t.Errorf("got %v, want [anomaly reading]", got)
		}
	})
}

// ── PathInt ──────────────────────────────────────────────────────────

func TestPathInt(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := newRequestWithChiParam("id", "42")
		v, err := PathInt(req, "id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 42 {
			t.Errorf("got %d, want 42", v)
		}
	})
	t.Run("missing", func(t *testing.T) {
		rctx := chi.NewRouteContext()
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		_, err := PathInt(req, "id")
		if err == nil {
			t.Error("expected error for missing param")
		}
	})
	t.Run("non_numeric", func(t *testing.T) {
		req := newRequestWithChiParam("id", "abc")
		_, err := PathInt(req, "id")
		if err == nil {
			t.Error("expected error for non-numeric param")
		}
	})
}

// ── PathInt64 ────────────────────────────────────────────────────────

func TestPathInt64(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := newRequestWithChiParam("id", "9999999999")
		v, err := PathInt64(req, "id")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 9999999999 {
			t.Errorf("got %d, want 9999999999", v)
		}
	})
	t.Run("missing", func(t *testing.T) {
		rctx := chi.NewRouteContext()
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		_, err := PathInt64(req, "id")
		if err == nil {
			t.Error("expected error for missing param")
		}
	})
	t.Run("non_numeric", func(t *testing.T) {
		req := newRequestWithChiParam("id", "abc")
		_, err := PathInt64(req, "id")
		if err == nil {
			t.Error("expected error for non-numeric param")
		}
	})
}

// ── WriteJSON ────────────────────────────────────────────────────────

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"msg": "ok"})

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body["msg"] != "ok" {
		t.Errorf("body = %v, want msg=ok", body)
	}
}

// ── WriteError ───────────────────────────────────────────────────────

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "bad input")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body.Error != "bad input" {
		t.Errorf("Error = %q, want %q", body.Error, "bad input")
	}
}

// ── DecodeJSON ───────────────────────────────────────────────────────

func TestDecodeJSON(t *testing.T) {
	t.Run("valid_body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"test"}`))
		var dst struct {
			Name string `json:"name"`
		}
		if err := DecodeJSON(req, &dst); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dst.Name != "test" {
			t.Errorf("Name = %q, want %q", dst.Name, "test")
		}
	})
	t.Run("nil_body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", nil)
		req.Body = nil
		var dst struct{}
		if err := DecodeJSON(req, &dst); err == nil {
			t.Error("expected error for nil body")
		}
	})
	t.Run("malformed_json", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/", strings.NewReader(`{bad`))
		var dst struct{}
		if err := DecodeJSON(req, &dst); err == nil {
			t.Error("expected error for malformed JSON")
		}
	})
}

// ── WriteErrorDetail ─────────────────────────────────────────────────

func TestWriteErrorDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorDetail(rec, http.StatusUnprocessableEntity, "validation failed", "name is required")

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("JSON decode: %v", err)
	}
	if body.Error != "validation failed" {
		t.Errorf("Error = %q, want %q", body.Error, "validation failed")
	}
	if body.Detail != "name is required" {
		t.Errorf("Detail = %q, want %q", body.Detail, "name is required")
	}
}

func newRequestWithChiParam(key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	req := httptest.NewRequest("GET", "/", nil)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/macrobrief/macrobrief/internal/store"
)

type stubRepo struct {
	latest *store.RunRecord
}

func (s *stubRepo) SaveRun(ctx context.Context, rec *store.RunRecord) error { return nil }
func (s *stubRepo) LatestRun(ctx context.Context) (*store.RunRecord, error) {
	return s.latest, nil
}
func (s *stubRepo) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	if s.latest != nil && s.latest.ID == id {
		return s.latest, nil
	}
	return nil, nil
}
func (s *stubRepo) ListRuns(ctx context.Context, limit int) ([]*store.RunRecord, error) {
	if s.latest == nil {
		return nil, nil
	}
	return []*store.RunRecord{s.latest}, nil
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(DefaultServerConfig(), nil, prometheus.NewRegistry(), zerolog.Nop())
	rec := get(t, srv, "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request ID header")
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
	if body["persistence"] != false {
		t.Errorf("persistence = %v, want false", body["persistence"])
	}
}

func TestLatestRunEndpoint(t *testing.T) {
	t.Run("without persistence", func(t *testing.T) {
		srv := NewServer(DefaultServerConfig(), nil, nil, zerolog.Nop())
		if rec := get(t, srv, "/runs/latest"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		srv := NewServer(DefaultServerConfig(), &stubRepo{}, nil, zerolog.Nop())
		if rec := get(t, srv, "/runs/latest"); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("with a run", func(t *testing.T) {
		repo := &stubRepo{latest: &store.RunRecord{
			ID:      "0b7e4c9a-9f3d-4e8b-9a6e-1f2d3c4b5a69",
			RunDate: "2025-03-21",
			Status:  "completed",
			Bundle:  json.RawMessage(`{}`),
		}}
		srv := NewServer(DefaultServerConfig(), repo, nil, zerolog.Nop())

		rec := get(t, srv, "/runs/latest")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var got store.RunRecord
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if got.RunDate != "2025-03-21" {
			t.Errorf("run date = %q", got.RunDate)
		}
	})
}

func TestGetRunValidatesID(t *testing.T) {
	srv := NewServer(DefaultServerConfig(), &stubRepo{}, nil, zerolog.Nop())
	if rec := get(t, srv, "/runs/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec := get(t, srv, "/runs/0b7e4c9a-9f3d-4e8b-9a6e-1f2d3c4b5a69"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := NewServer(DefaultServerConfig(), nil, reg, zerolog.Nop())
	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/talgya/spirob/internal/design"
	"github.com/talgya/spirob/internal/solid"
)

func newTestServer() *Server {
	return &Server{
		Session:  design.NewSession(solid.NewSynthesizer(nil)),
		AdminKey: "secret",
	}
}

func TestStatusReportsDesign(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if n, ok := body["unit_count"].(float64); !ok || n <= 0 {
		t.Errorf("Expected positive unit_count, got %v", body["unit_count"])
	}
	if body["kernel_available"] != false {
		t.Errorf("Expected kernel_available false, got %v", body["kernel_available"])
	}
	if body["brep_capable"] != false {
		t.Errorf("Expected brep_capable false, got %v", body["brep_capable"])
	}
	if _, ok := body["params"]; !ok {
		t.Error("Expected params in the status payload")
	}
}

func TestParamsPatchRequiresBearerToken(t *testing.T) {
	s := newTestServer()
	h := s.adminOnly(s.handleParams)

	tests := []struct {
		name     string
		adminKey string
		auth     string
		want     int
	}{
		{"no token", "secret", "", http.StatusUnauthorized},
		{"wrong token", "secret", "Bearer nope", http.StatusUnauthorized},
		{"admin disabled", "", "Bearer secret", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.AdminKey = tt.adminKey
			req := httptest.NewRequest(http.MethodPost, "/api/v1/params", strings.NewReader(`{"a": 6}`))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			h(rec, req)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestParamsPatchApplies(t *testing.T) {
	s := newTestServer()
	h := s.adminOnly(s.handleParams)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/params", strings.NewReader(`{"a": 6.0}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var snap design.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.Params.A != 6.0 {
		t.Errorf("Expected a=6.0 in the snapshot, got %v", snap.Params.A)
	}
}

func TestParamsPatchRejectsUnknownField(t *testing.T) {
	s := newTestServer()
	h := s.adminOnly(s.handleParams)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/params", strings.NewReader(`{"bogus": 1}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestParamsAsyncQueues(t *testing.T) {
	s := newTestServer()
	h := s.adminOnly(s.handleParams)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/params?async=true", strings.NewReader(`{"a": 6.0}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", rec.Code)
	}
}

func TestExportWithoutKernelIsUnavailable(t *testing.T) {
	s := newTestServer()
	h := s.adminOnly(s.handleExport)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/export", strings.NewReader(`{"kinds": ["cad"]}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestExportOverBudgetIs429(t *testing.T) {
	s := newTestServer()
	s.budget = NewExportBudget(0, time.Hour)
	h := s.adminOnly(s.handleExport)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/export", strings.NewReader(`{"kinds": ["sketch"]}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected a Retry-After header")
	}
}

func TestPresetsWithoutDB(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.handlePresets(rec, httptest.NewRequest(http.MethodGet, "/api/v1/presets", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

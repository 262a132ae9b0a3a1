package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

type mockPinger struct {
	pingErr error
}

func (m *mockPinger) PingContext(context.Context) error {
	return m.pingErr
}

type mockPolicyChecker struct {
	healthErr error
}

func (m *mockPolicyChecker) HealthCheck(context.Context) error {
	return m.healthErr
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		policy     PolicyChecker
		wantCode   int
		wantStatus string
	}{
		{"no dependencies", nil, nil, http.StatusOK, "ok"},
		{"healthy", &mockPinger{}, &mockPolicyChecker{}, http.StatusOK, "ok"},
		{"database down", &mockPinger{pingErr: errors.New("connection refused")}, &mockPolicyChecker{}, http.StatusServiceUnavailable, "unavailable"},
		{"policy broken", &mockPinger{}, &mockPolicyChecker{healthErr: errors.New("rego compile failed")}, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health", NewHandler(tt.pinger, tt.policy).Check)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status code = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			var body map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", body["status"], tt.wantStatus)
			}
		})
	}
}

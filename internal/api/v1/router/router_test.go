package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestServeSwaggerDoc(t *testing.T) {
	rec := httptest.NewRecorder()
	serveSwaggerDoc(zerolog.Nop())(rec, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc struct {
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("swagger doc is not valid JSON: %v", err)
	}
	if doc.BasePath != "/v1" {
		t.Errorf("expected base path /v1, got %q", doc.BasePath)
	}
	for _, path := range []string{"/users/me", "/billing/checkout", "/billing/verify", "/assistant", "/webhooks/stripe", "/webhooks/clerk"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Errorf("swagger doc is missing %s", path)
		}
	}
}

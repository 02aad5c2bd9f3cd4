package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func TestIsLocalhostOrigin(t *testing.T) {
	tests := []struct {
		origin   string
		expected bool
	}{
		{"http://localhost", true},
		{"http://localhost:3000", true},
		{"https://localhost:8443", true},
		{"http://localhost.evil.com", false},
		{"http://127.0.0.1:3000", false},
		{"https://labface.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := isLocalhostOrigin(tt.origin); got != tt.expected {
				t.Errorf("isLocalhostOrigin(%q) = %v, want %v", tt.origin, got, tt.expected)
			}
		})
	}
}

func TestCORS_AllowedOrigin(t *testing.T) {
	handler := CORS([]string{"https://labface.example.com", " "})(okHandler())

	req := httptest.NewRequest("POST", "/api/v1/match", nil)
	req.Header.Set("Origin", "https://labface.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusTeapot {
		t.Errorf("expected request to reach the handler, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://labface.example.com" {
		t.Errorf("expected origin to be echoed, got '%s'", got)
	}
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	handler := CORS(nil)(okHandler())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "https://attacker.example.com")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin header, got '%s'", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	handler := CORS(nil)(okHandler())

	req := httptest.NewRequest("OPTIONS", "/api/v1/embeddings", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected preflight to short-circuit with 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("expected localhost origin to be allowed, got '%s'", got)
	}
}

func TestSecurityHeaders(t *testing.T) {
	recorder := httptest.NewRecorder()
	SecurityHeaders()(okHandler()).ServeHTTP(recorder, httptest.NewRequest("GET", "/", nil))

	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got '%s'", got)
	}
	if got := recorder.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("expected no-store, got '%s'", got)
	}
}

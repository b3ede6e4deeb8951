package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func snapshotEndpoint() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	})
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:5173", "https://wallboard.callcenter.local"})(snapshotEndpoint())

	tests := []struct {
		name          string
		origin        string
		method        string
		requestMethod string // Access-Control-Request-Method on preflights
		wantOrigin    string
		wantMethods   string
	}{
		{
			name:       "dev dashboard reads queues",
			origin:     "http://localhost:5173",
			method:     http.MethodGet,
			wantOrigin: "http://localhost:5173",
		},
		{
			name:       "wallboard reads queues",
			origin:     "https://wallboard.callcenter.local",
			method:     http.MethodGet,
			wantOrigin: "https://wallboard.callcenter.local",
		},
		{
			name:   "foreign origin",
			origin: "http://evil.com",
			method: http.MethodGet,
		},
		{
			name:   "same-origin request",
			method: http.MethodGet,
		},
		{
			name:          "preflight for a read",
			origin:        "http://localhost:5173",
			method:        http.MethodOptions,
			requestMethod: http.MethodGet,
			wantOrigin:    "http://localhost:5173",
			wantMethods:   http.MethodGet,
		},
		{
			name:          "preflight for a write",
			origin:        "http://localhost:5173",
			method:        http.MethodOptions,
			requestMethod: http.MethodPost,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/snapshot/queues", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.requestMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.requestMethod)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected Access-Control-Allow-Origin %q, got %q", tt.wantOrigin, got)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got != tt.wantMethods {
				t.Errorf("expected Access-Control-Allow-Methods %q, got %q", tt.wantMethods, got)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("expected credentials to be allowed for dashboard origins")
			}
		})
	}
}

func TestCORSPreflightStopsChain(t *testing.T) {
	reached := false
	handler := CORS([]string{"http://localhost:5173"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/ws", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if reached {
		t.Error("preflight should be answered without reaching auth or handlers")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Authorization" {
		t.Errorf("expected Authorization to be allowed, got %q", got)
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Togather-Foundation/eventplus/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	cfg := config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}}

	tests := []struct {
		name        string
		cfg         config.CORSConfig
		method      string
		origin      string
		preflight   bool
		wantStatus  int
		wantAllowed bool
	}{
		{"no origin", cfg, http.MethodGet, "", false, http.StatusOK, false},
		{"allowed origin", cfg, http.MethodGet, "https://APP.example.com", false, http.StatusOK, true},
		{"rejected origin", cfg, http.MethodGet, "https://evil.example.com", false, http.StatusOK, false},
		{"preflight", cfg, http.MethodOptions, "https://app.example.com", true, http.StatusNoContent, true},
		{"allow all", config.CORSConfig{AllowAllOrigins: true}, http.MethodGet, "http://localhost:3000", false, http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.cfg, zerolog.Nop())(okHandler())
			req := httptest.NewRequest(tt.method, "/api/v1/events", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantAllowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

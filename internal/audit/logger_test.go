package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) Entry {
	t.Helper()
	var wrapper struct {
		Audit Entry `json:"audit"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &wrapper), buf.String())
	return wrapper.Audit
}

func TestLogger_Success(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	req := httptest.NewRequest("DELETE", "/api/v1/events/01HX", nil)
	req.RemoteAddr = "192.168.1.1:54321"
	ctx := WithClientIP(context.Background(), req)

	logger.Success(ctx, "event.deleted", Actor{ID: "admin-1", Role: "administrator"}, "event", "01HX", map[string]string{"override": "true"})

	entry := decodeEntry(t, &buf)
	require.Equal(t, "event.deleted", entry.Action)
	require.Equal(t, "admin-1", entry.Actor)
	require.Equal(t, "administrator", entry.ActorRole)
	require.Equal(t, "192.168.1.1", entry.IPAddress)
	require.Equal(t, "success", entry.Status)
	require.Equal(t, "true", entry.Details["override"])
	require.False(t, entry.Timestamp.IsZero())
}

func TestLogger_Failure(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	logger.Failure(context.Background(), "user.type_changed", Actor{ID: "admin-1"}, "user", "u1", nil)

	entry := decodeEntry(t, &buf)
	require.Equal(t, "failure", entry.Status)
	require.Empty(t, entry.IPAddress)
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, remote: "1.1.1.1:80", expected: "10.0.0.1"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": "10.0.0.3"}, remote: "1.1.1.1:80", expected: "10.0.0.3"},
		{name: "remote addr", remote: "1.1.1.1:80", expected: "1.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.expected, extractClientIP(req))
		})
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	require.NotPanics(t, func() {
		logger.Success(context.Background(), "noop", Actor{}, "", "", nil)
	})
}

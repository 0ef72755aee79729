package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *ContentSafetyClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	opts = append([]Option{WithRateLimit(1000)}, opts...)
	return NewContentSafetyClient(server.URL+"/", "test-key", opts...)
}

func TestClassify_Verdicts(t *testing.T) {
	tests := []struct {
		name       string
		serverResp string
		threshold  int
		want       Verdict
	}{
		{
			name:       "all categories clean",
			serverResp: `{"blocklistsMatch":[],"categoriesAnalysis":[{"category":"Hate","severity":0},{"category":"Violence","severity":0}]}`,
			want:       Safe,
		},
		{
			name:       "low severity below default threshold",
			serverResp: `{"categoriesAnalysis":[{"category":"Hate","severity":2}]}`,
			want:       Safe,
		},
		{
			name:       "medium severity flagged",
			serverResp: `{"categoriesAnalysis":[{"category":"Violence","severity":4}]}`,
			want:       Unsafe,
		},
		{
			name:       "custom threshold",
			serverResp: `{"categoriesAnalysis":[{"category":"Hate","severity":2}]}`,
			threshold:  2,
			want:       Unsafe,
		},
		{
			name:       "blocklist hit",
			serverResp: `{"blocklistsMatch":[{"blocklistName":"events","blocklistItemText":"spam"}],"categoriesAnalysis":[{"category":"Hate","severity":0}]}`,
			want:       Unsafe,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/contentsafety/text:analyze", r.URL.Path)
				assert.Equal(t, DefaultAPIVersion, r.URL.Query().Get("api-version"))
				assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))

				var req analyzeRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "hello there", req.Text)
				assert.Equal(t, "FourSeverityLevels", req.OutputType)

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.serverResp))
			}, WithThreshold(tt.threshold))

			verdict, err := client.Classify(context.Background(), "hello there")
			require.NoError(t, err)
			assert.Equal(t, tt.want, verdict)
		})
	}
}

func TestClassify_FailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "throttled",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			},
		},
		{
			name: "empty analysis",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"categoriesAnalysis":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.Classify(context.Background(), "text")
			require.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestClassify_HonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Classify(ctx, "slow")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestBlocklist(t *testing.T) {
	oracle := NewBlocklist("Scam", " spam ")

	verdict, err := oracle.Classify(context.Background(), "Great event, see you there")
	require.NoError(t, err)
	assert.Equal(t, Safe, verdict)

	verdict, err = oracle.Classify(context.Background(), "total SCAM!!")
	require.NoError(t, err)
	assert.Equal(t, Unsafe, verdict)

	verdict, err = oracle.Classify(context.Background(), "scampi night")
	require.NoError(t, err)
	assert.Equal(t, Safe, verdict, "whole words only")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = oracle.Classify(ctx, "anything")
	require.ErrorIs(t, err, ErrUnavailable)
}

package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/Togather-Foundation/eventplus/internal/config"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(config.EmailConfig{
		Enabled:      true,
		Provider:     "resend",
		From:         "EventPlus <no-reply@example.com>",
		ResendAPIKey: "test-api-key",
	}, zerolog.Nop())
	require.NoError(t, err)

	baseURL, err := url.Parse(server.URL)
	require.NoError(t, err)
	svc.resendClient.BaseURL = baseURL
	return svc
}

func testMessage() message {
	return message{to: "recipient@example.com", subject: "Subject", html: "<p>body</p>", template: templateCommentRejected}
}

func TestTagValue(t *testing.T) {
	assert.Equal(t, "comment_rejected", tagValue(templateCommentRejected))
	assert.Equal(t, "odd_name_", tagValue("odd name!.html"))
}

func TestSendViaResendSuccess(t *testing.T) {
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))

		var req resend.SendEmailRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"recipient@example.com"}, req.To)
		assert.Equal(t, "Your comment is live", req.Subject)
		assert.Contains(t, req.Html, "See you there")
		assert.Contains(t, req.Html, "https://eventplus.example/api/v1/events/evt-1")
		require.Len(t, req.Tags, 1)
		assert.Equal(t, resend.Tag{Name: "notification", Value: "comment_published"}, req.Tags[0])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "mock-email-id-123"})
	})

	err := svc.Send(context.Background(), "recipient@example.com", "Your comment is live", templateCommentPublished, CommentData{
		Username:  "ana",
		Text:      "See you there",
		EventLink: "https://eventplus.example/api/v1/events/evt-1",
	})
	require.NoError(t, err)
}

func TestSendViaResendRateLimited(t *testing.T) {
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-RateLimit-Limit", "100")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Rate limit exceeded"})
	})

	err := svc.deliver(context.Background(), testMessage())
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestSendViaResendAPIError(t *testing.T) {
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "Invalid request", "name": "validation_error"})
	})

	err := svc.deliver(context.Background(), testMessage())
	require.ErrorContains(t, err, "resend API error")
}

func TestSendViaResendCancelledContext(t *testing.T) {
	svc := newMockedService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called with a cancelled context")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := svc.deliver(ctx, testMessage())
	require.ErrorContains(t, err, "context canceled")
}

func TestSendViaResendNilClient(t *testing.T) {
	svc := &Service{config: config.EmailConfig{Enabled: true}, logger: zerolog.Nop()}
	err := svc.deliver(context.Background(), testMessage())
	require.ErrorContains(t, err, "not initialized")
}

func TestSendDisabledDoesNotCallResend(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	svc, err := NewService(config.EmailConfig{Enabled: false}, zerolog.Nop())
	require.NoError(t, err)
	require.Nil(t, svc.resendClient)

	err = svc.Send(context.Background(), "recipient@example.com", "Subject", templateCommentRejected, CommentData{Reason: "x"})
	require.NoError(t, err)
	require.Zero(t, calls.Load())
}

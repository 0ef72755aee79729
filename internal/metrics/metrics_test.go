package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river/rivertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareUsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/events/{id}", HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	for i := range 3 {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/events/%d", i), nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	count := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/events/{id}", "418"))
	assert.Equal(t, float64(3), count)
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Not Found", http.StatusNotFound},
		{"Internal Server Error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))
			assert.Equal(t, tt.statusCode, rec.Code)
		})
	}
}

func TestRouteLabel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, "unmatched", routeLabel(req))

	req.Pattern = "POST /api/v1/events/{id}/attendance"
	assert.Equal(t, "/api/v1/events/{id}/attendance", routeLabel(req))

	req.Pattern = "/healthz"
	assert.Equal(t, "/healthz", routeLabel(req))
}

func TestRecordQuery(t *testing.T) {
	RecordQuery("test_select", time.Now(), nil)
	assert.NotZero(t, testutil.CollectAndCount(DBQueryDuration))

	before := testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled"))
	RecordQuery("test_failed", time.Now(), fmt.Errorf("wrapped: %w", context.Canceled))
	assert.Equal(t, before+1, testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled")))
}

func TestClassifyDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"canceled", context.Canceled, "canceled"},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), "timeout"},
		{"serialization", &pgconn.PgError{Code: "40001"}, "serialization"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, "serialization"},
		{"unique", &pgconn.PgError{Code: "23505"}, "constraint"},
		{"check", &pgconn.PgError{Code: "23514"}, "constraint"},
		{"other pg", &pgconn.PgError{Code: "42P01"}, "query_error"},
		{"plain", errors.New("boom"), "query_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyDBError(tt.err))
		})
	}
}

func TestPoolCollectorNilPool(t *testing.T) {
	c := &PoolCollector{}
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestJobHook(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	started := now.Add(-2 * time.Second)
	hook := &JobHook{now: func() time.Time { return now }}
	kind := "test_kind"

	require.NoError(t, hook.InsertBegin(context.Background(), &rivertype.JobInsertParams{Kind: kind}))
	assert.Equal(t, float64(1), testutil.ToFloat64(JobsEnqueued.WithLabelValues(kind)))

	job := &rivertype.JobRow{ID: 42, Kind: kind, Attempt: 1, MaxAttempts: 3, AttemptedAt: &started}
	require.NoError(t, hook.WorkBegin(context.Background(), job))
	assert.Equal(t, float64(1), testutil.ToFloat64(JobsRunning.WithLabelValues(kind)))

	require.NoError(t, hook.WorkEnd(context.Background(), job, nil))
	assert.Equal(t, float64(0), testutil.ToFloat64(JobsRunning.WithLabelValues(kind)))
	assert.Equal(t, float64(1), testutil.ToFloat64(JobAttempts.WithLabelValues(kind, "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(JobDuration, namespace+"_job_duration_seconds"))
}

func TestAttemptResult(t *testing.T) {
	boom := errors.New("oracle unavailable")
	assert.Equal(t, "ok", attemptResult(&rivertype.JobRow{Attempt: 5, MaxAttempts: 5}, nil))
	assert.Equal(t, "retry", attemptResult(&rivertype.JobRow{Attempt: 2, MaxAttempts: 5}, boom))
	assert.Equal(t, "exhausted", attemptResult(&rivertype.JobRow{Attempt: 5, MaxAttempts: 5}, boom))
}

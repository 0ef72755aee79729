package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

var (
	JobsEnqueued = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Background jobs inserted, by kind",
		},
		[]string{"kind"},
	)

	JobsRunning = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Background jobs currently being worked",
		},
		[]string{"kind"},
	)

	JobDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from attempt start to completion",
			Buckets:   []float64{.01, .05, .1, .5, 1, 3, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	// JobAttempts counts finished attempts. result is ok, retry or exhausted;
	// exhausted means the job will not run again.
	JobAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_attempts_total",
			Help:      "Background job attempts by result",
		},
		[]string{"kind", "result"},
	)
)

// JobHook feeds River insert and work events into the job metrics.
type JobHook struct {
	river.HookDefaults
	now func() time.Time
}

func NewJobHook() *JobHook {
	return &JobHook{now: time.Now}
}

func (h *JobHook) InsertBegin(_ context.Context, params *rivertype.JobInsertParams) error {
	JobsEnqueued.WithLabelValues(params.Kind).Inc()
	return nil
}

func (h *JobHook) WorkBegin(_ context.Context, job *rivertype.JobRow) error {
	JobsRunning.WithLabelValues(job.Kind).Inc()
	return nil
}

func (h *JobHook) WorkEnd(_ context.Context, job *rivertype.JobRow, err error) error {
	JobsRunning.WithLabelValues(job.Kind).Dec()
	if job.AttemptedAt != nil {
		JobDuration.WithLabelValues(job.Kind).Observe(h.now().Sub(*job.AttemptedAt).Seconds())
	}
	JobAttempts.WithLabelValues(job.Kind, attemptResult(job, err)).Inc()
	return nil
}

func attemptResult(job *rivertype.JobRow, err error) string {
	switch {
	case err == nil:
		return "ok"
	case job.Attempt >= job.MaxAttempts:
		return "exhausted"
	default:
		return "retry"
	}
}

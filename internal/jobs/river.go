package jobs

import (
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
)

const (
	JobKindCommentModeration = "comment_moderation"
	JobKindStaleCommentSweep = "stale_comment_sweep"
)

const (
	QueueModeration = "moderation"

	// ModerationMaxAttempts counts every background attempt at classifying a
	// pending comment. The final failed attempt rejects the comment.
	ModerationMaxAttempts = 5
	SweepMaxAttempts      = 1
)

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

// NewRetryPolicy returns the default retry policy configuration.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   30 * time.Second,
			MaxDelay:    10 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindCommentModeration: {
				MaxAttempts: ModerationMaxAttempts,
				BaseDelay:   15 * time.Second,
				MaxDelay:    5 * time.Minute,
			},
			JobKindStaleCommentSweep: {
				MaxAttempts: SweepMaxAttempts,
			},
		},
	}
}

// WithModerationRetry overrides the moderation retry schedule from configuration.
func (p *RetryPolicy) WithModerationRetry(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	config := p.configFor(JobKindCommentModeration)
	if maxAttempts > 0 {
		config.MaxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		config.BaseDelay = baseDelay
	}
	if maxDelay > 0 {
		config.MaxDelay = maxDelay
	}
	p.ByKind[JobKindCommentModeration] = config
	return p
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := max(job.Attempt, 1)
	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

// InsertOptsForKind returns default insert options for a job kind.
func (p *RetryPolicy) InsertOptsForKind(kind string) river.InsertOpts {
	config := p.configFor(kind)
	opts := river.InsertOpts{MaxAttempts: config.MaxAttempts}
	if kind == JobKindCommentModeration {
		opts.Queue = QueueModeration
		// One live retry job per comment, however often it is scheduled.
		opts.UniqueOpts = river.UniqueOpts{ByArgs: true}
	}
	return opts
}

// ClientOptions collects what the River client is built from.
type ClientOptions struct {
	Policy       *RetryPolicy
	Workers      *river.Workers
	Logger       *slog.Logger
	Hooks        []rivertype.Hook
	PeriodicJobs []*river.PeriodicJob
	// Abandoner settles comments whose moderation job is discarded.
	Abandoner CommentAbandoner
}

// NewClientConfig builds the River configuration: moderation runs on its own
// queue, and final failures go through FailureHandler.
func NewClientConfig(opts ClientOptions) *river.Config {
	policy := opts.Policy
	if policy == nil {
		policy = NewRetryPolicy()
	}
	return &river.Config{
		Workers:      opts.Workers,
		RetryPolicy:  policy,
		MaxAttempts:  policy.Default.MaxAttempts,
		PeriodicJobs: opts.PeriodicJobs,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
			QueueModeration:    {MaxWorkers: 5},
		},
		Hooks:        opts.Hooks,
		Logger:       opts.Logger,
		ErrorHandler: &FailureHandler{Logger: opts.Logger, Abandoner: opts.Abandoner},
	}
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, config *river.Config) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), config)
}

// NewPeriodicJobs returns the periodic schedule: the stale comment sweep every
// interval, starting as soon as the client starts.
func NewPeriodicJobs(sweepInterval time.Duration) []*river.PeriodicJob {
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Minute
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(sweepInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return StaleCommentSweepArgs{}, &river.InsertOpts{MaxAttempts: SweepMaxAttempts}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: 3, BaseDelay: 30 * time.Second, MaxDelay: 10 * time.Minute}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}

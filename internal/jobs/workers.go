package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/riverqueue/river"
)

// CommentModerator is the part of the comment pipeline the retry worker drives.
type CommentModerator interface {
	RetryModeration(ctx context.Context, commentID string, attempt, maxAttempts int) (events.Comment, error)
}

// StaleCommentFinder lists comments left pending longer than expected.
type StaleCommentFinder interface {
	StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]events.Comment, error)
}

// CommentModerationArgs asks for another classification attempt on a pending comment.
type CommentModerationArgs struct {
	CommentID string `json:"comment_id"`
}

func (CommentModerationArgs) Kind() string { return JobKindCommentModeration }

// CommentModerationWorker retries moderation until the comment reaches a terminal
// state. Attempt numbering comes from River, so the pipeline can reject the
// comment itself on the last attempt instead of leaving it pending forever.
type CommentModerationWorker struct {
	river.WorkerDefaults[CommentModerationArgs]
	Moderator  CommentModerator
	Logger     *slog.Logger
	JobTimeout time.Duration
}

func (CommentModerationWorker) Kind() string { return JobKindCommentModeration }

func (w CommentModerationWorker) Timeout(*river.Job[CommentModerationArgs]) time.Duration {
	if w.JobTimeout > 0 {
		return w.JobTimeout
	}
	return 30 * time.Second
}

func (w CommentModerationWorker) Work(ctx context.Context, job *river.Job[CommentModerationArgs]) error {
	if w.Moderator == nil {
		return fmt.Errorf("comment moderator not configured")
	}
	if job == nil {
		return fmt.Errorf("comment moderation job missing")
	}
	if job.Args.CommentID == "" {
		return river.JobCancel(fmt.Errorf("comment ID is required"))
	}

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	comment, err := w.Moderator.RetryModeration(ctx, job.Args.CommentID, job.Attempt, job.MaxAttempts)
	switch {
	case errors.Is(err, events.ErrCommentNotFound):
		return river.JobCancel(err)
	case err != nil:
		logger.Warn("moderation attempt failed",
			"comment_id", job.Args.CommentID,
			"attempt", job.Attempt,
			"max_attempts", job.MaxAttempts,
			"error", err,
		)
		return err
	}

	logger.Info("comment moderated",
		"comment_id", comment.ID,
		"status", string(comment.Status),
		"reason", string(comment.RejectionReason),
		"attempt", job.Attempt,
	)
	return nil
}

// StaleCommentSweepArgs triggers a pass over comments stuck in pending review.
type StaleCommentSweepArgs struct{}

func (StaleCommentSweepArgs) Kind() string { return JobKindStaleCommentSweep }

// StaleCommentSweepWorker re-enqueues moderation for pending comments whose
// retry job was never scheduled, for example because the queue was down when
// the comment was submitted. Duplicate jobs are skipped by the unique options.
type StaleCommentSweepWorker struct {
	river.WorkerDefaults[StaleCommentSweepArgs]
	Comments  StaleCommentFinder
	Scheduler events.RetryScheduler
	OlderThan time.Duration
	BatchSize int
	Logger    *slog.Logger
}

func (StaleCommentSweepWorker) Kind() string { return JobKindStaleCommentSweep }

func (w StaleCommentSweepWorker) Work(ctx context.Context, job *river.Job[StaleCommentSweepArgs]) error {
	if w.Comments == nil || w.Scheduler == nil {
		return fmt.Errorf("stale comment sweep not configured")
	}

	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}
	olderThan := w.OlderThan
	if olderThan <= 0 {
		olderThan = 10 * time.Minute
	}
	batch := w.BatchSize
	if batch <= 0 {
		batch = 100
	}

	stale, err := w.Comments.StalePending(ctx, olderThan, batch)
	if err != nil {
		return fmt.Errorf("list stale comments: %w", err)
	}

	var failed int
	for _, comment := range stale {
		if err := w.Scheduler.ScheduleModeration(ctx, comment.ID); err != nil {
			failed++
			logger.Error("failed to reschedule moderation", "comment_id", comment.ID, "error", err)
		}
	}

	if len(stale) > 0 {
		logger.Info("stale comment sweep completed", "found", len(stale), "failed", failed)
	}
	if failed > 0 {
		return fmt.Errorf("reschedule moderation: %d of %d failed", failed, len(stale))
	}
	return nil
}

// WorkerDeps holds what the workers need.
type WorkerDeps struct {
	Moderator  CommentModerator
	Stale      StaleCommentFinder
	Scheduler  events.RetryScheduler
	StaleAfter time.Duration
	JobTimeout time.Duration
	Logger     *slog.Logger
}

func NewWorkers(deps WorkerDeps) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[CommentModerationArgs](workers, CommentModerationWorker{
		Moderator:  deps.Moderator,
		Logger:     deps.Logger,
		JobTimeout: deps.JobTimeout,
	})
	river.AddWorker[StaleCommentSweepArgs](workers, StaleCommentSweepWorker{
		Comments:  deps.Stale,
		Scheduler: deps.Scheduler,
		OlderThan: deps.StaleAfter,
		Logger:    deps.Logger,
	})
	return workers
}

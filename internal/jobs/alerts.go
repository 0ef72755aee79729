package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// CommentAbandoner settles a comment whose moderation job will not run again.
type CommentAbandoner interface {
	AbandonModeration(ctx context.Context, commentID string) (events.Comment, error)
}

// FailureHandler is River's error handler. Failures before the last attempt
// are logged at warn. When a moderation job fails for the last time, including
// by panic or timeout, its comment is rejected so it never stays pending.
type FailureHandler struct {
	Logger    *slog.Logger
	Abandoner CommentAbandoner
}

var _ river.ErrorHandler = (*FailureHandler)(nil)

func (h *FailureHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	h.handle(ctx, job, err, "")
	return nil
}

func (h *FailureHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	h.handle(ctx, job, fmt.Errorf("panic: %v", panicVal), trace)
	return nil
}

func (h *FailureHandler) handle(ctx context.Context, job *rivertype.JobRow, err error, trace string) {
	final := job.Attempt >= job.MaxAttempts
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "max_attempts", job.MaxAttempts, "error", err}
	if trace != "" {
		attrs = append(attrs, "trace", trace)
	}
	if !final {
		logger.WarnContext(ctx, "job attempt failed", attrs...)
		return
	}
	logger.ErrorContext(ctx, "job gave up", attrs...)

	if job.Kind != JobKindCommentModeration || h.Abandoner == nil {
		return
	}
	var args CommentModerationArgs
	if err := json.Unmarshal(job.EncodedArgs, &args); err != nil || args.CommentID == "" {
		logger.ErrorContext(ctx, "moderation job args unreadable", "job_id", job.ID, "error", err)
		return
	}
	comment, abandonErr := h.Abandoner.AbandonModeration(ctx, args.CommentID)
	if abandonErr != nil {
		logger.ErrorContext(ctx, "could not reject abandoned comment", "comment_id", args.CommentID, "error", abandonErr)
		return
	}
	logger.InfoContext(ctx, "abandoned comment settled", "comment_id", comment.ID, "status", string(comment.Status))
}

package events

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Togather-Foundation/eventplus/internal/audit"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/ids"
	"github.com/Togather-Foundation/eventplus/internal/metrics"
	"github.com/Togather-Foundation/eventplus/internal/moderation"
	"github.com/Togather-Foundation/eventplus/internal/sanitize"
	"github.com/Togather-Foundation/eventplus/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxCommentLength = 2000

	// DefaultModerationTimeout bounds the inline oracle call made while the author waits.
	DefaultModerationTimeout = 3 * time.Second
)

// RetryScheduler hands a pending comment to the background moderation worker.
type RetryScheduler interface {
	ScheduleModeration(ctx context.Context, commentID string) error
}

// Notifier tells an author that a comment they are no longer waiting on was resolved.
type Notifier interface {
	CommentResolved(ctx context.Context, comment Comment) error
}

// Pipeline gates comment visibility on the moderation oracle.
//
// A comment is stored as PendingReview first, then classified inline with a
// bounded timeout. When the oracle cannot answer, the comment stays pending and
// the RetryScheduler owns further attempts.
type Pipeline struct {
	store    Store
	oracle   moderation.Oracle
	retries  RetryScheduler
	notifier Notifier
	audit    *audit.Logger
	timeout  time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

type PipelineOption func(*Pipeline)

func WithRetryScheduler(s RetryScheduler) PipelineOption {
	return func(p *Pipeline) {
		p.retries = s
	}
}

func WithNotifier(n Notifier) PipelineOption {
	return func(p *Pipeline) {
		p.notifier = n
	}
}

func WithModerationTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithAuditLogger(l *audit.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.audit = l
	}
}

func NewPipeline(store Store, oracle moderation.Oracle, logger zerolog.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:   store,
		oracle:  oracle,
		timeout: DefaultModerationTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger.With().Str("component", "comments").Logger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetRetryScheduler wires the background worker after construction; the worker
// itself depends on the pipeline.
func (p *Pipeline) SetRetryScheduler(s RetryScheduler) {
	p.retries = s
}

// Submit stores a comment and tries to moderate it before returning. The returned
// comment is Published, Rejected (unsafe_content) or, when the oracle is
// unavailable, PendingReview.
func (p *Pipeline) Submit(ctx context.Context, principal auth.Principal, id string, text string) (comment Comment, err error) {
	ctx, span := telemetry.GetTracer(tracerName).Start(ctx, "comments.Submit")
	defer func() { endSpan(span, err) }()

	if err := auth.Authorize(principal, auth.ActionPostComment, auth.Target{}).Err(auth.ActionPostComment); err != nil {
		return Comment{}, err
	}
	body := sanitize.Comment(text)
	if n := utf8.RuneCountInString(body); n < 1 || n > maxCommentLength {
		return Comment{}, ErrInvalidComment
	}
	eventID, err := ids.Normalize(id)
	if err != nil {
		return Comment{}, ErrNotFound
	}
	commentID, err := ids.NewULID()
	if err != nil {
		return Comment{}, fmt.Errorf("generate comment id: %w", err)
	}
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("comment.id", commentID))

	err = p.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.Events().LockShared(ctx, eventID); err != nil {
			return err
		}
		comment, err = tx.Comments().Insert(ctx, Comment{
			ID:                 commentID,
			EventID:            eventID,
			AuthorID:           principal.UserID,
			Text:               body,
			Status:             CommentPendingReview,
			ModerationAttempts: 1,
			CreatedAt:          p.now(),
		})
		return err
	})
	if err != nil {
		return Comment{}, err
	}

	// The row exists now; its outcome must be persisted even if the caller goes away.
	persistCtx := context.WithoutCancel(ctx)

	verdict, classifyErr := p.classify(ctx, "inline", body)
	if classifyErr != nil {
		p.logger.Warn().Err(classifyErr).Str("comment_id", comment.ID).Msg("moderation unavailable, deferring to retry worker")
		p.schedule(persistCtx, comment.ID)
		metrics.CommentsSubmitted.WithLabelValues(string(comment.Status)).Inc()
		return comment, nil
	}

	resolved, err := p.resolve(persistCtx, comment.ID, resolutionFor(verdict, p.now()))
	if err != nil {
		return Comment{}, err
	}
	metrics.CommentsSubmitted.WithLabelValues(string(resolved.Status)).Inc()
	return resolved, nil
}

// RetryModeration is the background worker's entry point. It is a no-op for
// terminal comments. A failed final attempt rejects the comment with
// moderation_unavailable; any earlier failure is returned so the caller retries.
func (p *Pipeline) RetryModeration(ctx context.Context, commentID string, attempt, maxAttempts int) (Comment, error) {
	comment, err := p.store.Comments().Get(ctx, commentID)
	if err != nil {
		return Comment{}, err
	}
	if comment.Status.Terminal() {
		return comment, nil
	}
	if comment, err = p.store.Comments().RecordAttempt(ctx, commentID); err != nil {
		if errors.Is(err, ErrCommentFinalized) {
			return p.store.Comments().Get(ctx, commentID)
		}
		return Comment{}, err
	}

	verdict, classifyErr := p.classify(ctx, "retry", comment.Text)

	var resolution Resolution
	switch {
	case classifyErr == nil:
		resolution = resolutionFor(verdict, p.now())
	case attempt >= maxAttempts:
		p.logger.Warn().Err(classifyErr).Str("comment_id", commentID).Int("attempt", attempt).Msg("moderation retries exhausted")
		resolution = Resolution{Status: CommentRejected, Reason: ReasonModerationUnavailable, ResolvedAt: p.now()}
	default:
		return comment, ErrModerationUnavailable.WithCause(classifyErr)
	}

	resolved, err := p.resolve(ctx, commentID, resolution)
	if err != nil {
		return Comment{}, err
	}
	p.notify(ctx, resolved)
	return resolved, nil
}

// AbandonModeration rejects a comment whose background moderation gave up
// without reaching a verdict, for example after a worker panic or timeout on
// the last attempt. Terminal comments are returned unchanged.
func (p *Pipeline) AbandonModeration(ctx context.Context, commentID string) (Comment, error) {
	comment, err := p.store.Comments().Get(ctx, commentID)
	if err != nil {
		return Comment{}, err
	}
	if comment.Status.Terminal() {
		return comment, nil
	}
	resolved, err := p.resolve(ctx, commentID, Resolution{
		Status:     CommentRejected,
		Reason:     ReasonModerationUnavailable,
		ResolvedAt: p.now(),
	})
	if err != nil {
		return Comment{}, err
	}
	p.notify(ctx, resolved)
	return resolved, nil
}

// Moderate applies an administrator's manual verdict to a pending comment.
func (p *Pipeline) Moderate(ctx context.Context, principal auth.Principal, commentID string, verdict moderation.Verdict) (Comment, error) {
	if err := auth.Authorize(principal, auth.ActionModerateComment, auth.Target{}).Err(auth.ActionModerateComment); err != nil {
		return Comment{}, err
	}
	id, err := ids.Normalize(commentID)
	if err != nil {
		return Comment{}, ErrCommentNotFound
	}

	resolution := Resolution{Status: CommentPublished, ResolvedAt: p.now()}
	if verdict != moderation.Safe {
		resolution = Resolution{Status: CommentRejected, Reason: ReasonModeratorRejected, ResolvedAt: p.now()}
	}

	resolved, err := p.store.Comments().Resolve(ctx, id, resolution)
	if err != nil {
		p.audit.Failure(ctx, "comment.moderated", actorOf(principal), "comment", id, map[string]string{"verdict": verdict.String()})
		return Comment{}, err
	}
	recordResolution(resolved)

	p.audit.Success(ctx, "comment.moderated", actorOf(principal), "comment", id, map[string]string{
		"verdict": verdict.String(),
		"status":  string(resolved.Status),
	})
	p.notify(ctx, resolved)
	return resolved, nil
}

// List pages the comments on an event that principal may see. Owners and
// administrators audit every comment; others see published ones and their own.
func (p *Pipeline) List(ctx context.Context, principal auth.Principal, id string, pagination Pagination) (CommentPage, error) {
	eventID, err := ids.Normalize(id)
	if err != nil {
		return CommentPage{}, ErrNotFound
	}
	event, err := p.store.Events().Get(ctx, eventID)
	if err != nil {
		return CommentPage{}, err
	}

	scope := CommentScope{All: auth.CanAudit(principal, auth.Target{OwnerID: event.OrganizerID})}
	if principal.Authenticated() {
		scope.ViewerID = principal.UserID
	}
	return p.store.Comments().ListByEvent(ctx, eventID, scope, pagination.bounded())
}

// Get returns a single comment when principal may see it.
func (p *Pipeline) Get(ctx context.Context, principal auth.Principal, commentID string) (Comment, error) {
	id, err := ids.Normalize(commentID)
	if err != nil {
		return Comment{}, ErrCommentNotFound
	}
	comment, err := p.store.Comments().Get(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	if comment.Status == CommentPublished || (principal.Authenticated() && comment.AuthorID == principal.UserID) {
		return comment, nil
	}
	event, err := p.store.Events().Get(ctx, comment.EventID)
	if err == nil && auth.CanAudit(principal, auth.Target{OwnerID: event.OrganizerID}) {
		return comment, nil
	}
	if principal.IsAdmin() {
		return comment, nil
	}
	return Comment{}, ErrCommentNotFound
}

// StalePending lists pending comments created before now-olderThan, for the sweep
// that re-enqueues comments whose retry job was never scheduled.
func (p *Pipeline) StalePending(ctx context.Context, olderThan time.Duration, limit int) ([]Comment, error) {
	return p.store.Comments().ListStalePending(ctx, p.now().Add(-olderThan), limit)
}

func (p *Pipeline) classify(ctx context.Context, path, text string) (moderation.Verdict, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	verdict, err := p.oracle.Classify(callCtx, text)
	metrics.ModerationLatency.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModerationVerdicts.WithLabelValues(path, "unavailable").Inc()
		return moderation.Unsafe, err
	}
	metrics.ModerationVerdicts.WithLabelValues(path, verdict.String()).Inc()
	return verdict, nil
}

// resolve applies a terminal state. When the comment was finalized concurrently,
// for example by a cascade delete, the stored state wins and is returned.
func (p *Pipeline) resolve(ctx context.Context, commentID string, resolution Resolution) (Comment, error) {
	resolved, err := p.store.Comments().Resolve(ctx, commentID, resolution)
	if errors.Is(err, ErrCommentFinalized) {
		return p.store.Comments().Get(ctx, commentID)
	}
	if err != nil {
		return Comment{}, err
	}
	recordResolution(resolved)
	p.logger.Info().
		Str("comment_id", resolved.ID).
		Str("status", string(resolved.Status)).
		Str("reason", string(resolved.RejectionReason)).
		Msg("comment resolved")
	return resolved, nil
}

func (p *Pipeline) schedule(ctx context.Context, commentID string) {
	if p.retries == nil {
		p.logger.Warn().Str("comment_id", commentID).Msg("no retry scheduler configured, comment left for sweep")
		return
	}
	if err := p.retries.ScheduleModeration(ctx, commentID); err != nil {
		p.logger.Error().Err(err).Str("comment_id", commentID).Msg("failed to schedule moderation retry")
	}
}

func (p *Pipeline) notify(ctx context.Context, comment Comment) {
	if p.notifier == nil || !comment.Status.Terminal() {
		return
	}
	if err := p.notifier.CommentResolved(ctx, comment); err != nil {
		p.logger.Warn().Err(err).Str("comment_id", comment.ID).Msg("author notification failed")
	}
}

func recordResolution(c Comment) {
	metrics.CommentsResolved.WithLabelValues(string(c.Status), string(c.RejectionReason)).Inc()
}

package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ events.CommentRepository = (*CommentRepository)(nil)

type CommentRepository struct {
	q queryer
}

const commentColumns = `id, event_id, author_id, body, status, COALESCE(rejection_reason, ''),
       moderation_attempts, created_at, moderated_at`

func scanComment(row pgx.Row) (events.Comment, error) {
	var (
		c           events.Comment
		status      string
		reason      string
		moderatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&c.ID, &c.EventID, &c.AuthorID, &c.Text, &status, &reason,
		&c.ModerationAttempts, &c.CreatedAt, &moderatedAt); err != nil {
		return events.Comment{}, err
	}
	c.Status = events.CommentStatus(status)
	c.RejectionReason = events.RejectionReason(reason)
	c.CreatedAt = c.CreatedAt.UTC()
	c.ModeratedAt = timestamptzPtr(moderatedAt)
	return c, nil
}

func (r *CommentRepository) Insert(ctx context.Context, comment events.Comment) (inserted events.Comment, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("comments.insert", start, err) }()

	inserted, err = scanComment(r.q.QueryRow(ctx, `
INSERT INTO comments (id, event_id, author_id, body, status, rejection_reason, moderation_attempts, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
RETURNING `+commentColumns,
		comment.ID, comment.EventID, comment.AuthorID, comment.Text, string(comment.Status),
		string(comment.RejectionReason), comment.ModerationAttempts, comment.CreatedAt))
	if err != nil {
		return events.Comment{}, translate("insert comment", err)
	}
	return inserted, nil
}

func (r *CommentRepository) Get(ctx context.Context, id string) (comment events.Comment, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("comments.get", start, err) }()

	comment, err = scanComment(r.q.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return events.Comment{}, events.ErrCommentNotFound
	}
	if err != nil {
		return events.Comment{}, translate("get comment", err)
	}
	return comment, nil
}

// Resolve moves a pending comment to its terminal state. The status guard in the
// WHERE clause makes the transition happen at most once.
func (r *CommentRepository) Resolve(ctx context.Context, id string, resolution events.Resolution) (events.Comment, error) {
	return r.updatePending(ctx, "comments.resolve", `
UPDATE comments
   SET status = $2, rejection_reason = NULLIF($3, ''), moderated_at = $4
 WHERE id = $1 AND status = 'pending_review'
RETURNING `+commentColumns,
		id, string(resolution.Status), string(resolution.Reason), resolution.ResolvedAt)
}

func (r *CommentRepository) RecordAttempt(ctx context.Context, id string) (events.Comment, error) {
	return r.updatePending(ctx, "comments.record_attempt", `
UPDATE comments
   SET moderation_attempts = moderation_attempts + 1
 WHERE id = $1 AND status = 'pending_review'
RETURNING `+commentColumns, id)
}

func (r *CommentRepository) RejectPending(ctx context.Context, eventID string, reason events.RejectionReason, at time.Time) (count int, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("comments.reject_pending", start, err) }()

	tag, err := r.q.Exec(ctx, `
UPDATE comments
   SET status = 'rejected', rejection_reason = $2, moderated_at = $3
 WHERE event_id = $1 AND status = 'pending_review'`, eventID, string(reason), at)
	if err != nil {
		return 0, translate("reject pending comments", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListByEvent applies the scope in SQL so every page is full.
func (r *CommentRepository) ListByEvent(ctx context.Context, eventID string, scope events.CommentScope, pagination events.Pagination) (events.CommentPage, error) {
	list, err := r.list(ctx, "comments.list_by_event", `
SELECT `+commentColumns+`
  FROM comments
 WHERE event_id = $1
   AND ($2::boolean OR status = 'published' OR author_id = $3)
   AND id > $4
 ORDER BY id
 LIMIT $5`, eventID, scope.All, scope.ViewerID, strings.ToUpper(pagination.After), pageLimit(pagination))
	if err != nil {
		return events.CommentPage{}, err
	}
	page := events.CommentPage{Comments: list}
	if pagination.Limit > 0 && len(list) > pagination.Limit {
		page.Comments = list[:pagination.Limit]
		page.NextCursor = page.Comments[pagination.Limit-1].ID
	}
	return page, nil
}

func (r *CommentRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]events.Comment, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, "comments.list_stale_pending", `
SELECT `+commentColumns+`
  FROM comments
 WHERE status = 'pending_review' AND created_at < $1
 ORDER BY created_at
 LIMIT $2`, olderThan, limit)
}

func (r *CommentRepository) updatePending(ctx context.Context, op string, sql string, args ...any) (comment events.Comment, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(op, start, err) }()

	comment, err = scanComment(r.q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the comment does not exist or it is already terminal.
		id, _ := args[0].(string)
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return events.Comment{}, getErr
		}
		return events.Comment{}, events.ErrCommentFinalized
	}
	if err != nil {
		return events.Comment{}, translate(op, err)
	}
	return comment, nil
}

func (r *CommentRepository) list(ctx context.Context, op string, sql string, args ...any) (list []events.Comment, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(op, start, err) }()

	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	list, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.Comment, error) {
		return scanComment(row)
	})
	if err != nil {
		return nil, translate(op, err)
	}
	return list, nil
}

package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
)

type commentRepository struct {
	s *Store
}

func (r *commentRepository) Insert(ctx context.Context, comment events.Comment) (events.Comment, error) {
	err := r.s.with(func(d *data) error {
		d.comments[comment.ID] = comment
		return nil
	})
	return comment, err
}

func (r *commentRepository) Get(ctx context.Context, id string) (events.Comment, error) {
	var comment events.Comment
	err := r.s.with(func(d *data) error {
		var ok bool
		if comment, ok = d.comments[id]; !ok {
			return events.ErrCommentNotFound
		}
		return nil
	})
	return comment, err
}

func (r *commentRepository) Resolve(ctx context.Context, id string, resolution events.Resolution) (events.Comment, error) {
	return r.updatePending(id, func(c *events.Comment) {
		moderatedAt := resolution.ResolvedAt
		c.Status = resolution.Status
		c.RejectionReason = resolution.Reason
		c.ModeratedAt = &moderatedAt
	})
}

func (r *commentRepository) RecordAttempt(ctx context.Context, id string) (events.Comment, error) {
	return r.updatePending(id, func(c *events.Comment) {
		c.ModerationAttempts++
	})
}

func (r *commentRepository) RejectPending(ctx context.Context, eventID string, reason events.RejectionReason, at time.Time) (int, error) {
	count := 0
	err := r.s.with(func(d *data) error {
		for id, c := range d.comments {
			if c.EventID != eventID || c.Status != events.CommentPendingReview {
				continue
			}
			moderatedAt := at
			c.Status = events.CommentRejected
			c.RejectionReason = reason
			c.ModeratedAt = &moderatedAt
			d.comments[id] = c
			count++
		}
		return nil
	})
	return count, err
}

func (r *commentRepository) ListByEvent(ctx context.Context, eventID string, scope events.CommentScope, pagination events.Pagination) (events.CommentPage, error) {
	var page events.CommentPage
	err := r.s.with(func(d *data) error {
		var list []events.Comment
		for _, c := range d.comments {
			if c.EventID != eventID || (pagination.After != "" && c.ID <= pagination.After) {
				continue
			}
			if scope.All || c.Status == events.CommentPublished || (scope.ViewerID != "" && c.AuthorID == scope.ViewerID) {
				list = append(list, c)
			}
		}
		slices.SortFunc(list, func(a, b events.Comment) int { return strings.Compare(a.ID, b.ID) })
		if pagination.Limit > 0 && len(list) > pagination.Limit {
			list = list[:pagination.Limit]
			page.NextCursor = list[len(list)-1].ID
		}
		page.Comments = list
		return nil
	})
	return page, err
}

func (r *commentRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]events.Comment, error) {
	var list []events.Comment
	err := r.s.with(func(d *data) error {
		for _, c := range d.comments {
			if c.Status == events.CommentPendingReview && c.CreatedAt.Before(olderThan) {
				list = append(list, c)
			}
		}
		slices.SortFunc(list, func(a, b events.Comment) int { return a.CreatedAt.Compare(b.CreatedAt) })
		if limit > 0 && len(list) > limit {
			list = list[:limit]
		}
		return nil
	})
	return list, err
}

func (r *commentRepository) updatePending(id string, fn func(c *events.Comment)) (events.Comment, error) {
	var updated events.Comment
	err := r.s.with(func(d *data) error {
		current, ok := d.comments[id]
		if !ok {
			return events.ErrCommentNotFound
		}
		if current.Status.Terminal() {
			return events.ErrCommentFinalized
		}
		fn(&current)
		d.comments[id] = current
		updated = current
		return nil
	})
	return updated, err
}

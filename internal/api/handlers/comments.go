package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/api/pagination"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/moderation"
)

// CommentPipeline is the slice of events.Pipeline the HTTP layer needs.
type CommentPipeline interface {
	Submit(ctx context.Context, principal auth.Principal, eventID string, text string) (events.Comment, error)
	List(ctx context.Context, principal auth.Principal, eventID string, pagination events.Pagination) (events.CommentPage, error)
	Get(ctx context.Context, principal auth.Principal, commentID string) (events.Comment, error)
	Moderate(ctx context.Context, principal auth.Principal, commentID string, verdict moderation.Verdict) (events.Comment, error)
}

type CommentsHandler struct {
	Pipeline CommentPipeline
	*Responder
}

func NewCommentsHandler(pipeline CommentPipeline, responder *Responder) *CommentsHandler {
	return &CommentsHandler{Pipeline: pipeline, Responder: responder}
}

type commentResponse struct {
	ID                 string                 `json:"id"`
	EventID            string                 `json:"event_id"`
	AuthorID           string                 `json:"author_id"`
	Text               string                 `json:"text"`
	Status             events.CommentStatus   `json:"status"`
	RejectionReason    events.RejectionReason `json:"rejection_reason,omitempty"`
	ModerationAttempts int                    `json:"moderation_attempts"`
	CreatedAt          time.Time              `json:"created_at"`
	ModeratedAt        *time.Time             `json:"moderated_at,omitempty"`
}

func toCommentResponse(c events.Comment) commentResponse {
	return commentResponse{
		ID:                 c.ID,
		EventID:            c.EventID,
		AuthorID:           c.AuthorID,
		Text:               c.Text,
		Status:             c.Status,
		RejectionReason:    c.RejectionReason,
		ModerationAttempts: c.ModerationAttempts,
		CreatedAt:          c.CreatedAt,
		ModeratedAt:        c.ModeratedAt,
	}
}

type submitCommentRequest struct {
	Text string `json:"text"`
}

// Submit handles POST /api/v1/events/{id}/comments. The status code tells the
// author how moderation went: 201 published, 202 still pending review, 422
// rejected. The body is the comment in every case.
func (h *CommentsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitCommentRequest
	if err := h.decode(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	comment, err := h.Pipeline.Submit(r.Context(), principal(r), pathParam(r, "id"), req.Text)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	status := http.StatusCreated
	switch comment.Status {
	case events.CommentPendingReview:
		status = http.StatusAccepted
	case events.CommentRejected:
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Location", "/api/v1/comments/"+comment.ID)
	writeJSON(w, status, toCommentResponse(comment))
}

// List handles GET /api/v1/events/{id}/comments?limit=&after=.
func (h *CommentsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r, pagination.KindComment)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	result, err := h.Pipeline.List(r.Context(), principal(r), pathParam(r, "id"), page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	items := make([]commentResponse, 0, len(result.Comments))
	for _, c := range result.Comments {
		items = append(items, toCommentResponse(c))
	}
	writeJSON(w, http.StatusOK, listResponse[commentResponse]{
		Items:      items,
		NextCursor: pagination.Encode(pagination.KindComment, result.NextCursor),
	})
}

// Get handles GET /api/v1/comments/{id}, used by authors to poll a pending comment.
func (h *CommentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	comment, err := h.Pipeline.Get(r.Context(), principal(r), pathParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponse(comment))
}

type moderateRequest struct {
	Verdict string `json:"verdict" validate:"required,oneof=safe unsafe"`
}

// Moderate handles POST /api/v1/comments/{id}/moderation.
func (h *CommentsHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	var req moderateRequest
	if err := h.decode(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	verdict := moderation.Unsafe
	if req.Verdict == "safe" {
		verdict = moderation.Safe
	}
	comment, err := h.Pipeline.Moderate(r.Context(), principal(r), pathParam(r, "id"), verdict)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentResponse(comment))
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/api/pagination"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/events"
)

// AttendanceLedger is the slice of events.Ledger the HTTP layer needs.
type AttendanceLedger interface {
	Join(ctx context.Context, principal auth.Principal, id string) (events.Attendance, error)
	Leave(ctx context.Context, principal auth.Principal, id string) (events.Attendance, error)
	Attendees(ctx context.Context, principal auth.Principal, id string, pagination events.Pagination) (events.AttendancePage, error)
}

type AttendanceHandler struct {
	Ledger AttendanceLedger
	*Responder
}

func NewAttendanceHandler(ledger AttendanceLedger, responder *Responder) *AttendanceHandler {
	return &AttendanceHandler{Ledger: ledger, Responder: responder}
}

type attendanceResponse struct {
	ID          string                  `json:"id"`
	EventID     string                  `json:"event_id"`
	UserID      string                  `json:"user_id"`
	Status      events.AttendanceStatus `json:"status"`
	JoinedAt    time.Time               `json:"joined_at"`
	CancelledAt *time.Time              `json:"cancelled_at,omitempty"`
}

func toAttendanceResponse(a events.Attendance) attendanceResponse {
	return attendanceResponse{
		ID:          a.ID,
		EventID:     a.EventID,
		UserID:      a.UserID,
		Status:      a.Status,
		JoinedAt:    a.JoinedAt,
		CancelledAt: a.CancelledAt,
	}
}

// Join handles POST /api/v1/events/{id}/attendance.
func (h *AttendanceHandler) Join(w http.ResponseWriter, r *http.Request) {
	attendance, err := h.Ledger.Join(r.Context(), principal(r), pathParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceResponse(attendance))
}

// Leave handles DELETE /api/v1/events/{id}/attendance.
func (h *AttendanceHandler) Leave(w http.ResponseWriter, r *http.Request) {
	attendance, err := h.Ledger.Leave(r.Context(), principal(r), pathParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttendanceResponse(attendance))
}

// Attendees handles GET /api/v1/events/{id}/attendees?limit=&after=.
func (h *AttendanceHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r, pagination.KindAttendance)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	result, err := h.Ledger.Attendees(r.Context(), principal(r), pathParam(r, "id"), page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	items := make([]attendanceResponse, 0, len(result.Attendances))
	for _, a := range result.Attendances {
		items = append(items, toAttendanceResponse(a))
	}
	writeJSON(w, http.StatusOK, listResponse[attendanceResponse]{
		Items:      items,
		NextCursor: pagination.Encode(pagination.KindAttendance, result.NextCursor),
	})
}

package events

import (
	"time"

	"github.com/Togather-Foundation/eventplus/internal/moderation"
)

// Window is an event's schedule. End must be strictly after Start.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.End.After(w.Start)
}

// EventType is a row of the seeded event_types reference table.
type EventType struct {
	ID          int
	Name        string
	Description string
}

// Event is a scheduled gathering. Capacity 0 means unlimited. ConfirmedCount mirrors
// the number of Confirmed attendances and only changes under the event row lock.
type Event struct {
	ID             string
	Title          string
	Description    string
	Window         Window
	Capacity       int
	TypeID         int
	OrganizerID    string
	ConfirmedCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

func (e Event) Deleted() bool {
	return e.DeletedAt != nil
}

// Bounded reports whether the event enforces a seat limit.
func (e Event) Bounded() bool {
	return e.Capacity > 0
}

// SeatsLeft is -1 for unlimited events.
func (e Event) SeatsLeft() int {
	if !e.Bounded() {
		return -1
	}
	return max(e.Capacity-e.ConfirmedCount, 0)
}

type AttendanceStatus string

const (
	AttendanceConfirmed AttendanceStatus = "confirmed"
	AttendanceCancelled AttendanceStatus = "cancelled"
)

// Attendance links a user to an event. At most one non-cancelled row exists per pair.
type Attendance struct {
	ID          string
	EventID     string
	UserID      string
	Status      AttendanceStatus
	JoinedAt    time.Time
	CancelledAt *time.Time
}

func (a Attendance) Active() bool {
	return a.Status == AttendanceConfirmed
}

type CommentStatus string

const (
	CommentPendingReview CommentStatus = "pending_review"
	CommentPublished     CommentStatus = "published"
	CommentRejected      CommentStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s CommentStatus) Terminal() bool {
	return s == CommentPublished || s == CommentRejected
}

// RejectionReason is recorded on rejected comments.
type RejectionReason string

const (
	ReasonUnsafeContent         RejectionReason = "unsafe_content"
	ReasonModerationUnavailable RejectionReason = "moderation_unavailable"
	ReasonEventDeleted          RejectionReason = "event_deleted"
	ReasonModeratorRejected     RejectionReason = "moderator_rejected"
)

// Comment is user text attached to an event. Status moves only out of PendingReview.
type Comment struct {
	ID                 string
	EventID            string
	AuthorID           string
	Text               string
	Status             CommentStatus
	RejectionReason    RejectionReason
	ModerationAttempts int
	CreatedAt          time.Time
	ModeratedAt        *time.Time
}

// Resolution is the terminal outcome applied to a pending comment.
type Resolution struct {
	Status     CommentStatus
	Reason     RejectionReason
	ResolvedAt time.Time
}

// resolutionFor maps an oracle verdict onto a comment outcome.
func resolutionFor(v moderation.Verdict, at time.Time) Resolution {
	if v == moderation.Safe {
		return Resolution{Status: CommentPublished, ResolvedAt: at}
	}
	return Resolution{Status: CommentRejected, Reason: ReasonUnsafeContent, ResolvedAt: at}
}

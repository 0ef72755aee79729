package events

import (
	"context"
	"time"
)

type Filters struct {
	OrganizerID string
	TypeID      int
	From        *time.Time
	To          *time.Time
}

type Pagination struct {
	Limit int
	After string
}

type ListResult struct {
	Events     []Event
	NextCursor string
}

// CommentScope narrows a comment listing to what one reader may see. All
// includes every status; otherwise published comments plus ViewerID's own.
type CommentScope struct {
	All      bool
	ViewerID string
}

type CommentPage struct {
	Comments   []Comment
	NextCursor string
}

type AttendancePage struct {
	Attendances []Attendance
	NextCursor  string
}

// EventRepository reads and mutates event rows. Get and List never return soft-deleted
// events. Lock and LockShared must run inside Store.WithTx.
type EventRepository interface {
	Create(ctx context.Context, event Event) (Event, error)
	Get(ctx context.Context, id string) (Event, error)
	// Lock takes the exclusive row lock used by attendance and capacity changes.
	Lock(ctx context.Context, id string) (Event, error)
	// LockShared serialises comment inserts against deletion only.
	LockShared(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error)
	SetCapacity(ctx context.Context, id string, capacity int) (Event, error)
	SetSchedule(ctx context.Context, id string, window Window) (Event, error)
	// ReserveSeat increments the confirmed count when a seat is free, ErrEventFull otherwise.
	ReserveSeat(ctx context.Context, id string) error
	ReleaseSeat(ctx context.Context, id string) error
	ResetSeats(ctx context.Context, id string) error
	MarkDeleted(ctx context.Context, id string, at time.Time) error
	ListTypes(ctx context.Context) ([]EventType, error)
	GetType(ctx context.Context, id int) (EventType, error)
}

// AttendanceRepository stores attendance rows. Insert reports ErrAlreadyConfirmed
// when an active row for the pair exists.
type AttendanceRepository interface {
	GetActive(ctx context.Context, eventID, userID string) (Attendance, error)
	Insert(ctx context.Context, attendance Attendance) (Attendance, error)
	Cancel(ctx context.Context, id string, at time.Time) (Attendance, error)
	CancelAll(ctx context.Context, eventID string, at time.Time) (int, error)
	// ListConfirmed pages active rows by id.
	ListConfirmed(ctx context.Context, eventID string, pagination Pagination) (AttendancePage, error)
}

// CommentRepository stores comments. Resolve applies only to pending rows and
// reports ErrCommentFinalized otherwise.
type CommentRepository interface {
	Insert(ctx context.Context, comment Comment) (Comment, error)
	Get(ctx context.Context, id string) (Comment, error)
	Resolve(ctx context.Context, id string, resolution Resolution) (Comment, error)
	RecordAttempt(ctx context.Context, id string) (Comment, error)
	RejectPending(ctx context.Context, eventID string, reason RejectionReason, at time.Time) (int, error)
	// ListByEvent pages the comments scope admits, ordered by id.
	ListByEvent(ctx context.Context, eventID string, scope CommentScope, pagination Pagination) (CommentPage, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Comment, error)
}

// Store groups the repositories and runs multi-step changes atomically. Within fn,
// the Store argument is bound to the transaction.
type Store interface {
	Events() EventRepository
	Attendance() AttendanceRepository
	Comments() CommentRepository
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

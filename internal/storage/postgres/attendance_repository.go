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

var _ events.AttendanceRepository = (*AttendanceRepository)(nil)

type AttendanceRepository struct {
	q queryer
}

const attendanceColumns = `id, event_id, user_id, status, joined_at, cancelled_at`

func scanAttendance(row pgx.Row) (events.Attendance, error) {
	var (
		a           events.Attendance
		status      string
		cancelledAt pgtype.Timestamptz
	)
	if err := row.Scan(&a.ID, &a.EventID, &a.UserID, &status, &a.JoinedAt, &cancelledAt); err != nil {
		return events.Attendance{}, err
	}
	a.Status = events.AttendanceStatus(status)
	a.JoinedAt = a.JoinedAt.UTC()
	a.CancelledAt = timestamptzPtr(cancelledAt)
	return a, nil
}

func (r *AttendanceRepository) GetActive(ctx context.Context, eventID, userID string) (attendance events.Attendance, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("attendances.get_active", start, err) }()

	attendance, err = scanAttendance(r.q.QueryRow(ctx, `
SELECT `+attendanceColumns+`
  FROM attendances
 WHERE event_id = $1 AND user_id = $2 AND status = 'confirmed'`, eventID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return events.Attendance{}, events.ErrNotRegistered
	}
	if err != nil {
		return events.Attendance{}, translate("get active attendance", err)
	}
	return attendance, nil
}

func (r *AttendanceRepository) Insert(ctx context.Context, attendance events.Attendance) (inserted events.Attendance, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("attendances.insert", start, err) }()

	inserted, err = scanAttendance(r.q.QueryRow(ctx, `
INSERT INTO attendances (id, event_id, user_id, status, joined_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+attendanceColumns,
		attendance.ID, attendance.EventID, attendance.UserID, string(attendance.Status), attendance.JoinedAt))
	if constraint, ok := constraintViolation(err, codeUniqueViolation); ok && constraint == "attendances_active_key" {
		return events.Attendance{}, events.ErrAlreadyConfirmed
	}
	if err != nil {
		return events.Attendance{}, translate("insert attendance", err)
	}
	return inserted, nil
}

func (r *AttendanceRepository) Cancel(ctx context.Context, id string, at time.Time) (cancelled events.Attendance, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("attendances.cancel", start, err) }()

	cancelled, err = scanAttendance(r.q.QueryRow(ctx, `
UPDATE attendances
   SET status = 'cancelled', cancelled_at = $2
 WHERE id = $1 AND status = 'confirmed'
RETURNING `+attendanceColumns, id, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return events.Attendance{}, events.ErrNotRegistered
	}
	if err != nil {
		return events.Attendance{}, translate("cancel attendance", err)
	}
	return cancelled, nil
}

func (r *AttendanceRepository) CancelAll(ctx context.Context, eventID string, at time.Time) (count int, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("attendances.cancel_all", start, err) }()

	tag, err := r.q.Exec(ctx, `
UPDATE attendances
   SET status = 'cancelled', cancelled_at = $2
 WHERE event_id = $1 AND status = 'confirmed'`, eventID, at)
	if err != nil {
		return 0, translate("cancel attendances", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *AttendanceRepository) ListConfirmed(ctx context.Context, eventID string, pagination events.Pagination) (page events.AttendancePage, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("attendances.list_confirmed", start, err) }()

	rows, err := r.q.Query(ctx, `
SELECT `+attendanceColumns+`
  FROM attendances
 WHERE event_id = $1 AND status = 'confirmed' AND id > $2
 ORDER BY id
 LIMIT $3`, eventID, strings.ToUpper(pagination.After), pageLimit(pagination))
	if err != nil {
		return events.AttendancePage{}, translate("list attendances", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.Attendance, error) {
		return scanAttendance(row)
	})
	if err != nil {
		return events.AttendancePage{}, translate("list attendances", err)
	}

	page.Attendances = list
	if pagination.Limit > 0 && len(list) > pagination.Limit {
		page.Attendances = list[:pagination.Limit]
		page.NextCursor = page.Attendances[pagination.Limit-1].ID
	}
	return page, nil
}

package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
)

type attendanceRepository struct {
	s *Store
}

func (r *attendanceRepository) GetActive(ctx context.Context, eventID, userID string) (events.Attendance, error) {
	var found events.Attendance
	err := r.s.with(func(d *data) error {
		var ok bool
		found, ok = activeAttendance(d, eventID, userID)
		if !ok {
			return events.ErrNotRegistered
		}
		return nil
	})
	return found, err
}

func (r *attendanceRepository) Insert(ctx context.Context, attendance events.Attendance) (events.Attendance, error) {
	err := r.s.with(func(d *data) error {
		if _, exists := activeAttendance(d, attendance.EventID, attendance.UserID); exists && attendance.Active() {
			return events.ErrAlreadyConfirmed
		}
		d.attendances[attendance.ID] = attendance
		return nil
	})
	return attendance, err
}

func (r *attendanceRepository) Cancel(ctx context.Context, id string, at time.Time) (events.Attendance, error) {
	var cancelled events.Attendance
	err := r.s.with(func(d *data) error {
		current, ok := d.attendances[id]
		if !ok || !current.Active() {
			return events.ErrNotRegistered
		}
		cancelledAt := at
		current.Status = events.AttendanceCancelled
		current.CancelledAt = &cancelledAt
		d.attendances[id] = current
		cancelled = current
		return nil
	})
	return cancelled, err
}

func (r *attendanceRepository) CancelAll(ctx context.Context, eventID string, at time.Time) (int, error) {
	count := 0
	err := r.s.with(func(d *data) error {
		for id, a := range d.attendances {
			if a.EventID != eventID || !a.Active() {
				continue
			}
			cancelledAt := at
			a.Status = events.AttendanceCancelled
			a.CancelledAt = &cancelledAt
			d.attendances[id] = a
			count++
		}
		return nil
	})
	return count, err
}

func (r *attendanceRepository) ListConfirmed(ctx context.Context, eventID string, pagination events.Pagination) (events.AttendancePage, error) {
	var page events.AttendancePage
	err := r.s.with(func(d *data) error {
		var list []events.Attendance
		for _, a := range d.attendances {
			if a.EventID == eventID && a.Active() && (pagination.After == "" || a.ID > pagination.After) {
				list = append(list, a)
			}
		}
		slices.SortFunc(list, func(a, b events.Attendance) int { return strings.Compare(a.ID, b.ID) })
		if pagination.Limit > 0 && len(list) > pagination.Limit {
			list = list[:pagination.Limit]
			page.NextCursor = list[len(list)-1].ID
		}
		page.Attendances = list
		return nil
	})
	return page, err
}

func activeAttendance(d *data, eventID, userID string) (events.Attendance, bool) {
	for _, a := range d.attendances {
		if a.EventID == eventID && a.UserID == userID && a.Active() {
			return a, true
		}
	}
	return events.Attendance{}, false
}

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/ids"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
	"github.com/Togather-Foundation/eventplus/internal/metrics"
	"github.com/Togather-Foundation/eventplus/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Togather-Foundation/eventplus/internal/domain/events"

// Ledger records who attends which event. Every change runs under the event's
// exclusive row lock, so the capacity check and the seat update commit together.
type Ledger struct {
	store  Store
	now    func() time.Time
	logger zerolog.Logger
}

func NewLedger(store Store, logger zerolog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "ledger").Logger(),
	}
}

// Join confirms the principal's seat. First commit wins; there is no waitlist.
func (l *Ledger) Join(ctx context.Context, principal auth.Principal, id string) (attendance Attendance, err error) {
	ctx, span := telemetry.GetTracer(tracerName).Start(ctx, "ledger.Join")
	defer func() {
		recordAttendance("join", err)
		endSpan(span, err)
	}()

	if err := auth.Authorize(principal, auth.ActionJoinEvent, auth.Target{}).Err(auth.ActionJoinEvent); err != nil {
		return Attendance{}, err
	}
	eventID, err := ids.Normalize(id)
	if err != nil {
		return Attendance{}, ErrNotFound
	}
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("user.id", principal.UserID))

	attendanceID, err := ids.NewULID()
	if err != nil {
		return Attendance{}, fmt.Errorf("generate attendance id: %w", err)
	}

	err = l.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.Events().Lock(ctx, eventID); err != nil {
			return err
		}
		_, err := tx.Attendance().GetActive(ctx, eventID, principal.UserID)
		switch {
		case err == nil:
			return ErrAlreadyConfirmed
		case !errors.Is(err, ErrNotRegistered):
			return err
		}
		if err := tx.Events().ReserveSeat(ctx, eventID); err != nil {
			return err
		}
		attendance, err = tx.Attendance().Insert(ctx, Attendance{
			ID:       attendanceID,
			EventID:  eventID,
			UserID:   principal.UserID,
			Status:   AttendanceConfirmed,
			JoinedAt: l.now(),
		})
		return err
	})
	if err != nil {
		return Attendance{}, err
	}

	l.logger.Debug().Str("event_id", eventID).Str("user_id", principal.UserID).Msg("attendance confirmed")
	return attendance, nil
}

// Leave cancels the principal's active attendance and frees its seat at once.
func (l *Ledger) Leave(ctx context.Context, principal auth.Principal, id string) (attendance Attendance, err error) {
	ctx, span := telemetry.GetTracer(tracerName).Start(ctx, "ledger.Leave")
	defer func() {
		recordAttendance("leave", err)
		endSpan(span, err)
	}()

	if err := auth.Authorize(principal, auth.ActionLeaveEvent, auth.Target{}).Err(auth.ActionLeaveEvent); err != nil {
		return Attendance{}, err
	}
	eventID, err := ids.Normalize(id)
	if err != nil {
		return Attendance{}, ErrNotFound
	}
	span.SetAttributes(attribute.String("event.id", eventID), attribute.String("user.id", principal.UserID))

	err = l.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		if _, err := tx.Events().Lock(ctx, eventID); err != nil {
			return err
		}
		active, err := tx.Attendance().GetActive(ctx, eventID, principal.UserID)
		if err != nil {
			return err
		}
		if attendance, err = tx.Attendance().Cancel(ctx, active.ID, l.now()); err != nil {
			return err
		}
		return tx.Events().ReleaseSeat(ctx, eventID)
	})
	if err != nil {
		return Attendance{}, err
	}

	l.logger.Debug().Str("event_id", eventID).Str("user_id", principal.UserID).Msg("attendance cancelled")
	return attendance, nil
}

// Attendees lists confirmed attendances. Only the owning organizer and
// administrators may see them.
func (l *Ledger) Attendees(ctx context.Context, principal auth.Principal, id string, pagination Pagination) (AttendancePage, error) {
	if !principal.Authenticated() {
		return AttendancePage{}, auth.ErrUnauthenticated
	}
	eventID, err := ids.Normalize(id)
	if err != nil {
		return AttendancePage{}, ErrNotFound
	}
	event, err := l.store.Events().Get(ctx, eventID)
	if err != nil {
		return AttendancePage{}, err
	}
	if !auth.CanAudit(principal, auth.Target{OwnerID: event.OrganizerID}) {
		return AttendancePage{}, auth.ErrPermissionDenied.WithMetadata("reason", string(auth.ReasonNotOwner))
	}
	return l.store.Attendance().ListConfirmed(ctx, eventID, pagination.bounded())
}

func recordAttendance(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperrors.GetCode(err))
	}
	metrics.AttendanceOperations.WithLabelValues(operation, outcome).Inc()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.GetCode(err)))
	}
	span.End()
}

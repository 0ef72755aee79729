package events_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/domain/ids"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentJoinsNeverOverbook(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, 1)

	const numGoroutines = 100
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		full      atomic.Int32
		other     atomic.Int32
	)
	start := make(chan struct{})
	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.ledger.Join(context.Background(), attendee(), event.ID)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, events.ErrEventFull):
				full.Add(1)
			default:
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(numGoroutines-1), full.Load())
	assert.Zero(t, other.Load())

	got, err := f.catalog.Get(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ConfirmedCount)
}

func TestSingleSeatHandOver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 1)
	a1, a2 := attendee(), attendee()

	_, err := f.ledger.Join(ctx, a1, event.ID)
	require.NoError(t, err)

	_, err = f.ledger.Join(ctx, a2, event.ID)
	require.ErrorIs(t, err, events.ErrEventFull)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = f.ledger.Leave(ctx, a1, event.ID)
	require.NoError(t, err)

	attendance, err := f.ledger.Join(ctx, a2, event.ID)
	require.NoError(t, err)
	assert.Equal(t, events.AttendanceConfirmed, attendance.Status)
}

func TestJoinTwiceIsAlreadyConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 0)
	member := attendee()

	_, err := f.ledger.Join(ctx, member, event.ID)
	require.NoError(t, err)
	_, err = f.ledger.Join(ctx, member, event.ID)
	require.ErrorIs(t, err, events.ErrAlreadyConfirmed)

	got, err := f.catalog.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ConfirmedCount)
}

func TestLeaveTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 3)
	member := attendee()

	_, err := f.ledger.Join(ctx, member, event.ID)
	require.NoError(t, err)

	cancelled, err := f.ledger.Leave(ctx, member, event.ID)
	require.NoError(t, err)
	assert.Equal(t, events.AttendanceCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	_, err = f.ledger.Leave(ctx, member, event.ID)
	require.ErrorIs(t, err, events.ErrNotRegistered)

	got, err := f.catalog.Get(ctx, event.ID)
	require.NoError(t, err)
	assert.Zero(t, got.ConfirmedCount)
}

func TestLedgerRoleGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 0)

	_, err := f.ledger.Join(ctx, f.other, event.ID)
	require.True(t, apperrors.IsCode(err, apperrors.CodePermissionDenied), "organizers do not attend")

	_, err = f.ledger.Join(ctx, f.admin, event.ID)
	require.NoError(t, err)

	_, err = f.ledger.Join(ctx, attendee(), ids.MustNewULID())
	require.ErrorIs(t, err, events.ErrNotFound)

	_, err = f.ledger.Join(ctx, attendee(), "not-an-id")
	require.ErrorIs(t, err, events.ErrNotFound)
}

func TestAttendeesPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 0)
	for i := 0; i < 3; i++ {
		_, err := f.ledger.Join(ctx, attendee(), event.ID)
		require.NoError(t, err)
	}

	first, err := f.ledger.Attendees(ctx, f.organizer, event.ID, events.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Attendances, 2)
	require.Equal(t, first.Attendances[1].ID, first.NextCursor)

	rest, err := f.ledger.Attendees(ctx, f.organizer, event.ID, events.Pagination{Limit: 2, After: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Attendances, 1)
	assert.Empty(t, rest.NextCursor)
}

func TestAttendeesVisibleToOwnerAndAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.createEvent(t, 0)
	member := attendee()
	_, err := f.ledger.Join(ctx, member, event.ID)
	require.NoError(t, err)

	list, err := f.ledger.Attendees(ctx, f.organizer, event.ID, events.Pagination{})
	require.NoError(t, err)
	require.Len(t, list.Attendances, 1)
	assert.Equal(t, member.UserID, list.Attendances[0].UserID)

	_, err = f.ledger.Attendees(ctx, f.admin, event.ID, events.Pagination{})
	require.NoError(t, err)

	_, err = f.ledger.Attendees(ctx, member, event.ID, events.Pagination{})
	require.True(t, apperrors.IsCode(err, apperrors.CodePermissionDenied))
}

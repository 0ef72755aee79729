package events_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/domain/ids"
	"github.com/Togather-Foundation/eventplus/internal/moderation"
	"github.com/Togather-Foundation/eventplus/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memory.Store
	catalog   *events.Catalog
	ledger    *events.Ledger
	admin     auth.Principal
	organizer auth.Principal
	other     auth.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	return &fixture{
		store:     store,
		catalog:   events.NewCatalog(store, nil, zerolog.Nop()),
		ledger:    events.NewLedger(store, zerolog.Nop()),
		admin:     auth.Principal{UserID: ids.MustNewULID(), Role: auth.RoleAdministrator},
		organizer: auth.Principal{UserID: ids.MustNewULID(), Role: auth.RoleOrganizer},
		other:     auth.Principal{UserID: ids.MustNewULID(), Role: auth.RoleOrganizer},
	}
}

func attendee() auth.Principal {
	return auth.Principal{UserID: ids.MustNewULID(), Role: auth.RoleAttendee}
}

func tomorrow() events.Window {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Minute).UTC()
	return events.Window{Start: start, End: start.Add(2 * time.Hour)}
}

func (f *fixture) createEvent(t *testing.T, capacity int) events.Event {
	t.Helper()
	event, err := f.catalog.Create(context.Background(), f.organizer, events.CreateParams{
		Title:    "Go Meetup",
		Window:   tomorrow(),
		Capacity: capacity,
		TypeID:   3,
	})
	require.NoError(t, err)
	return event
}

// failingStore fails RejectPending, simulating a crash in the middle of a cascade.
type failingStore struct {
	events.Store
	err error
}

func (f failingStore) Comments() events.CommentRepository {
	return failingComments{CommentRepository: f.Store.Comments(), err: f.err}
}

func (f failingStore) WithTx(ctx context.Context, fn func(context.Context, events.Store) error) error {
	return f.Store.WithTx(ctx, func(ctx context.Context, tx events.Store) error {
		return fn(ctx, failingStore{Store: tx, err: f.err})
	})
}

type failingComments struct {
	events.CommentRepository
	err error
}

func (f failingComments) RejectPending(context.Context, string, events.RejectionReason, time.Time) (int, error) {
	return 0, f.err
}

// scriptedOracle returns queued results in order, then Safe.
type scriptedOracle struct {
	mu      sync.Mutex
	results []oracleResult
	calls   int
}

type oracleResult struct {
	verdict moderation.Verdict
	err     error
	hang    bool
}

func (o *scriptedOracle) Classify(ctx context.Context, text string) (moderation.Verdict, error) {
	o.mu.Lock()
	o.calls++
	var next oracleResult
	if len(o.results) > 0 {
		next, o.results = o.results[0], o.results[1:]
	} else {
		next = oracleResult{verdict: moderation.Safe}
	}
	o.mu.Unlock()

	if next.hang {
		<-ctx.Done()
		return moderation.Unsafe, moderation.ErrUnavailable
	}
	return next.verdict, next.err
}

func (o *scriptedOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
	err       error
}

func (s *recordingScheduler) ScheduleModeration(ctx context.Context, commentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, commentID)
	return s.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	resolved []events.Comment
}

func (n *recordingNotifier) CommentResolved(ctx context.Context, c events.Comment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, c)
	return nil
}

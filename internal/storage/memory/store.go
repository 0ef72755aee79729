// Package memory is an in-process implementation of storage.Repository used by unit
// tests and local development. A transaction holds the store-wide lock for its whole
// duration and works on a copy that replaces the live state only on success.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
	"github.com/Togather-Foundation/eventplus/internal/storage"
)

var _ storage.Repository = (*Store)(nil)

type data struct {
	events      map[string]events.Event
	eventTypes  map[int]events.EventType
	attendances map[string]events.Attendance
	comments    map[string]events.Comment
	users       map[string]users.User
	userTypes   []users.UserType
}

func (d *data) clone() *data {
	return &data{
		events:      maps.Clone(d.events),
		eventTypes:  d.eventTypes,
		attendances: maps.Clone(d.attendances),
		comments:    maps.Clone(d.comments),
		users:       maps.Clone(d.users),
		userTypes:   d.userTypes,
	}
}

type root struct {
	mu   sync.Mutex
	data *data
}

// Store is safe for concurrent use. The zero value is not usable; call New.
type Store struct {
	root *root
	tx   *data
}

// SeedEventTypes mirrors the rows seeded by the postgres migrations.
var SeedEventTypes = []events.EventType{
	{ID: 1, Name: "conference", Description: "Talks and panels"},
	{ID: 2, Name: "workshop", Description: "Hands-on sessions"},
	{ID: 3, Name: "meetup", Description: "Informal community gatherings"},
	{ID: 4, Name: "concert", Description: "Live music"},
	{ID: 5, Name: "sports", Description: "Matches and sporting activities"},
}

func New() *Store {
	eventTypes := make(map[int]events.EventType, len(SeedEventTypes))
	for _, t := range SeedEventTypes {
		eventTypes[t.ID] = t
	}
	return &Store{root: &root{data: &data{
		events:      make(map[string]events.Event),
		eventTypes:  eventTypes,
		attendances: make(map[string]events.Attendance),
		comments:    make(map[string]events.Comment),
		users:       make(map[string]users.User),
		userTypes: []users.UserType{
			{Name: auth.RoleAdministrator, Description: "Manages users, events and moderation"},
			{Name: auth.RoleOrganizer, Description: "Creates and manages own events"},
			{Name: auth.RoleAttendee, Description: "Joins events and posts comments"},
		},
	}}}
}

// with runs fn against the transaction's state, or against the live state under
// the store lock when not in a transaction.
func (s *Store) with(fn func(d *data) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	return fn(s.root.data)
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, events.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.root.mu.Lock()
	defer s.root.mu.Unlock()

	working := s.root.data.clone()
	if err := fn(ctx, &Store{root: s.root, tx: working}); err != nil {
		return err
	}
	s.root.data = working
	return nil
}

func (s *Store) Events() events.EventRepository {
	return &eventRepository{s: s}
}

func (s *Store) Attendance() events.AttendanceRepository {
	return &attendanceRepository{s: s}
}

func (s *Store) Comments() events.CommentRepository {
	return &commentRepository{s: s}
}

func (s *Store) Users() users.Repository {
	return &userRepository{s: s}
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

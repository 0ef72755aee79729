package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
)

type eventRepository struct {
	s *Store
}

func (r *eventRepository) Create(ctx context.Context, event events.Event) (events.Event, error) {
	err := r.s.with(func(d *data) error {
		d.events[event.ID] = event
		return nil
	})
	return event, err
}

func (r *eventRepository) Get(ctx context.Context, id string) (events.Event, error) {
	var event events.Event
	err := r.s.with(func(d *data) error {
		var err error
		event, err = liveEvent(d, id)
		return err
	})
	return event, err
}

// Lock and LockShared rely on the store-wide transaction lock.
func (r *eventRepository) Lock(ctx context.Context, id string) (events.Event, error) {
	return r.Get(ctx, id)
}

func (r *eventRepository) LockShared(ctx context.Context, id string) (events.Event, error) {
	return r.Get(ctx, id)
}

func (r *eventRepository) List(ctx context.Context, filters events.Filters, pagination events.Pagination) (events.ListResult, error) {
	var result events.ListResult
	err := r.s.with(func(d *data) error {
		matched := make([]events.Event, 0, len(d.events))
		for _, e := range d.events {
			if e.Deleted() || (pagination.After != "" && e.ID <= pagination.After) {
				continue
			}
			if filters.OrganizerID != "" && e.OrganizerID != filters.OrganizerID {
				continue
			}
			if filters.TypeID != 0 && e.TypeID != filters.TypeID {
				continue
			}
			if filters.From != nil && e.Window.Start.Before(*filters.From) {
				continue
			}
			if filters.To != nil && e.Window.Start.After(*filters.To) {
				continue
			}
			matched = append(matched, e)
		}
		slices.SortFunc(matched, func(a, b events.Event) int {
			return strings.Compare(a.ID, b.ID)
		})

		if pagination.Limit > 0 && len(matched) > pagination.Limit {
			matched = matched[:pagination.Limit]
			result.NextCursor = matched[len(matched)-1].ID
		}
		result.Events = matched
		return nil
	})
	return result, err
}

func (r *eventRepository) SetCapacity(ctx context.Context, id string, capacity int) (events.Event, error) {
	return r.update(id, func(e *events.Event) error {
		e.Capacity = capacity
		return nil
	})
}

func (r *eventRepository) SetSchedule(ctx context.Context, id string, window events.Window) (events.Event, error) {
	return r.update(id, func(e *events.Event) error {
		e.Window = window
		return nil
	})
}

func (r *eventRepository) ReserveSeat(ctx context.Context, id string) error {
	_, err := r.update(id, func(e *events.Event) error {
		if e.Bounded() && e.ConfirmedCount >= e.Capacity {
			return events.ErrEventFull
		}
		e.ConfirmedCount++
		return nil
	})
	return err
}

func (r *eventRepository) ReleaseSeat(ctx context.Context, id string) error {
	_, err := r.update(id, func(e *events.Event) error {
		if e.ConfirmedCount > 0 {
			e.ConfirmedCount--
		}
		return nil
	})
	return err
}

func (r *eventRepository) ResetSeats(ctx context.Context, id string) error {
	_, err := r.update(id, func(e *events.Event) error {
		e.ConfirmedCount = 0
		return nil
	})
	return err
}

func (r *eventRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	_, err := r.update(id, func(e *events.Event) error {
		deletedAt := at
		e.DeletedAt = &deletedAt
		return nil
	})
	return err
}

func (r *eventRepository) ListTypes(ctx context.Context) ([]events.EventType, error) {
	var types []events.EventType
	err := r.s.with(func(d *data) error {
		for _, t := range d.eventTypes {
			types = append(types, t)
		}
		slices.SortFunc(types, func(a, b events.EventType) int { return a.ID - b.ID })
		return nil
	})
	return types, err
}

func (r *eventRepository) GetType(ctx context.Context, id int) (events.EventType, error) {
	var t events.EventType
	err := r.s.with(func(d *data) error {
		var ok bool
		if t, ok = d.eventTypes[id]; !ok {
			return events.ErrTypeNotFound
		}
		return nil
	})
	return t, err
}

func (r *eventRepository) update(id string, fn func(e *events.Event) error) (events.Event, error) {
	var event events.Event
	err := r.s.with(func(d *data) error {
		current, err := liveEvent(d, id)
		if err != nil {
			return err
		}
		if err := fn(&current); err != nil {
			return err
		}
		current.UpdatedAt = time.Now().UTC()
		d.events[id] = current
		event = current
		return nil
	})
	return event, err
}

func liveEvent(d *data, id string) (events.Event, error) {
	event, ok := d.events[id]
	if !ok || event.Deleted() {
		return events.Event{}, events.ErrNotFound
	}
	return event, nil
}

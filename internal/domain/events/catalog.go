package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/Togather-Foundation/eventplus/internal/audit"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/ids"
	"github.com/Togather-Foundation/eventplus/internal/sanitize"
	"github.com/karlseguin/ccache/v3"
	"github.com/rs/zerolog"
)

const (
	maxTitleLength = 200

	typesCacheKey = "event_types"
	typesCacheTTL = time.Hour
)

// Catalog owns event lifecycle: creation, capacity and schedule changes, and
// cascading deletion.
type Catalog struct {
	store  Store
	types  *ccache.Cache[[]EventType]
	audit  *audit.Logger
	now    func() time.Time
	logger zerolog.Logger
}

func NewCatalog(store Store, auditLogger *audit.Logger, logger zerolog.Logger) *Catalog {
	return &Catalog{
		store:  store,
		types:  ccache.New(ccache.Configure[[]EventType]().MaxSize(16)),
		audit:  auditLogger,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

type CreateParams struct {
	Title       string
	Description string
	Window      Window
	Capacity    int
	TypeID      int
}

func (c *Catalog) Create(ctx context.Context, principal auth.Principal, params CreateParams) (Event, error) {
	if err := auth.Authorize(principal, auth.ActionCreateEvent, auth.Target{}).Err(auth.ActionCreateEvent); err != nil {
		return Event{}, err
	}

	title := sanitize.Line(params.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return Event{}, ErrInvalidTitle
	}
	if !params.Window.Valid() {
		return Event{}, ErrInvalidSchedule
	}
	if params.Capacity < 0 {
		return Event{}, ErrInvalidCapacity
	}
	if _, err := c.store.Events().GetType(ctx, params.TypeID); err != nil {
		return Event{}, err
	}

	id, err := ids.NewULID()
	if err != nil {
		return Event{}, fmt.Errorf("generate event id: %w", err)
	}
	now := c.now()
	event, err := c.store.Events().Create(ctx, Event{
		ID:          id,
		Title:       title,
		Description: sanitize.HTML(params.Description),
		Window:      Window{Start: params.Window.Start.UTC(), End: params.Window.End.UTC()},
		Capacity:    params.Capacity,
		TypeID:      params.TypeID,
		OrganizerID: principal.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Event{}, err
	}

	c.logger.Info().Str("event_id", event.ID).Str("organizer_id", event.OrganizerID).Int("capacity", event.Capacity).Msg("event created")
	return event, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (Event, error) {
	eventID, err := ids.Normalize(id)
	if err != nil {
		return Event{}, ErrNotFound
	}
	return c.store.Events().Get(ctx, eventID)
}

func (c *Catalog) List(ctx context.Context, filters Filters, pagination Pagination) (ListResult, error) {
	return c.store.Events().List(ctx, filters, pagination.bounded())
}

// ListTypes returns the event type reference data, cached in process.
func (c *Catalog) ListTypes(ctx context.Context) ([]EventType, error) {
	item, err := c.types.Fetch(typesCacheKey, typesCacheTTL, func() ([]EventType, error) {
		return c.store.Events().ListTypes(ctx)
	})
	if err != nil {
		return nil, err
	}
	return item.Value(), nil
}

// UpdateCapacity changes the seat limit. A bounded capacity may not drop below the
// confirmed count observed under the event lock.
func (c *Catalog) UpdateCapacity(ctx context.Context, principal auth.Principal, id string, capacity int) (Event, error) {
	if capacity < 0 {
		return Event{}, ErrInvalidCapacity
	}
	eventID, err := ids.Normalize(id)
	if err != nil {
		return Event{}, ErrNotFound
	}

	var updated Event
	err = c.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		event, err := tx.Events().Lock(ctx, eventID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(principal, auth.ActionModifyEvent, event); err != nil {
			return err
		}
		if capacity > 0 && capacity < event.ConfirmedCount {
			return ErrCapacityBelowConfirmed.WithMetadata(
				"confirmed", strconv.Itoa(event.ConfirmedCount),
				"requested", strconv.Itoa(capacity),
			)
		}
		updated, err = tx.Events().SetCapacity(ctx, eventID, capacity)
		return err
	})
	if err != nil {
		return Event{}, err
	}

	c.logger.Info().Str("event_id", eventID).Int("capacity", capacity).Str("by", principal.UserID).Msg("event capacity updated")
	return updated, nil
}

func (c *Catalog) UpdateSchedule(ctx context.Context, principal auth.Principal, id string, window Window) (Event, error) {
	if !window.Valid() {
		return Event{}, ErrInvalidSchedule
	}
	eventID, err := ids.Normalize(id)
	if err != nil {
		return Event{}, ErrNotFound
	}

	var updated Event
	err = c.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		event, err := tx.Events().Lock(ctx, eventID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(principal, auth.ActionModifyEvent, event); err != nil {
			return err
		}
		updated, err = tx.Events().SetSchedule(ctx, eventID, Window{Start: window.Start.UTC(), End: window.End.UTC()})
		return err
	})
	if err != nil {
		return Event{}, err
	}
	return updated, nil
}

// DeleteResult reports what a cascade deletion touched.
type DeleteResult struct {
	CancelledAttendances int
	RejectedComments     int
	Override             bool
}

// Delete soft-deletes an event. Events with confirmed attendees can only be deleted
// by an administrator; the cascade cancels every attendance and rejects every
// pending comment in the same transaction.
func (c *Catalog) Delete(ctx context.Context, principal auth.Principal, id string) (DeleteResult, error) {
	eventID, err := ids.Normalize(id)
	if err != nil {
		return DeleteResult{}, ErrNotFound
	}

	var result DeleteResult
	err = c.store.WithTx(ctx, func(ctx context.Context, tx Store) error {
		result = DeleteResult{}
		event, err := tx.Events().Lock(ctx, eventID)
		if err != nil {
			return err
		}
		if err := authorizeOwner(principal, auth.ActionDeleteEvent, event); err != nil {
			return err
		}
		if event.ConfirmedCount > 0 {
			if !principal.IsAdmin() {
				return ErrHasActiveAttendees.WithMetadata("confirmed", strconv.Itoa(event.ConfirmedCount))
			}
			result.Override = true
		}

		now := c.now()
		if result.CancelledAttendances, err = tx.Attendance().CancelAll(ctx, eventID, now); err != nil {
			return fmt.Errorf("cancel attendances: %w", err)
		}
		if err := tx.Events().ResetSeats(ctx, eventID); err != nil {
			return fmt.Errorf("reset seats: %w", err)
		}
		if result.RejectedComments, err = tx.Comments().RejectPending(ctx, eventID, ReasonEventDeleted, now); err != nil {
			return fmt.Errorf("reject pending comments: %w", err)
		}
		if err := tx.Events().MarkDeleted(ctx, eventID, now); err != nil {
			return fmt.Errorf("mark deleted: %w", err)
		}
		return nil
	})
	if err != nil {
		if principal.IsAdmin() && !errors.Is(err, ErrNotFound) {
			c.audit.Failure(ctx, "event.deleted", actorOf(principal), "event", eventID, map[string]string{"error": err.Error()})
		}
		return DeleteResult{}, err
	}

	c.logger.Info().
		Str("event_id", eventID).
		Int("cancelled_attendances", result.CancelledAttendances).
		Int("rejected_comments", result.RejectedComments).
		Bool("override", result.Override).
		Msg("event deleted")
	if principal.IsAdmin() {
		c.audit.Success(ctx, "event.deleted", actorOf(principal), "event", eventID, map[string]string{
			"override":              strconv.FormatBool(result.Override),
			"cancelled_attendances": strconv.Itoa(result.CancelledAttendances),
			"rejected_comments":     strconv.Itoa(result.RejectedComments),
		})
	}
	return result, nil
}

func authorizeOwner(principal auth.Principal, action auth.Action, event Event) error {
	return auth.Authorize(principal, action, auth.Target{OwnerID: event.OrganizerID}).Err(action)
}

func actorOf(p auth.Principal) audit.Actor {
	return audit.Actor{ID: p.UserID, Role: string(p.Role)}
}

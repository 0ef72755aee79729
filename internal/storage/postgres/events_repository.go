package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var _ events.EventRepository = (*EventRepository)(nil)

type EventRepository struct {
	q queryer
}

const eventColumns = `id, title, description, starts_at, ends_at, capacity, event_type_id,
       organizer_id, confirmed_count, created_at, updated_at, deleted_at`

type eventRow struct {
	ID             string
	Title          string
	Description    string
	StartsAt       time.Time
	EndsAt         time.Time
	Capacity       int
	TypeID         int
	OrganizerID    string
	ConfirmedCount int
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      pgtype.Timestamptz
}

func scanEvent(row pgx.Row) (events.Event, error) {
	var r eventRow
	if err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.StartsAt, &r.EndsAt, &r.Capacity, &r.TypeID,
		&r.OrganizerID, &r.ConfirmedCount, &r.CreatedAt, &r.UpdatedAt, &r.DeletedAt,
	); err != nil {
		return events.Event{}, err
	}
	return events.Event{
		ID:             r.ID,
		Title:          r.Title,
		Description:    r.Description,
		Window:         events.Window{Start: r.StartsAt.UTC(), End: r.EndsAt.UTC()},
		Capacity:       r.Capacity,
		TypeID:         r.TypeID,
		OrganizerID:    r.OrganizerID,
		ConfirmedCount: r.ConfirmedCount,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		DeletedAt:      timestamptzPtr(r.DeletedAt),
	}, nil
}

func (r *EventRepository) Create(ctx context.Context, event events.Event) (created events.Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("events.create", start, err) }()

	row := r.q.QueryRow(ctx, `
INSERT INTO events (id, title, description, starts_at, ends_at, capacity, event_type_id, organizer_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
RETURNING `+eventColumns,
		event.ID, event.Title, event.Description, event.Window.Start, event.Window.End,
		event.Capacity, event.TypeID, event.OrganizerID, event.CreatedAt,
	)
	created, err = scanEvent(row)
	if err != nil {
		if constraint, ok := constraintViolation(err, codeForeignKeyViolation); ok && strings.Contains(constraint, "event_type") {
			return events.Event{}, events.ErrTypeNotFound
		}
		return events.Event{}, translate("create event", err)
	}
	return created, nil
}

func (r *EventRepository) Get(ctx context.Context, id string) (events.Event, error) {
	return r.selectLive(ctx, "events.get", id, "")
}

func (r *EventRepository) Lock(ctx context.Context, id string) (events.Event, error) {
	return r.selectLive(ctx, "events.lock", id, "FOR UPDATE")
}

func (r *EventRepository) LockShared(ctx context.Context, id string) (events.Event, error) {
	return r.selectLive(ctx, "events.lock_shared", id, "FOR SHARE")
}

func (r *EventRepository) selectLive(ctx context.Context, op string, id string, lockClause string) (event events.Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(op, start, err) }()

	event, err = scanEvent(r.q.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 AND deleted_at IS NULL `+lockClause, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return events.Event{}, events.ErrNotFound
	}
	if err != nil {
		return events.Event{}, translate(op, err)
	}
	return event, nil
}

func (r *EventRepository) List(ctx context.Context, filters events.Filters, pagination events.Pagination) (result events.ListResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("events.list", start, err) }()

	var (
		conditions = []string{"deleted_at IS NULL"}
		args       []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filters.OrganizerID != "" {
		add("organizer_id = $%d", filters.OrganizerID)
	}
	if filters.TypeID != 0 {
		add("event_type_id = $%d", filters.TypeID)
	}
	if filters.From != nil {
		add("starts_at >= $%d", filters.From.UTC())
	}
	if filters.To != nil {
		add("starts_at <= $%d", filters.To.UTC())
	}
	if pagination.After != "" {
		add("id > $%d", strings.ToUpper(pagination.After))
	}

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + strings.Join(conditions, " AND ") + ` ORDER BY id`
	limit := pagination.Limit
	if limit > 0 {
		args = append(args, limit+1)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return events.ListResult{}, translate("list events", err)
	}
	defer rows.Close()

	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return events.ListResult{}, fmt.Errorf("scan event: %w", err)
		}
		result.Events = append(result.Events, event)
	}
	if err := rows.Err(); err != nil {
		return events.ListResult{}, translate("list events", err)
	}

	if limit > 0 && len(result.Events) > limit {
		result.Events = result.Events[:limit]
		result.NextCursor = result.Events[limit-1].ID
	}
	return result, nil
}

// pageLimit fetches one row past the page so the caller knows whether another
// page follows. A nil limit means LIMIT NULL, which is unbounded.
func pageLimit(p events.Pagination) any {
	if p.Limit <= 0 {
		return nil
	}
	return p.Limit + 1
}

func (r *EventRepository) SetCapacity(ctx context.Context, id string, capacity int) (events.Event, error) {
	event, err := r.update(ctx, "events.set_capacity", `capacity = $2`, id, capacity)
	if constraint, ok := constraintViolation(err, codeCheckViolation); ok && constraint == "events_capacity_check" {
		return events.Event{}, events.ErrCapacityBelowConfirmed
	}
	return event, err
}

func (r *EventRepository) SetSchedule(ctx context.Context, id string, window events.Window) (events.Event, error) {
	event, err := r.update(ctx, "events.set_schedule", `starts_at = $2, ends_at = $3`, id, window.Start, window.End)
	if constraint, ok := constraintViolation(err, codeCheckViolation); ok && constraint == "events_window_check" {
		return events.Event{}, events.ErrInvalidSchedule
	}
	return event, err
}

// ReserveSeat is the compare-and-commit step of Join: the increment only
// applies while a seat is free.
func (r *EventRepository) ReserveSeat(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("events.reserve_seat", start, err) }()

	tag, err := r.q.Exec(ctx, `
UPDATE events
   SET confirmed_count = confirmed_count + 1, updated_at = now()
 WHERE id = $1
   AND deleted_at IS NULL
   AND (capacity = 0 OR confirmed_count < capacity)`, id)
	if err != nil {
		return translate("reserve seat", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.selectLive(ctx, "events.get", id, ""); err != nil {
		return err
	}
	return events.ErrEventFull
}

func (r *EventRepository) ReleaseSeat(ctx context.Context, id string) error {
	return r.exec(ctx, "events.release_seat",
		`UPDATE events SET confirmed_count = GREATEST(confirmed_count - 1, 0), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *EventRepository) ResetSeats(ctx context.Context, id string) error {
	return r.exec(ctx, "events.reset_seats",
		`UPDATE events SET confirmed_count = 0, updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *EventRepository) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "events.mark_deleted",
		`UPDATE events SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`, id, at)
}

func (r *EventRepository) ListTypes(ctx context.Context) (types []events.EventType, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("event_types.list", start, err) }()

	rows, err := r.q.Query(ctx, `SELECT id, name, description FROM event_types ORDER BY id`)
	if err != nil {
		return nil, translate("list event types", err)
	}
	types, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (events.EventType, error) {
		var t events.EventType
		err := row.Scan(&t.ID, &t.Name, &t.Description)
		return t, err
	})
	if err != nil {
		return nil, translate("list event types", err)
	}
	return types, nil
}

func (r *EventRepository) GetType(ctx context.Context, id int) (events.EventType, error) {
	var t events.EventType
	err := r.q.QueryRow(ctx, `SELECT id, name, description FROM event_types WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return events.EventType{}, events.ErrTypeNotFound
	}
	if err != nil {
		return events.EventType{}, translate("get event type", err)
	}
	return t, nil
}

func (r *EventRepository) update(ctx context.Context, op string, set string, id string, args ...any) (event events.Event, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(op, start, err) }()

	params := append([]any{id}, args...)
	event, err = scanEvent(r.q.QueryRow(ctx, `
UPDATE events SET `+set+`, updated_at = now()
 WHERE id = $1 AND deleted_at IS NULL
RETURNING `+eventColumns, params...))
	if errors.Is(err, pgx.ErrNoRows) {
		return events.Event{}, events.ErrNotFound
	}
	if err != nil {
		if _, ok := constraintViolation(err, codeCheckViolation); ok {
			return events.Event{}, err
		}
		return events.Event{}, translate(op, err)
	}
	return event, nil
}

func (r *EventRepository) exec(ctx context.Context, op string, sql string, args ...any) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(op, start, err) }()

	tag, err := r.q.Exec(ctx, sql, args...)
	if err != nil {
		return translate(op, err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func timestamptzPtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time.UTC()
	return &t
}

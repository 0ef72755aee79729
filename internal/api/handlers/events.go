package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/api/pagination"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
)

// EventCatalog is the slice of events.Catalog the HTTP layer needs.
type EventCatalog interface {
	Create(ctx context.Context, principal auth.Principal, params events.CreateParams) (events.Event, error)
	Get(ctx context.Context, id string) (events.Event, error)
	List(ctx context.Context, filters events.Filters, pagination events.Pagination) (events.ListResult, error)
	ListTypes(ctx context.Context) ([]events.EventType, error)
	UpdateCapacity(ctx context.Context, principal auth.Principal, id string, capacity int) (events.Event, error)
	UpdateSchedule(ctx context.Context, principal auth.Principal, id string, window events.Window) (events.Event, error)
	Delete(ctx context.Context, principal auth.Principal, id string) (events.DeleteResult, error)
}

type EventsHandler struct {
	Catalog EventCatalog
	*Responder
}

func NewEventsHandler(catalog EventCatalog, responder *Responder) *EventsHandler {
	return &EventsHandler{Catalog: catalog, Responder: responder}
}

type eventResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	Capacity       int        `json:"capacity"`
	ConfirmedCount int        `json:"confirmed_count"`
	SeatsLeft      *int       `json:"seats_left"`
	TypeID         int        `json:"type_id"`
	OrganizerID    string     `json:"organizer_id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func toEventResponse(e events.Event) eventResponse {
	resp := eventResponse{
		ID:             e.ID,
		Title:          e.Title,
		Description:    e.Description,
		StartsAt:       e.Window.Start,
		EndsAt:         e.Window.End,
		Capacity:       e.Capacity,
		ConfirmedCount: e.ConfirmedCount,
		TypeID:         e.TypeID,
		OrganizerID:    e.OrganizerID,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
		DeletedAt:      e.DeletedAt,
	}
	// null means unlimited
	if e.Bounded() {
		left := e.SeatsLeft()
		resp.SeatsLeft = &left
	}
	return resp
}

type listResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// List handles GET /api/v1/events. The after parameter takes the opaque
// next_cursor of the previous page.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := decodeAfter(r, pagination.KindEvent)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	filters, page, err := events.ParseFilters(query)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	result, err := h.Catalog.List(r.Context(), filters, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	items := make([]eventResponse, 0, len(result.Events))
	for _, event := range result.Events {
		items = append(items, toEventResponse(event))
	}
	writeJSON(w, http.StatusOK, listResponse[eventResponse]{Items: items, NextCursor: pagination.EncodeEventCursor(result.NextCursor)})
}

// decodeAfter returns the query with its opaque "after" cursor replaced by the
// id it points after.
func decodeAfter(r *http.Request, kind pagination.Kind) (url.Values, error) {
	query := r.URL.Query()
	if cursor := query.Get("after"); cursor != "" {
		id, err := pagination.Decode(kind, cursor)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid after cursor", err).WithMetadata("field", "after")
		}
		query.Set("after", id)
	}
	return query, nil
}

// pageParams reads limit and an "after" cursor of kind.
func pageParams(r *http.Request, kind pagination.Kind) (events.Pagination, error) {
	query, err := decodeAfter(r, kind)
	if err != nil {
		return events.Pagination{}, err
	}
	return events.ParsePagination(query)
}

type createEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"max=10000"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	Capacity    int       `json:"capacity"`
	TypeID      int       `json:"type_id" validate:"required,min=1"`
}

// Create handles POST /api/v1/events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := h.decode(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	event, err := h.Catalog.Create(r.Context(), principal(r), events.CreateParams{
		Title:       req.Title,
		Description: req.Description,
		Window:      events.Window{Start: req.StartsAt, End: req.EndsAt},
		Capacity:    req.Capacity,
		TypeID:      req.TypeID,
	})
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/events/"+event.ID)
	writeJSON(w, http.StatusCreated, toEventResponse(event))
}

// Get handles GET /api/v1/events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.Catalog.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

type capacityRequest struct {
	Capacity *int `json:"capacity" validate:"required"`
}

// UpdateCapacity handles PUT /api/v1/events/{id}/capacity.
func (h *EventsHandler) UpdateCapacity(w http.ResponseWriter, r *http.Request) {
	var req capacityRequest
	if err := h.decode(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	event, err := h.Catalog.UpdateCapacity(r.Context(), principal(r), pathParam(r, "id"), *req.Capacity)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

type scheduleRequest struct {
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required"`
}

// UpdateSchedule handles PUT /api/v1/events/{id}/schedule.
func (h *EventsHandler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := h.decode(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	event, err := h.Catalog.UpdateSchedule(r.Context(), principal(r), pathParam(r, "id"), events.Window{Start: req.StartsAt, End: req.EndsAt})
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

type deleteResponse struct {
	ID                   string `json:"id"`
	CancelledAttendances int    `json:"cancelled_attendances"`
	RejectedComments     int    `json:"rejected_comments"`
	Override             bool   `json:"override"`
}

// Delete handles DELETE /api/v1/events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	result, err := h.Catalog.Delete(r.Context(), principal(r), id)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{
		ID:                   id,
		CancelledAttendances: result.CancelledAttendances,
		RejectedComments:     result.RejectedComments,
		Override:             result.Override,
	})
}

type eventTypeResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListTypes handles GET /api/v1/event-types.
func (h *EventsHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Catalog.ListTypes(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	items := make([]eventTypeResponse, 0, len(types))
	for _, t := range types {
		items = append(items, eventTypeResponse{ID: t.ID, Name: t.Name, Description: t.Description})
	}
	writeJSON(w, http.StatusOK, listResponse[eventTypeResponse]{Items: items})
}

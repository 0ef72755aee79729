package events

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/domain/ids"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

func filterError(field, message string) error {
	return apperrors.New(apperrors.CodeInvalidInput, "invalid "+field+": "+message).WithMetadata("field", field)
}

// ParseFilters reads list filters from query parameters: organizerId, type, from, to
// (RFC 3339 or YYYY-MM-DD), limit and after.
func ParseFilters(values url.Values) (Filters, Pagination, error) {
	filters := Filters{}
	pagination := Pagination{Limit: defaultLimit}

	from, err := parseTime("from", values.Get("from"))
	if err != nil {
		return filters, pagination, err
	}
	to, err := parseTime("to", values.Get("to"))
	if err != nil {
		return filters, pagination, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return filters, pagination, filterError("to", "must be on or after from")
	}
	filters.From = from
	filters.To = to

	if organizer := strings.TrimSpace(values.Get("organizerId")); organizer != "" {
		normalized, err := ids.Normalize(organizer)
		if err != nil {
			return filters, pagination, filterError("organizerId", "invalid ULID")
		}
		filters.OrganizerID = normalized
	}

	if rawType := strings.TrimSpace(values.Get("type")); rawType != "" {
		typeID, err := strconv.Atoi(rawType)
		if err != nil || typeID < 1 {
			return filters, pagination, filterError("type", "must be a positive number")
		}
		filters.TypeID = typeID
	}

	pagination, err = ParsePagination(values)
	return filters, pagination, err
}

// ParsePagination reads limit (1..200, default 50) and after, the id of the
// last item already seen.
func ParsePagination(values url.Values) (Pagination, error) {
	pagination := Pagination{Limit: defaultLimit}

	if rawLimit := strings.TrimSpace(values.Get("limit")); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil {
			return pagination, filterError("limit", "must be a number")
		}
		if limit < 1 || limit > maxLimit {
			return pagination, filterError("limit", "must be between 1 and 200")
		}
		pagination.Limit = limit
	}

	if after := strings.TrimSpace(values.Get("after")); after != "" {
		normalized, err := ids.Normalize(after)
		if err != nil {
			return pagination, filterError("after", "must be a valid ULID (e.g., 01HQZX3Y4K6F7G8H9J0K1M2N3P)")
		}
		pagination.After = normalized
	}
	return pagination, nil
}

// bounded clamps a zero or oversized limit to the default.
func (p Pagination) bounded() Pagination {
	if p.Limit <= 0 || p.Limit > maxLimit {
		p.Limit = defaultLimit
	}
	return p
}

func parseTime(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, filterError(field, "must be RFC 3339 or YYYY-MM-DD")
	}
	return &parsed, nil
}

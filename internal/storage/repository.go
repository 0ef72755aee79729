package storage

import (
	"context"

	"github.com/Togather-Foundation/eventplus/internal/domain/events"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
)

// Repository groups data access by domain. The postgres and memory packages both
// implement it.
type Repository interface {
	events.Store
	Users() users.Repository
	Ping(ctx context.Context) error
}

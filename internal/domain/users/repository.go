package users

import (
	"context"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/auth"
)

// User is a registered account. PasswordHash never leaves the domain layer.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Type         auth.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the identity the role gate sees for u.
func (u User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Role: u.Type}
}

// UserType is a row of the seeded user_types reference table.
type UserType struct {
	Name        auth.Role
	Description string
}

// Repository persists users. Create reports ErrEmailTaken / ErrUsernameTaken on
// unique violations; lookups report ErrUserNotFound.
type Repository interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	UpdateType(ctx context.Context, id string, role auth.Role) (User, error)
	ListTypes(ctx context.Context) ([]UserType, error)
}

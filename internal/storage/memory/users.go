package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
)

type userRepository struct {
	s *Store
}

func (r *userRepository) Create(ctx context.Context, user users.User) (users.User, error) {
	err := r.s.with(func(d *data) error {
		for _, existing := range d.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return users.ErrEmailTaken
			}
			if strings.EqualFold(existing.Username, user.Username) {
				return users.ErrUsernameTaken
			}
		}
		d.users[user.ID] = user
		return nil
	})
	return user, err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (users.User, error) {
	var user users.User
	err := r.s.with(func(d *data) error {
		var ok bool
		if user, ok = d.users[id]; !ok {
			return users.ErrUserNotFound
		}
		return nil
	})
	return user, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (users.User, error) {
	var user users.User
	err := r.s.with(func(d *data) error {
		for _, u := range d.users {
			if strings.EqualFold(u.Email, email) {
				user = u
				return nil
			}
		}
		return users.ErrUserNotFound
	})
	return user, err
}

func (r *userRepository) UpdateType(ctx context.Context, id string, role auth.Role) (users.User, error) {
	var user users.User
	err := r.s.with(func(d *data) error {
		current, ok := d.users[id]
		if !ok {
			return users.ErrUserNotFound
		}
		current.Type = role
		current.UpdatedAt = time.Now().UTC()
		d.users[id] = current
		user = current
		return nil
	})
	return user, err
}

func (r *userRepository) ListTypes(ctx context.Context) ([]users.UserType, error) {
	var types []users.UserType
	err := r.s.with(func(d *data) error {
		types = slices.Clone(d.userTypes)
		return nil
	})
	return types, err
}

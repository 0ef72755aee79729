package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
	"github.com/Togather-Foundation/eventplus/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	q queryer
}

const userColumns = `id, username, email, password_hash, user_type, created_at, updated_at`

func scanUser(row pgx.Row) (users.User, error) {
	var (
		u        users.User
		userType string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &userType, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return users.User{}, err
	}
	u.Type = auth.Role(userType)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, user users.User) (created users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("users.create", start, err) }()

	created, err = scanUser(r.q.QueryRow(ctx, `
INSERT INTO users (id, username, email, password_hash, user_type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+userColumns,
		user.ID, user.Username, user.Email, user.PasswordHash, string(user.Type), user.CreatedAt, user.UpdatedAt))
	if constraint, ok := constraintViolation(err, codeUniqueViolation); ok {
		switch constraint {
		case "users_email_key":
			return users.User{}, users.ErrEmailTaken
		case "users_username_key":
			return users.User{}, users.ErrUsernameTaken
		}
	}
	if _, ok := constraintViolation(err, codeForeignKeyViolation); ok {
		return users.User{}, users.ErrInvalidUserType
	}
	if err != nil {
		return users.User{}, translate("create user", err)
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (users.User, error) {
	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (users.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *UserRepository) UpdateType(ctx context.Context, id string, role auth.Role) (users.User, error) {
	user, err := r.getOne(ctx, "users.update_type", `
UPDATE users SET user_type = $2, updated_at = now()
 WHERE id = $1
RETURNING `+userColumns, id, string(role))
	if _, ok := constraintViolation(err, codeForeignKeyViolation); ok {
		return users.User{}, users.ErrInvalidUserType
	}
	return user, err
}

func (r *UserRepository) ListTypes(ctx context.Context) (types []users.UserType, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("user_types.list", start, err) }()

	rows, err := r.q.Query(ctx, `SELECT name, description FROM user_types ORDER BY name`)
	if err != nil {
		return nil, translate("list user types", err)
	}
	types, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (users.UserType, error) {
		var (
			t    users.UserType
			name string
		)
		err := row.Scan(&name, &t.Description)
		t.Name = auth.Role(name)
		return t, err
	})
	if err != nil {
		return nil, translate("list user types", err)
	}
	return types, nil
}

func (r *UserRepository) getOne(ctx context.Context, op string, sql string, args ...any) (user users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(op, start, err) }()

	user, err = scanUser(r.q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return users.User{}, users.ErrUserNotFound
	}
	if err != nil {
		if _, ok := constraintViolation(err, codeForeignKeyViolation); ok {
			return users.User{}, err
		}
		return users.User{}, translate(op, err)
	}
	return user, nil
}

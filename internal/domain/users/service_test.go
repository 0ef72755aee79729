package users_test

import (
	"context"
	"testing"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
	"github.com/Togather-Foundation/eventplus/internal/storage/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *users.Service {
	t.Helper()
	return users.NewService(memory.New().Users(), nil, zerolog.Nop(), users.WithBcryptCost(bcrypt.MinCost))
}

func register(t *testing.T, svc *users.Service, username string, role auth.Role) users.User {
	t.Helper()
	user, err := svc.Register(context.Background(), users.RegisterParams{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter2hunter2",
		Type:     role,
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, users.RegisterParams{
		Username: "  <b>alice</b> ",
		Email:    " Alice@Example.COM ",
		Password: "correct horse 1",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, auth.RoleAttendee, user.Type, "default type")
	assert.NotEqual(t, "correct horse 1", user.PasswordHash)

	organizer := register(t, svc, "bob", auth.RoleOrganizer)
	assert.Equal(t, auth.RoleOrganizer, organizer.Type)
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		params users.RegisterParams
		field  string
	}{
		{"short username", users.RegisterParams{Username: "al", Email: "al@example.com", Password: "password1"}, "username"},
		{"bad email", users.RegisterParams{Username: "alice", Email: "nope", Password: "password1"}, "email"},
		{"short password", users.RegisterParams{Username: "alice", Email: "a@example.com", Password: "pw1"}, "password"},
		{"weak password", users.RegisterParams{Username: "alice", Email: "a@example.com", Password: "onlyletters"}, "password"},
		{"self-service admin", users.RegisterParams{Username: "alice", Email: "a@example.com", Password: "password1", Type: auth.RoleAdministrator}, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService(t).Register(context.Background(), tt.params)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
			assert.Equal(t, tt.field, apperrors.GetMetadata(err)["field"])
		})
	}
}

func TestRegisterDuplicates(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	register(t, svc, "alice", auth.RoleAttendee)

	_, err := svc.Register(ctx, users.RegisterParams{Username: "alice2", Email: "ALICE@example.com", Password: "password1"})
	require.ErrorIs(t, err, users.ErrEmailTaken)

	_, err = svc.Register(ctx, users.RegisterParams{Username: "Alice", Email: "other@example.com", Password: "password1"})
	require.ErrorIs(t, err, users.ErrUsernameTaken)
}

func TestAuthenticate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	user := register(t, svc, "alice", auth.RoleAttendee)

	got, err := svc.Authenticate(ctx, "ALICE@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice@example.com", "wrong-password1")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "hunter2hunter2")
	require.ErrorIs(t, err, users.ErrInvalidCredentials)
}

func TestEnsureAdministrator(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	admin, created, err := svc.EnsureAdministrator(ctx, "root", "root@example.com", "bootstrap123")
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, auth.RoleAdministrator, admin.Type)

	again, created, err := svc.EnsureAdministrator(ctx, "root", "root@example.com", "bootstrap123")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)
}

func TestChangeType(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin, _, err := svc.EnsureAdministrator(ctx, "root", "root@example.com", "bootstrap123")
	require.NoError(t, err)
	member := register(t, svc, "alice", auth.RoleAttendee)

	_, err = svc.ChangeType(ctx, member.Principal(), member.ID, "administrator")
	require.True(t, apperrors.IsCode(err, apperrors.CodePermissionDenied))

	_, err = svc.ChangeType(ctx, auth.Principal{}, member.ID, "organizer")
	require.True(t, apperrors.IsCode(err, apperrors.CodeUnauthenticated))

	_, err = svc.ChangeType(ctx, admin.Principal(), member.ID, "superuser")
	require.ErrorIs(t, err, users.ErrInvalidUserType)

	_, err = svc.ChangeType(ctx, admin.Principal(), "01ARZ3NDEKTSV4RRFFQ69G5FAV", "organizer")
	require.ErrorIs(t, err, users.ErrUserNotFound)

	updated, err := svc.ChangeType(ctx, admin.Principal(), member.ID, "Organizer")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOrganizer, updated.Type)

	stored, err := svc.Get(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOrganizer, stored.Type)
}

func TestResolvePrincipalFollowsTypeChanges(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin, _, err := svc.EnsureAdministrator(ctx, "root", "root@example.com", "bootstrap123")
	require.NoError(t, err)
	member := register(t, svc, "olga", auth.RoleOrganizer)

	p, err := svc.ResolvePrincipal(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOrganizer, p.Role)

	_, err = svc.ChangeType(ctx, admin.Principal(), member.ID, "attendee")
	require.NoError(t, err)

	p, err = svc.ResolvePrincipal(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAttendee, p.Role, "cached type is dropped on change")
	assert.Equal(t, member.ID, p.UserID)

	_, err = svc.ResolvePrincipal(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestListTypes(t *testing.T) {
	types, err := newService(t).ListTypes(context.Background())
	require.NoError(t, err)
	names := make([]auth.Role, 0, len(types))
	for _, ut := range types {
		names = append(names, ut.Name)
	}
	assert.ElementsMatch(t, auth.Roles(), names)
}

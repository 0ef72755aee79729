package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Togather-Foundation/eventplus/internal/audit"
	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/ids"
	apperrors "github.com/Togather-Foundation/eventplus/internal/errors"
	"github.com/Togather-Foundation/eventplus/internal/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/karlseguin/ccache/v3"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Error types for user domain operations
var (
	ErrUserNotFound       = apperrors.New(apperrors.CodeNotFound, "user not found")
	ErrEmailTaken         = apperrors.New(apperrors.CodeEmailTaken, "email is already taken")
	ErrUsernameTaken      = apperrors.New(apperrors.CodeUsernameTaken, "username is already taken")
	ErrInvalidCredentials = apperrors.New(apperrors.CodeInvalidCredentials, "invalid email or password")
	ErrPasswordTooWeak    = apperrors.New(apperrors.CodeInvalidInput, "password must contain letters and digits").WithMetadata("field", "password", "rule", "strength")
	ErrInvalidUserType    = apperrors.New(apperrors.CodeInvalidInput, "unknown user type").WithMetadata("field", "type", "rule", "oneof")
)

const (
	// DefaultType is assigned when registration does not pick one.
	DefaultType = auth.RoleAttendee

	// BcryptCost is the cost factor for bcrypt password hashing
	BcryptCost = 12

	typesCacheKey = "user_types"
	typesCacheTTL = time.Hour

	// roleCacheTTL bounds how long another instance may serve a stale type
	// after ChangeType. The instance that made the change drops its entry.
	roleCacheTTL   = 30 * time.Second
	maxCachedRoles = 50_000
)

// Service handles registration, credential checks and user type changes.
type Service struct {
	repo       Repository
	audit      *audit.Logger
	validator  *validator.Validate
	types      *ccache.Cache[[]UserType]
	roles      *ccache.Cache[auth.Role]
	bcryptCost int
	dummyHash  []byte
	logger     zerolog.Logger
}

type Option func(*Service)

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func NewService(repo Repository, auditLogger *audit.Logger, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		audit:      auditLogger,
		validator:  validator.New(validator.WithRequiredStructEnabled()),
		types:      ccache.New(ccache.Configure[[]UserType]().MaxSize(16)),
		roles:      ccache.New(ccache.Configure[auth.Role]().MaxSize(maxCachedRoles)),
		bcryptCost: BcryptCost,
		logger:     logger.With().Str("component", "users").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// Compared against when the email is unknown so both failure paths cost the same.
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("eventplus-dummy-password"), s.bcryptCost)
	return s
}

// RegisterParams contains parameters for self-service registration
type RegisterParams struct {
	Username string    `validate:"required,min=3,max=50"`
	Email    string    `validate:"required,email,max=254"`
	Password string    `validate:"required,min=8,max=72"`
	Type     auth.Role `validate:"omitempty,oneof=organizer attendee"`
}

// Register creates an account. Self-service accounts are organizers or attendees;
// administrators are bootstrapped or promoted by another administrator.
func (s *Service) Register(ctx context.Context, params RegisterParams) (User, error) {
	params.Username = sanitize.Line(params.Username)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	if params.Type == "" {
		params.Type = DefaultType
	}
	if err := s.validator.Struct(params); err != nil {
		return User{}, apperrors.FromValidation(err)
	}
	if err := validatePassword(params.Password); err != nil {
		return User{}, err
	}

	return s.create(ctx, params.Username, params.Email, params.Password, params.Type)
}

// EnsureAdministrator creates the bootstrap administrator unless the email already
// exists. It reports whether a user was created.
func (s *Service) EnsureAdministrator(ctx context.Context, username, email, password string) (User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, fmt.Errorf("lookup bootstrap administrator: %w", err)
	}
	if err := validatePassword(password); err != nil {
		return User{}, false, err
	}

	user, err := s.create(ctx, sanitize.Line(username), email, password, auth.RoleAdministrator)
	if err != nil {
		return User{}, false, err
	}
	s.audit.Success(ctx, "user.bootstrap_admin", audit.Actor{ID: "system"}, "user", user.ID, map[string]string{"email": email})
	return user, true, nil
}

func (s *Service) create(ctx context.Context, username, email, password string, role auth.Role) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := ids.NewULID()
	if err != nil {
		return User{}, fmt.Errorf("generate user id: %w", err)
	}

	now := time.Now().UTC()
	user, err := s.repo.Create(ctx, User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Type:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("type", string(user.Type)).Msg("user registered")
	return user, nil
}

// Authenticate verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug().Str("user_id", user.ID).Msg("password mismatch")
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if err := ids.ValidateULID(id); err != nil {
		return User{}, ErrUserNotFound
	}
	return s.repo.GetByID(ctx, strings.ToUpper(id))
}

// ResolvePrincipal returns the caller's current type from storage. Tokens carry
// the type at issue time; requests are authorized against this one instead.
func (s *Service) ResolvePrincipal(ctx context.Context, userID string) (auth.Principal, error) {
	item, err := s.roles.Fetch(userID, roleCacheTTL, func() (auth.Role, error) {
		user, err := s.Get(ctx, userID)
		if err != nil {
			return "", err
		}
		return user.Type, nil
	})
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.Principal{UserID: userID, Role: item.Value()}, nil
}

// ChangeType sets a user's type. Only administrators may do this. Existing
// tokens of the target are authorized with the new type.
func (s *Service) ChangeType(ctx context.Context, principal auth.Principal, userID string, role string) (User, error) {
	if err := auth.Authorize(principal, auth.ActionChangeUserType, auth.Target{}).Err(auth.ActionChangeUserType); err != nil {
		s.audit.Failure(ctx, "user.type_changed", actorOf(principal), "user", userID, map[string]string{"reason": "denied"})
		return User{}, err
	}
	newType, ok := auth.ParseRole(role)
	if !ok {
		return User{}, ErrInvalidUserType
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if current.Type == newType {
		return current, nil
	}

	updated, err := s.repo.UpdateType(ctx, current.ID, newType)
	if err != nil {
		return User{}, err
	}
	s.roles.Delete(updated.ID)

	s.audit.Success(ctx, "user.type_changed", actorOf(principal), "user", updated.ID, map[string]string{
		"from": string(current.Type),
		"to":   string(updated.Type),
	})
	return updated, nil
}

// ListTypes returns the user type reference data, cached in process.
func (s *Service) ListTypes(ctx context.Context) ([]UserType, error) {
	item, err := s.types.Fetch(typesCacheKey, typesCacheTTL, func() ([]UserType, error) {
		return s.repo.ListTypes(ctx)
	})
	if err != nil {
		return nil, err
	}
	return item.Value(), nil
}

// validatePassword requires at least one letter and one digit; length is checked by
// the struct tags (bcrypt ignores bytes past 72).
func validatePassword(password string) error {
	if len(password) < 8 || len(password) > 72 {
		return apperrors.New(apperrors.CodeInvalidInput, "password must be 8 to 72 bytes").
			WithMetadata("field", "password", "rule", "length")
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return ErrPasswordTooWeak
	}
	return nil
}

func actorOf(p auth.Principal) audit.Actor {
	return audit.Actor{ID: p.UserID, Role: string(p.Role)}
}

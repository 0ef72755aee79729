package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Togather-Foundation/eventplus/internal/auth"
	"github.com/Togather-Foundation/eventplus/internal/domain/users"
)

// UserService is the slice of users.Service the HTTP layer needs.
type UserService interface {
	Register(ctx context.Context, params users.RegisterParams) (users.User, error)
	Authenticate(ctx context.Context, email, password string) (users.User, error)
	ChangeType(ctx context.Context, principal auth.Principal, userID string, role string) (users.User, error)
	ListTypes(ctx context.Context) ([]users.UserType, error)
	ResolvePrincipal(ctx context.Context, userID string) (auth.Principal, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Generate(p auth.Principal) (string, time.Time, error)
}

type UsersHandler struct {
	Users  UserService
	Tokens TokenIssuer
	*Responder
}

func NewUsersHandler(service UserService, tokens TokenIssuer, responder *Responder) *UsersHandler {
	return &UsersHandler{Users: service, Tokens: tokens, Responder: responder}
}

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Type      auth.Role `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u users.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Type: u.Type, CreatedAt: u.CreatedAt}
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Type     string `json:"type"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        userResponse `json:"user"`
}

// Register handles POST /api/v1/auth/register.
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decode(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	user, err := h.Users.Register(r.Context(), users.RegisterParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Type:     auth.Role(req.Type),
	})
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/users/"+user.ID)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login handles POST /api/v1/auth/login and returns a bearer token.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	user, err := h.Users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	token, expiresAt, err := h.Tokens.Generate(user.Principal())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        toUserResponse(user),
	})
}

type changeTypeRequest struct {
	Type string `json:"type" validate:"required"`
}

// ChangeType handles PUT /api/v1/users/{id}/type.
func (h *UsersHandler) ChangeType(w http.ResponseWriter, r *http.Request) {
	var req changeTypeRequest
	if err := h.decode(r, &req); err != nil {
		h.WriteError(w, r, err)
		return
	}

	user, err := h.Users.ChangeType(r.Context(), principal(r), pathParam(r, "id"), req.Type)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type userTypeResponse struct {
	Name        auth.Role `json:"name"`
	Description string    `json:"description"`
}

// ListTypes handles GET /api/v1/user-types.
func (h *UsersHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Users.ListTypes(r.Context())
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	items := make([]userTypeResponse, 0, len(types))
	for _, t := range types {
		items = append(items, userTypeResponse{Name: t.Name, Description: t.Description})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

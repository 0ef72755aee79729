package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the access token payload: the user id in sub plus the role.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Principal() Principal {
	role, _ := ParseRole(c.Role)
	return Principal{UserID: c.Subject, Role: role}
}

// JWTManager signs and checks HS256 access tokens for one issuer and audience.
type JWTManager struct {
	secret   []byte
	expiry   time.Duration
	issuer   string
	audience string
	parser   *jwt.Parser
	now      func() time.Time
}

func NewJWTManager(secret []byte, expiry time.Duration, issuer, audience string, leeway time.Duration) *JWTManager {
	return &JWTManager{
		secret:   secret,
		expiry:   expiry,
		issuer:   issuer,
		audience: audience,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithLeeway(leeway),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
		now: time.Now,
	}
}

// Generate signs a token for p. It returns the token and when it expires.
func (m *JWTManager) Generate(p Principal) (string, time.Time, error) {
	if !p.Authenticated() {
		return "", time.Time{}, fmt.Errorf("%w: principal has no user or role", ErrInvalidToken)
	}
	issued := m.now().Truncate(time.Second)
	expires := issued.Add(m.expiry)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.UserID,
			Issuer:    m.issuer,
			Audience:  jwt.ClaimStrings{m.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate checks signature, issuer, audience and lifetime. Every failure
// matches ErrInvalidToken; the jwt error is kept for logs.
func (m *JWTManager) Validate(token string) (*Claims, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !claims.Principal().Authenticated() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}
	return claims, nil
}

// TokenFromHeader extracts the credential from "Bearer <token>".
func TokenFromHeader(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrMissingToken
	}
	return token, nil
}

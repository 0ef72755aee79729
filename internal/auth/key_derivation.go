package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// KeyPurpose labels a key derived from JWT_SECRET. Keys with different purposes
// are independent of each other and of the secret.
type KeyPurpose string

const PurposeAccessToken KeyPurpose = "eventplus-access-jwt-v1"

// DerivedKeyLength fits HMAC-SHA256.
const DerivedKeyLength = 32

var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey expands masterSecret with HKDF-SHA256 (RFC 5869, no salt), using
// purpose as the info parameter.
func DeriveKey(masterSecret []byte, purpose KeyPurpose) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}
	key := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterSecret, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", purpose, err)
	}
	return key, nil
}

func DeriveAccessJWTKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, PurposeAccessToken)
}

// NewAccessTokenManager builds the JWT manager for principal access tokens. The
// configured secret never signs anything itself.
func NewAccessTokenManager(masterSecret string, expiry time.Duration, issuer, audience string, leeway time.Duration) (*JWTManager, error) {
	key, err := DeriveAccessJWTKey([]byte(masterSecret))
	if err != nil {
		return nil, err
	}
	return NewJWTManager(key, expiry, issuer, audience, leeway), nil
}

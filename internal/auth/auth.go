// Package auth verifies the caller identity attached to engine
// requests. Tokens are HS256 JWTs minted by the surrounding platform;
// the engine only verifies and extracts claims.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrUnauthenticated means no valid identity was presented.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrPermission means the identity lacks the required role or is
	// acting on another user's data.
	ErrPermission = errors.New("permission denied")
)

// Identity is the verified caller.
type Identity struct {
	UserID string
	Role   string
}

// Claims is the token payload the platform mints for engine calls.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the shared HS256 secret.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("auth: empty JWT secret")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates a bearer token, returning the caller
// identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrUnauthenticated
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthenticated
	}
	return &Identity{UserID: claims.Subject, Role: claims.Role}, nil
}

// Mint signs a token for the given identity. The server does not mint
// tokens in production; this exists for tooling and tests.
func (v *Verifier) Mint(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// AssertAuthenticated returns ErrUnauthenticated for a nil identity.
func AssertAuthenticated(id *Identity) error {
	if id == nil || id.UserID == "" {
		return ErrUnauthenticated
	}
	return nil
}

// AssertSelfOrRole allows access when the identity owns the target user
// id or carries one of the given roles.
func AssertSelfOrRole(id *Identity, targetUserID string, roles ...string) error {
	if err := AssertAuthenticated(id); err != nil {
		return err
	}
	if id.UserID == targetUserID {
		return nil
	}
	for _, r := range roles {
		if id.Role == r {
			return nil
		}
	}
	return ErrPermission
}

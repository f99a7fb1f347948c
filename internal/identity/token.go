package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sanastro.app/internal/auth"
)

// Audience carried by access tokens of signed-in users.
const Audience = "authenticated"

// Claims is the subset of auth platform access token claims the service reads.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier validates HS256 access tokens signed with the project JWT secret.
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

// MinSecretLen is the shortest HS256 signing secret accepted.
const MinSecretLen = 32

func NewTokenVerifier(secret string, now func() time.Time) (*TokenVerifier, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("identity: jwt secret must be at least %d bytes", MinSecretLen)
	}
	if now == nil {
		now = time.Now
	}
	return &TokenVerifier{secret: []byte(secret), now: now}, nil
}

// Verify checks signature, audience and expiry and returns the identity the token speaks for.
func (v *TokenVerifier) Verify(token string) (*auth.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{ID: claims.Subject, Email: claims.Email}, nil
}

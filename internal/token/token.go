// Package token issues and verifies the bearer tokens that gate every
// query request.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/finquery/finquery/internal/shared"
)

// Claims carried by a signed token.
type Claims struct {
	UserID       string   `json:"userId"`
	Email        string   `json:"email"`
	RoleIDs      []string `json:"roleIds"`
	DepartmentID string   `json:"departmentId"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens with a fixed lifetime.
type Issuer struct {
	secret   []byte
	lifetime time.Duration
}

// NewIssuer constructs an Issuer. Lifetime defaults to one hour.
func NewIssuer(secret string, lifetime time.Duration) *Issuer {
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	return &Issuer{secret: []byte(secret), lifetime: lifetime}
}

// Sign produces a token for the given identity attributes.
func (i *Issuer) Sign(userID, email string, roleIDs []string, departmentID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:       userID,
		Email:        email,
		RoleIDs:      roleIDs,
		DepartmentID: departmentID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify parses the token and returns its claims. Expired or malformed
// tokens fail with shared.ErrInvalidToken; there is no grace window.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, shared.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}

// Lifetime reports the configured token lifetime.
func (i *Issuer) Lifetime() time.Duration {
	return i.lifetime
}

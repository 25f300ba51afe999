package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rryowa/lms_session/internal/models"
)

var ErrTokenMalformed = errors.New("token is malformed")

// sessionClaims is what the backend embeds in access tokens. Tokens are
// decoded unverified: the client only needs the expiry and identity claims,
// validation is the backend's job.
type sessionClaims struct {
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

func parseClaims(token string) (*sessionClaims, error) {
	parsedToken, _, err := new(jwt.Parser).ParseUnverified(token, &sessionClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	claims, ok := parsedToken.Claims.(*sessionClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

func TokenExpiry(token string) (time.Time, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", ErrTokenMalformed)
	}
	return claims.ExpiresAt.Time, nil
}

// IsValid reports whether the token's expiry claim is after now. It is pure
// and recomputed on every call; the boolean must never be cached across
// time. A malformed token is invalid.
func IsValid(token string, now time.Time) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return false
	}
	return exp.After(now)
}

// ExpiresWithin reports whether the token expires within threshold of now.
// Malformed tokens count as already expired.
func ExpiresWithin(token string, now time.Time, threshold time.Duration) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return true
	}
	return !exp.After(now.Add(threshold))
}

// UserFromToken rebuilds the identity record from token claims, used when a
// restored session has no persisted user blob.
func UserFromToken(token string) (*models.User, error) {
	claims, err := parseClaims(token)
	if err != nil {
		return nil, err
	}
	return &models.User{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
	}, nil
}

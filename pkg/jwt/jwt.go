package jwt

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xilidan/meetings/pkg/errors"
)

const (
	DefaultTTL = 24 * time.Hour
	issuer     = "meetings"
)

type Claims struct {
	jwt.RegisteredClaims
}

// Generate signs an HS256 token for subject.
func Generate(ctx context.Context, subject, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret is empty: %w", errors.ErrValidation)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func ParseTokenFromHeader(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header: %w", errors.ErrUnauthorized)
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("malformed authorization header: %w", errors.ErrUnauthorized)
	}
	return strings.TrimSpace(token), nil
}

// ParseSubject validates token and returns its subject.
func ParseSubject(ctx context.Context, token, secret string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return "", fmt.Errorf("invalid token: %v: %w", err, errors.ErrUnauthorized)
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token: %w", errors.ErrUnauthorized)
	}
	return claims.Subject, nil
}

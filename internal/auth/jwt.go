// Package auth verifies the HS256 access tokens issued by the identity
// backend and turns them into request claims.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shinshin4n4n/tube-review-sub001/pkg/middleware"
)

// Claims are the access token claims this service reads. Subject is the
// opaque user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var errMissingSubject = errors.New("token has no subject")

// JWTManager validates and, for tooling, issues access tokens.
type JWTManager struct {
	secret   []byte
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewJWTManager creates a manager for tokens signed with secret. When
// audience is non-empty the aud claim must contain it.
func NewJWTManager(secret, audience string, leeway time.Duration) *JWTManager {
	return &JWTManager{
		secret:   []byte(secret),
		audience: audience,
		leeway:   leeway,
		now:      time.Now,
	}
}

// GenerateAccessToken signs a token for userID with the given role.
func (m *JWTManager) GenerateAccessToken(userID, role string, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken parses and validates an access token.
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(m.leeway),
		jwt.WithTimeFunc(m.now),
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}
	if claims.Subject == "" {
		return nil, errMissingSubject
	}
	return claims, nil
}

// Validator adapts the manager to the HTTP auth middleware.
func (m *JWTManager) Validator() middleware.TokenValidator {
	return func(_ context.Context, token string) (*middleware.Claims, error) {
		c, err := m.ValidateAccessToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: c.Subject, Role: c.Role}, nil
	}
}

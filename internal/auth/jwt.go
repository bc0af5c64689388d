// Package auth issues and verifies subject tokens and hashes passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/internal/repository"
	apperrors "github.com/utafrali/promocode/pkg/errors"
)

const issuer = "promocode"

// Claims represents the JWT claims of an access token. Subject carries the
// user or company id.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// Subject identifies who a verified token belongs to.
type Subject struct {
	ID   string
	Type string
}

// Authenticator issues HS256 tokens and verifies them against the token
// cache, so only the most recently issued token of a subject is accepted.
type Authenticator struct {
	secret []byte
	expiry time.Duration
	tokens repository.TokenCache
	now    func() time.Time
}

// NewAuthenticator creates an authenticator. Tokens expire after expiry and
// are remembered in tokens for the same duration.
func NewAuthenticator(secret string, expiry time.Duration, tokens repository.TokenCache) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		expiry: expiry,
		tokens: tokens,
		now:    time.Now,
	}
}

// Issue signs a fresh token for the subject and makes it the subject's only
// valid token.
func (a *Authenticator) Issue(ctx context.Context, subjectID, subjectType string) (string, error) {
	if !domain.IsValidSubjectType(subjectType) {
		return "", fmt.Errorf("issue token: unknown subject type %q", subjectType)
	}

	now := a.now().UTC()
	claims := &Claims{
		Type: subjectType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
			ID:        uuid.New().String(),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	if err := a.tokens.Put(ctx, subjectType, subjectID, signed, a.expiry); err != nil {
		return "", fmt.Errorf("cache token: %w", err)
	}
	return signed, nil
}

// Verify parses the token and checks that it is the subject's current one.
// Any failure is reported as Unauthorized, except a token cache outage.
func (a *Authenticator) Verify(ctx context.Context, tokenString string) (Subject, error) {
	claims, err := a.parse(tokenString)
	if err != nil {
		return Subject{}, apperrors.Unauthorized("invalid or expired token")
	}

	current, ok, err := a.tokens.Get(ctx, claims.Type, claims.Subject)
	if err != nil {
		return Subject{}, apperrors.ServiceUnavailable("token cache unavailable")
	}
	if !ok || current != tokenString {
		return Subject{}, apperrors.Unauthorized("token has been revoked")
	}

	return Subject{ID: claims.Subject, Type: claims.Type}, nil
}

func (a *Authenticator) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithTimeFunc(a.now),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" || !domain.IsValidSubjectType(claims.Type) {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

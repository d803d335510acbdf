// Package auth extracts bearer tokens and verifies access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrMissingBearer = errors.New("Bearer token not found in Authorization header")
	ErrInvalidToken  = errors.New("invalid access token")
)

const bearerPrefix = "Bearer "

// BearerToken returns the token carried by an Authorization header value.
func BearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingBearer
	}
	tok := strings.TrimSpace(header[len(bearerPrefix):])
	if tok == "" {
		return "", ErrMissingBearer
	}
	return tok, nil
}

// Verifier resolves an access token to the username it was issued for.
type Verifier interface {
	VerifyAccessToken(ctx context.Context, token string) (string, error)
}

// AccessClaims are the claims of an access token. Username falls back to sub.
type AccessClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenService verifies and issues HS256 access tokens.
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ Verifier = (*TokenService)(nil)

func NewTokenService(secret, issuer string) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &TokenService{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

func (s *TokenService) VerifyAccessToken(_ context.Context, token string) (string, error) {
	var claims AccessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return "", fmt.Errorf("%w: unexpected issuer %q", ErrInvalidToken, claims.Issuer)
	}
	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return "", fmt.Errorf("%w: no username claim", ErrInvalidToken)
	}
	return username, nil
}

// IssueAccessToken signs a token for username valid for ttl.
func (s *TokenService) IssueAccessToken(username string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

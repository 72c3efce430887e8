// Package session resolves who is looking at the explorer.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pders01/przepisy/internal/config"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrInvalidClaims = errors.New("invalid claims")
)

// Provider returns the current viewer id. An empty id means anonymous.
type Provider interface {
	CurrentViewerID(ctx context.Context) (string, error)
}

// Static always reports the same viewer.
type Static string

func (s Static) CurrentViewerID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s), nil
}

// Anonymous is a Provider with no viewer.
var Anonymous Provider = Static("")

// TokenProvider reads the viewer from the sub claim of an HS256 token.
type TokenProvider struct {
	token  string
	secret []byte
}

func NewTokenProvider(token, secret string) *TokenProvider {
	return &TokenProvider{token: token, secret: []byte(secret)}
}

func (p *TokenProvider) CurrentViewerID(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return VerifyToken(p.token, p.secret)
}

// VerifyToken checks the signature and expiry and returns the subject.
func VerifyToken(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidClaims
	}
	return sub, nil
}

// CreateToken signs an HS256 token for userID. A zero expiry issues a token
// that never expires.
func CreateToken(userID string, secret []byte, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
	}
	if expiry != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiry))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// FromConfig picks a token provider when a token is configured, the
// configured user id otherwise, and anonymous when neither is set.
func FromConfig(cfg config.SessionConfig) Provider {
	switch {
	case cfg.Token != "":
		return NewTokenProvider(cfg.Token, cfg.Secret)
	case cfg.UserID != "":
		return Static(cfg.UserID)
	}
	return Anonymous
}

package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/przepisy/internal/config"
)

var secret = []byte("test-secret")

func TestTokenProvider(t *testing.T) {
	token, err := CreateToken("u42", secret, time.Hour)
	require.NoError(t, err)

	id, err := NewTokenProvider(token, string(secret)).CurrentViewerID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u42", id)
}

func TestVerifyToken_Failures(t *testing.T) {
	expired, err := CreateToken("u1", secret, -time.Minute)
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString(secret)
	require.NoError(t, err)

	otherSecret, err := CreateToken("u1", []byte("other"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not.a.token", ErrInvalidToken},
		{"empty", "", ErrInvalidToken},
		{"wrong secret", otherSecret, ErrInvalidToken},
		{"expired", expired, ErrTokenExpired},
		{"no subject", noSubject, ErrInvalidClaims},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyToken(tt.token, secret)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStatic(t *testing.T) {
	id, err := Static("u1").CurrentViewerID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	id, err = Anonymous.CurrentViewerID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Static("u1").CurrentViewerID(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfig(t *testing.T) {
	assert.Equal(t, Anonymous, FromConfig(config.SessionConfig{}))
	assert.Equal(t, Static("u7"), FromConfig(config.SessionConfig{UserID: "u7"}))

	p := FromConfig(config.SessionConfig{UserID: "ignored", Token: "t", Secret: "s"})
	_, isToken := p.(*TokenProvider)
	assert.True(t, isToken)
}

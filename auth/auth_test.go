package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/types"
)

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAuthenticate(t *testing.T) {
	cfg := &config.Config{}
	cfg.AuthConfig.JWTSecret = "test-secret"

	tokenStr := signedToken(t, "test-secret", jwt.MapClaims{
		"uid":   float64(42),
		"uname": "alice",
		"guest": false,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	user, err := Authenticate(tokenStr, cfg)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, int64(42), user.Id)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsGuest)
}

func TestAuthenticateEmptyToken(t *testing.T) {
	cfg := &config.Config{}
	cfg.AuthConfig.JWTSecret = "test-secret"

	user, err := Authenticate("", cfg)
	assert.NoError(t, err)
	assert.Zero(t, user.Id, "empty token yields a zero user, the caller decides on guest fallback")
}

func TestAuthenticateBadSignature(t *testing.T) {
	cfg := &config.Config{}
	cfg.AuthConfig.JWTSecret = "test-secret"

	tokenStr := signedToken(t, "other-secret", jwt.MapClaims{"uid": float64(42)})
	_, err := Authenticate(tokenStr, cfg)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
}

func TestAuthenticateMissingUid(t *testing.T) {
	cfg := &config.Config{}
	cfg.AuthConfig.JWTSecret = "test-secret"

	tokenStr := signedToken(t, "test-secret", jwt.MapClaims{"uname": "alice"})
	_, err := Authenticate(tokenStr, cfg)
	assert.True(t, errors.Is(err, types.ErrUnauthorized))
}

func TestNewGuest(t *testing.T) {
	guest := NewGuest()
	assert.Negative(t, guest.Id, "guest ids never collide with account ids")
	assert.True(t, guest.IsGuest)
	assert.True(t, strings.HasSuffix(guest.Username, " (guest)"))

	other := NewGuest()
	assert.NotEqual(t, guest.Id, other.Id)
}

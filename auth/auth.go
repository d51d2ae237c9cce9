package auth

import (
	"errors"
	"math/rand"

	"github.com/folkengine/goname"
	"github.com/golang-jwt/jwt/v5"

	"github.com/wavechat/wavechat/config"
	"github.com/wavechat/wavechat/globals"
	"github.com/wavechat/wavechat/types"
)

// Authenticate resolves a gateway-issued bearer token to the connecting
// user's identity. Token issuance and account management live in the
// auth collaborator, this side only verifies the signature and reads the
// claims. An empty token (or unconfigured secret) yields a zero user and
// no error, the caller decides whether to fall back to a guest identity.
func Authenticate(tokenStr string, cfg *config.Config) (types.User, error) {
	globals.AppLogger.Debug("in authenticate")
	if tokenStr == "" || cfg.AuthConfig.JWTSecret == "" {
		return types.User{}, nil
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(cfg.AuthConfig.JWTSecret), nil
	})
	if err != nil {
		return types.User{}, types.Unauthorizedf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return types.User{}, types.Unauthorizedf("invalid claims")
	}

	uid, ok := claims["uid"].(float64)
	if !ok {
		return types.User{}, types.Unauthorizedf("bad claims")
	}
	username, _ := claims["uname"].(string)
	isGuest, _ := claims["guest"].(bool)
	return types.User{
		Id:       int64(uid),
		Username: username,
		IsGuest:  isGuest,
	}, nil
}

// NewGuest creates an ephemeral guest identity with a generated name.
// Guest ids are negative so they can never collide with accounts issued
// by the auth collaborator.
func NewGuest() types.User {
	return types.User{
		Id:       -(rand.Int63n(1<<62) + 1),
		Username: goname.New(goname.FantasyMap).FirstLast() + " (guest)",
		IsGuest:  true,
	}
}

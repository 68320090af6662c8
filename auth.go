package main

import (
	"crypto/rand"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Auth mints and checks per-player room tokens. Tokens are HS256 JWTs
// carrying the room id and side; clients treat them as opaque secrets and the
// (room id, token) pair is the sole authorization mechanism. The signing
// secret lives only for the process lifetime, matching the in-memory rooms.
type Auth struct {
	secret []byte
}

// NewAuth generates a fresh signing secret.
func NewAuth() *Auth {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic("failed to generate token secret: " + err.Error())
	}
	return &Auth{secret: secret}
}

// MintToken issues the token for one player slot of a room.
func (a *Auth) MintToken(roomID string, side int) (string, error) {
	claims := jwt.MapClaims{
		"rid":  roomID,
		"side": side,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyToken checks the signature and that the token was minted for the
// given room, returning the side it authorizes. The room still matches the
// token against its player slot; this layer rejects forged or foreign tokens
// before any room state is touched.
func (a *Auth) VerifyToken(roomID, tokenStr string) (int, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}
	rid, ok := claims["rid"].(string)
	if !ok || rid != roomID {
		return 0, fmt.Errorf("token not issued for this room")
	}
	side, ok := claims["side"].(float64)
	if !ok || (side != 0 && side != 1) {
		return 0, fmt.Errorf("invalid token claims")
	}
	return int(side), nil
}

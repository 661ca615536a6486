package sling

import (
	"testing"

	"github.com/go-playground/assert/v2"

	gojwt "github.com/golang-jwt/jwt/v5"
)

func TestParseTokenUnverified(t *testing.T) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"name":  "alice",
		"email": "alice@example.com",
	})
	tokenString, err := token.SignedString([]byte("server secret the client never sees"))
	assert.Equal(t, err, nil)

	claims, err := ParseTokenUnverified(tokenString)
	assert.Equal(t, err, nil)
	assert.Equal(t, "alice", claims.Name)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, true, claims.ExpiresAt.IsZero())
}

func TestParseTokenUnverifiedBadToken(t *testing.T) {
	_, err := ParseTokenUnverified("not a jwt")
	assert.NotEqual(t, err, nil)
}

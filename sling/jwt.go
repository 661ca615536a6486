package sling

import (
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// the server signs `{name, email}` claims into the session token. parsing
// is advisory only: the client never verifies the signature, it just reads
// the claims back for display.

type TokenClaims struct {
	Name  string
	Email string
	// zero when the token carries no expiry
	ExpiresAt time.Time
}

func ParseTokenUnverified(token string) (*TokenClaims, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims := parsed.Claims.(gojwt.MapClaims)

	tokenClaims := &TokenClaims{}

	if name, ok := claims["name"]; ok {
		if nameStr, ok := name.(string); ok {
			tokenClaims.Name = nameStr
		}
	}
	if email, ok := claims["email"]; ok {
		if emailStr, ok := email.(string); ok {
			tokenClaims.Email = emailStr
		}
	}
	if expiresAt, err := claims.GetExpirationTime(); err == nil && expiresAt != nil {
		tokenClaims.ExpiresAt = expiresAt.Time
	}

	return tokenClaims, nil
}

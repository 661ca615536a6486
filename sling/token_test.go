package sling

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// nothing stored yet means logged out, not an error
	token, err := LoadToken()
	assert.Equal(t, err, nil)
	assert.Equal(t, "", token)

	err = SaveToken("tok123")
	assert.Equal(t, err, nil)

	token, err = LoadToken()
	assert.Equal(t, err, nil)
	assert.Equal(t, "tok123", token)

	err = ClearToken()
	assert.Equal(t, err, nil)

	token, err = LoadToken()
	assert.Equal(t, err, nil)
	assert.Equal(t, "", token)

	// clearing twice is fine
	err = ClearToken()
	assert.Equal(t, err, nil)
}

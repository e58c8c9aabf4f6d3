package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func headers(key, email string) http.Header {
	h := http.Header{}
	if key != "" {
		h.Set(HeaderAPIKey, key)
	}
	if email != "" {
		h.Set(HeaderUserEmail, email)
	}
	return h
}

func TestResolve_ValidKeyAndEmail(t *testing.T) {
	p := New("super-secret-key", []string{"Boss@Company.example"})

	identity, admin := p.Resolve(headers("super-secret-key", "boss@company.example"))
	assert.Equal(t, "boss@company.example", identity)
	assert.True(t, admin)

	identity, admin = p.Resolve(headers("super-secret-key", "sales@company.example"))
	assert.Equal(t, "sales@company.example", identity)
	assert.False(t, admin)
}

func TestResolve_BadKeyIsUnauthenticated(t *testing.T) {
	p := New("super-secret-key", []string{"boss@company.example"})

	identity, admin := p.Resolve(headers("wrong-key-entirely", "boss@company.example"))
	assert.Empty(t, identity)
	assert.False(t, admin, "admin never applies without a valid key")
}

func TestResolve_MissingEmailIsUnauthenticated(t *testing.T) {
	p := New("super-secret-key", nil)
	identity, _ := p.Resolve(headers("super-secret-key", ""))
	assert.Empty(t, identity)
}

func TestCheckKey_ShortKeysRejected(t *testing.T) {
	p := New("super-secret-key", nil)
	assert.False(t, p.CheckKey("short"))
	assert.False(t, p.CheckKey(""))

	// A provider configured with a too-short key never accepts anything,
	// including an exact match.
	weak := New("weak", nil)
	assert.False(t, weak.CheckKey("weak"))
}

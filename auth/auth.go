/*
Package auth resolves request identity from API-key headers.

PURPOSE:
  Maps the X-API-Key / X-User-Email header pair to an (identity, admin)
  decision. An empty identity signals an unauthenticated request; the
  admin flag only applies to authenticated identities on the configured
  admin list.

KEY CHECK:
  Keys shorter than 8 characters are rejected outright, and comparison
  is constant-time to keep the check timing-safe.
*/
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Header names the provider reads.
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderUserEmail = "X-User-Email"
)

const minKeyLength = 8

// Provider validates API keys and classifies admins.
type Provider struct {
	apiKey string
	admins map[string]struct{}
}

// New creates a provider from the configured key and admin emails.
// Admin matching is case-insensitive.
func New(apiKey string, adminEmails []string) *Provider {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Provider{apiKey: apiKey, admins: admins}
}

// CheckKey reports whether the presented key matches the configured one.
func (p *Provider) CheckKey(key string) bool {
	key = strings.TrimSpace(key)
	if len(key) < minKeyLength || len(p.apiKey) < minKeyLength {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(p.apiKey)) == 1
}

// IsAdmin reports whether the email is on the admin list.
func (p *Provider) IsAdmin(email string) bool {
	_, ok := p.admins[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

// Resolve maps request headers to (identity, admin). The identity is
// empty when the key check fails.
func (p *Provider) Resolve(h http.Header) (identity string, admin bool) {
	if !p.CheckKey(h.Get(HeaderAPIKey)) {
		return "", false
	}
	email := strings.TrimSpace(h.Get(HeaderUserEmail))
	if email == "" {
		return "", false
	}
	return email, p.IsAdmin(email)
}

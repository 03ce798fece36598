// Package session implements the broker's SessionStore: a KV mapping
// from session-id to a short-lived auth-flow record, with at-most-once
// redemption.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Kind distinguishes an OIDC hand-off session from an email-loop session.
type Kind string

const (
	KindOIDC  Kind = "oidc"
	KindEmail Kind = "email"
)

// Record is the state carried between the request that starts an auth
// flow and the request that completes it.
type Record struct {
	Kind        Kind   `json:"kind"`
	Email       string `json:"email"`
	ClientID    string `json:"client_id"`
	Nonce       string `json:"nonce,omitempty"`
	RedirectURI string `json:"redirect_uri"`

	// Code is set only for Kind == KindEmail: the one-time code the user
	// must present back at /confirm.
	Code string `json:"code,omitempty"`

	// ProviderDomain is set only for Kind == KindOIDC: the email domain
	// that selected this session's upstream provider.
	ProviderDomain string `json:"provider_domain,omitempty"`
}

// Store is the broker's session persistence contract. Implementations
// must make VerifyAndConsume atomic: at most one concurrent call against
// the same id may succeed, and a mismatch must leave the record in place.
type Store interface {
	// Put inserts a new record under id with the given TTL. Returns an
	// error if id already exists (collision, treated as fatal).
	Put(ctx context.Context, id string, record Record, ttl time.Duration) error

	// Get returns the record for id, or ErrNotFound if absent or expired.
	Get(ctx context.Context, id string) (Record, error)

	// Delete removes id. Idempotent.
	Delete(ctx context.Context, id string) error

	// VerifyAndConsume compares code against the stored record's Code in
	// constant time. On match it deletes the record and returns it. On
	// mismatch it returns ErrMismatch and leaves the record untouched. If
	// id is absent or expired it returns ErrNotFound.
	VerifyAndConsume(ctx context.Context, id, code string) (Record, error)
}

// Pinger is implemented by stores with a remote connection to check.
// Used by the broker's /healthz handler.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewID generates a cryptographically random 16-byte session identifier,
// rendered as lowercase hex, per the spec's session-id format.
func NewID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

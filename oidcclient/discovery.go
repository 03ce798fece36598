// Package oidcclient drives the broker's side of an upstream OIDC
// authorization-code flow: discovery, authorization URL construction,
// code/token exchange, and ID token verification.
package oidcclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	brokererrors "github.com/idbroker/broker/internal/errors"
)

// DefaultTimeout bounds every outbound HTTP call this package makes:
// discovery fetch, token exchange, and JWKS fetch.
const DefaultTimeout = 10 * time.Second

// Discovery is the subset of an OIDC discovery document the broker needs.
type Discovery struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JWKSURI               string `json:"jwks_uri"`
}

// Client fetches discovery documents and drives the authorization-code
// exchange against upstream OIDC providers. keySets caches one
// oidc.RemoteKeySet per jwks_uri so repeated verifications reuse go-oidc's
// own refresh-on-unknown-kid cache instead of re-fetching the JWKS on
// every callback.
type Client struct {
	httpClient *http.Client

	mu      sync.Mutex
	keySets map[string]*oidc.RemoteKeySet
}

// New creates a Client with a bounded-timeout HTTP client.
func New() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		keySets:    make(map[string]*oidc.RemoteKeySet),
	}
}

// keySetFor returns the cached RemoteKeySet for jwksURI, creating one on
// first use.
func (c *Client) keySetFor(ctx context.Context, jwksURI string) *oidc.RemoteKeySet {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ks, ok := c.keySets[jwksURI]; ok {
		return ks
	}
	// The key set keeps this context for every later JWKS fetch, so it is
	// detached from the request's cancellation and carries the Client's
	// bounded-timeout HTTP client.
	ks := oidc.NewRemoteKeySet(oidc.ClientContext(context.WithoutCancel(ctx), c.httpClient), jwksURI)
	c.keySets[jwksURI] = ks
	return ks
}

// Discover fetches the discovery document at discoveryURL and checks its
// issuer against expectedIssuer. A mismatch is ErrProviderMismatch, never
// a hard fetch failure, since the caller (the /auth handler) needs to
// distinguish "this provider is misconfigured" from "this provider is
// unreachable".
func (c *Client) Discover(ctx context.Context, discoveryURL, expectedIssuer string) (*Discovery, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, discoveryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build discovery request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, brokererrors.Wrapf(err, "%w: fetch discovery document", brokererrors.ErrUpstreamFailure)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: discovery fetch returned %s", brokererrors.ErrUpstreamFailure, resp.Status)
	}

	var doc Discovery
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, brokererrors.Wrapf(err, "%w: decode discovery document", brokererrors.ErrUpstreamFailure)
	}

	if doc.Issuer != expectedIssuer {
		return nil, fmt.Errorf("%w: discovery issuer %q does not match configured issuer %q", brokererrors.ErrProviderMismatch, doc.Issuer, expectedIssuer)
	}

	return &doc, nil
}

// Package jwt builds and signs the broker's outgoing ID tokens.
package jwt

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/idbroker/broker/token/keys"
)

// NowTimeFunc returns the current time. Overridden in tests.
var NowTimeFunc = time.Now

// Issuer builds signed ID tokens carrying exactly the claims this broker
// is contracted to emit: no roles, no tenant, no jti. One email address
// verified once, wrapped in a JWT.
type Issuer struct {
	baseURL       string
	tokenValidity time.Duration
	signer        keys.Signer
}

// NewIssuer creates an Issuer bound to a base URL (used as iss), a token
// lifetime, and the signer that holds the broker's private key.
func NewIssuer(baseURL string, tokenValidity time.Duration, signer keys.Signer) *Issuer {
	return &Issuer{
		baseURL:       baseURL,
		tokenValidity: tokenValidity,
		signer:        signer,
	}
}

// CreateIDToken signs an ID token asserting email as verified, audienced
// to clientID, optionally carrying the RP's nonce.
func (c *Issuer) CreateIDToken(email, clientID, nonce string) (string, error) {
	now := NowTimeFunc()
	claims := jwtlib.MapClaims{
		"iss":            c.baseURL,
		"aud":            clientID,
		"sub":            email,
		"email":          email,
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            now.Add(c.tokenValidity).Unix(),
	}

	if nonce != "" {
		claims["nonce"] = nonce
	}

	signedToken, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign id token: %w", err)
	}
	return signedToken, nil
}

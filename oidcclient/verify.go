package oidcclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	brokererrors "github.com/idbroker/broker/internal/errors"
)

// allowedClockSkew is the tolerance applied to an upstream ID token's iat.
const allowedClockSkew = 60 * time.Second

type jwsHeader struct {
	Alg string `json:"alg"`
}

// headerAlg extracts and base64url-decodes the JWS header of a compact
// rawIDToken, returning its alg field.
func headerAlg(rawIDToken string) (string, error) {
	parts := strings.SplitN(rawIDToken, ".", 3)
	if len(parts) != 3 {
		return "", brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "malformed JWS: expected three segments")
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", brokererrors.Wrapf(err, "%w: malformed header", brokererrors.ErrInvalidIDToken)
	}

	var header jwsHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return "", brokererrors.Wrapf(err, "%w: malformed header", brokererrors.ErrInvalidIDToken)
	}
	return header.Alg, nil
}

type idTokenClaims struct {
	Iss           string      `json:"iss"`
	Aud           interface{} `json:"aud"`
	Exp           int64       `json:"exp"`
	Iat           int64       `json:"iat"`
	Nonce         string      `json:"nonce"`
	Email         string      `json:"email"`
	EmailVerified bool        `json:"email_verified"`
}

func (c idTokenClaims) audienceContains(clientID string) bool {
	switch aud := c.Aud.(type) {
	case string:
		return aud == clientID
	case []interface{}:
		for _, a := range aud {
			if s, ok := a.(string); ok && s == clientID {
				return true
			}
		}
	}
	return false
}

// VerifyIDToken verifies an upstream ID token's signature against the
// provider's published JWKS (keyed by disc.JWKSURI, cached and refreshed
// by go-oidc's RemoteKeySet on an unrecognized kid) and checks every claim
// the spec requires: issuer, audience, expiry, issued-at skew, the
// broker's own nonce, and that the asserted email matches the one the
// flow was started for with email_verified strictly true.
func (c *Client) VerifyIDToken(ctx context.Context, disc *Discovery, clientID, expectedIssuer, rawIDToken, expectedEmail, expectedNonce string) error {
	alg, err := headerAlg(rawIDToken)
	if err != nil {
		return err
	}
	if alg != "RS256" {
		return brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "unexpected signing algorithm %q, expected RS256", alg)
	}

	keySet := c.keySetFor(ctx, disc.JWKSURI)

	payload, err := keySet.VerifySignature(ctx, rawIDToken)
	if err != nil {
		return brokererrors.Wrapf(err, "%w: signature verification failed", brokererrors.ErrInvalidIDToken)
	}

	var claims idTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return brokererrors.Wrapf(err, "%w: malformed claims", brokererrors.ErrInvalidIDToken)
	}

	now := time.Now()
	switch {
	case claims.Iss != expectedIssuer:
		return brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "issuer %q does not match expected %q", claims.Iss, expectedIssuer)
	case !claims.audienceContains(clientID):
		return brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "audience does not contain client id")
	case time.Unix(claims.Exp, 0).Before(now):
		return brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "token expired")
	case time.Unix(claims.Iat, 0).After(now.Add(allowedClockSkew)):
		return brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "issued-at is too far in the future")
	case claims.Nonce != expectedNonce:
		return brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "nonce does not match")
	case claims.Email == "" || !strings.EqualFold(claims.Email, expectedEmail):
		return brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "email does not match")
	case !claims.EmailVerified:
		return brokererrors.Wrapf(brokererrors.ErrInvalidIDToken, "email_verified is not true")
	}

	return nil
}

package oidcclient_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	brokererrors "github.com/idbroker/broker/internal/errors"
	"github.com/idbroker/broker/oidcclient"
	"github.com/idbroker/broker/token/keys"
)

const (
	verifyIssuer   = "https://idp.example"
	verifyClientID = "broker-client"
	verifyEmail    = "user@example.com"
)

type upstreamIDP struct {
	srv        *httptest.Server
	privateKey *rsa.PrivateKey
}

func newUpstreamIDP(t *testing.T) *upstreamIDP {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	u := &upstreamIDP{privateKey: privateKey}
	mux := http.NewServeMux()
	u.srv = httptest.NewServer(mux)

	mux.HandleFunc("/jwks.json", func(w http.ResponseWriter, r *http.Request) {
		kp := &keys.KeyPair{KeyID: "upstream", PrivateKey: privateKey, PublicKey: &privateKey.PublicKey, Algorithm: keys.RS256}
		jwk, err := kp.ToJWK()
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keys.JWKS{Keys: []keys.JWK{*jwk}})
	})

	return u
}

func (u *upstreamIDP) discovery() *oidcclient.Discovery {
	return &oidcclient.Discovery{
		Issuer:  verifyIssuer,
		JWKSURI: u.srv.URL + "/jwks.json",
	}
}

func (u *upstreamIDP) issueIDToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	token.Header["kid"] = "upstream"
	signed, err := token.SignedString(u.privateKey)
	require.NoError(t, err)
	return signed
}

func baseClaims(nonce string) jwtlib.MapClaims {
	now := time.Now()
	return jwtlib.MapClaims{
		"iss":            verifyIssuer,
		"aud":            verifyClientID,
		"email":          verifyEmail,
		"email_verified": true,
		"nonce":          nonce,
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func TestVerifyIDToken_success(t *testing.T) {
	idp := newUpstreamIDP(t)
	defer idp.srv.Close()

	rawIDToken := idp.issueIDToken(t, baseClaims("session-1"))

	client := oidcclient.New()
	err := client.VerifyIDToken(t.Context(), idp.discovery(), verifyClientID, verifyIssuer, rawIDToken, verifyEmail, "session-1")
	require.NoError(t, err)
}

func TestVerifyIDToken_nonceMismatch(t *testing.T) {
	idp := newUpstreamIDP(t)
	defer idp.srv.Close()

	rawIDToken := idp.issueIDToken(t, baseClaims("wrong-nonce"))

	client := oidcclient.New()
	err := client.VerifyIDToken(t.Context(), idp.discovery(), verifyClientID, verifyIssuer, rawIDToken, verifyEmail, "session-1")
	require.ErrorIs(t, err, brokererrors.ErrInvalidIDToken)
}

func TestVerifyIDToken_emailMismatch(t *testing.T) {
	idp := newUpstreamIDP(t)
	defer idp.srv.Close()

	claims := baseClaims("session-1")
	claims["email"] = "someone-else@example.com"
	rawIDToken := idp.issueIDToken(t, claims)

	client := oidcclient.New()
	err := client.VerifyIDToken(t.Context(), idp.discovery(), verifyClientID, verifyIssuer, rawIDToken, verifyEmail, "session-1")
	require.ErrorIs(t, err, brokererrors.ErrInvalidIDToken)
}

func TestVerifyIDToken_emailNotVerified(t *testing.T) {
	idp := newUpstreamIDP(t)
	defer idp.srv.Close()

	claims := baseClaims("session-1")
	claims["email_verified"] = false
	rawIDToken := idp.issueIDToken(t, claims)

	client := oidcclient.New()
	err := client.VerifyIDToken(t.Context(), idp.discovery(), verifyClientID, verifyIssuer, rawIDToken, verifyEmail, "session-1")
	require.ErrorIs(t, err, brokererrors.ErrInvalidIDToken)
}

func TestVerifyIDToken_expired(t *testing.T) {
	idp := newUpstreamIDP(t)
	defer idp.srv.Close()

	claims := baseClaims("session-1")
	claims["exp"] = time.Now().Add(-time.Hour).Unix()
	rawIDToken := idp.issueIDToken(t, claims)

	client := oidcclient.New()
	err := client.VerifyIDToken(t.Context(), idp.discovery(), verifyClientID, verifyIssuer, rawIDToken, verifyEmail, "session-1")
	require.ErrorIs(t, err, brokererrors.ErrInvalidIDToken)
}

func TestVerifyIDToken_rejectsNonRS256Alg(t *testing.T) {
	idp := newUpstreamIDP(t)
	defer idp.srv.Close()

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodES256, baseClaims("session-1"))
	token.Header["kid"] = "upstream"
	rawIDToken, err := token.SignedString(ecKey)
	require.NoError(t, err)

	client := oidcclient.New()
	err = client.VerifyIDToken(t.Context(), idp.discovery(), verifyClientID, verifyIssuer, rawIDToken, verifyEmail, "session-1")
	require.ErrorIs(t, err, brokererrors.ErrInvalidIDToken)
}

func TestVerifyIDToken_issuerMismatch(t *testing.T) {
	idp := newUpstreamIDP(t)
	defer idp.srv.Close()

	claims := baseClaims("session-1")
	claims["iss"] = "https://someone-else.example"
	rawIDToken := idp.issueIDToken(t, claims)

	client := oidcclient.New()
	err := client.VerifyIDToken(t.Context(), idp.discovery(), verifyClientID, verifyIssuer, rawIDToken, verifyEmail, "session-1")
	require.ErrorIs(t, err, brokererrors.ErrInvalidIDToken)
}

package oidcclient

import "golang.org/x/oauth2"

// oauthConfig builds the oauth2.Config for one provider/discovery pair.
// AuthStyleInHeader is set explicitly: the spec requires the token
// exchange to use HTTP Basic auth, not client_secret posted in the body.
func oauthConfig(disc *Discovery, clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   disc.AuthorizationEndpoint,
			TokenURL:  disc.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
		RedirectURL: redirectURL,
		Scopes:      []string{"openid", "email"},
	}
}

// AuthCodeURL builds the upstream authorization URL. sessionID doubles as
// both the OAuth2 state and the broker's own OIDC nonce, binding the
// upstream ID token to this session; it is distinct from any nonce the RP
// supplied, which is carried separately in the session record and
// re-surfaced only in the broker's own outgoing JWT.
func AuthCodeURL(disc *Discovery, clientID, clientSecret, brokerBaseURL, sessionID, email string) string {
	cfg := oauthConfig(disc, clientID, clientSecret, brokerBaseURL+"/callback")
	return cfg.AuthCodeURL(sessionID,
		oauth2.SetAuthURLParam("login_hint", email),
		oauth2.SetAuthURLParam("nonce", sessionID),
	)
}

// Package config loads the broker's JSON configuration file.
//
// Unlike the env-var-driven config this package started from, the broker
// is configured from a single file whose shape is fixed and whose keys are
// closed: any key not listed below is a startup error, not a silently
// ignored typo.
package config

import (
	"encoding/json"
	"os"
	"time"

	brokererrors "github.com/idbroker/broker/internal/errors"
)

// Sender is the From address used for outgoing confirmation email.
type Sender struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// SMTP is the outgoing mail transport the email loop sends through.
// spec.md §6 names `sender` (the From header) but is silent on the SMTP
// server itself; this mirrors the teacher's SMTP_HOST/SMTP_PORT/
// SMTP_ACCOUNT/SMTP_PASSWORD env vars (internal/config/env_vars.go) as a
// config-file section instead, since email delivery cannot work without
// somewhere to point the transport.
type SMTP struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Provider is one entry of the providers map: the OIDC relying-party
// configuration the broker uses when the user's email domain matches.
type Provider struct {
	Discovery string `json:"discovery"`
	ClientID  string `json:"client_id"`
	Secret    string `json:"secret"`
	Issuer    string `json:"issuer"`
}

// Config is the fully parsed broker configuration. ListenAddr has no
// counterpart in spec.md §6's key list, which is silent on where the
// process binds; a daemon needs a listen address to exist at all, so
// this mirrors the teacher's PORT env var (internal/config/env_vars.go)
// as a config-file field instead.
type Config struct {
	BaseURL        string              `json:"base_url"`
	ListenAddr     string              `json:"listen_addr"`
	PrivateKeyFile string              `json:"private_key_file"`
	RedisURL       string              `json:"redis_url"`
	Sender         Sender              `json:"sender"`
	SMTP           SMTP                `json:"smtp"`
	ExpireKeys     int                 `json:"expire_keys"`
	TokenValidity  int                 `json:"token_validity"`
	Providers      map[string]Provider `json:"providers"`
}

// GetSessionTTL returns ExpireKeys as a time.Duration.
func (c Config) GetSessionTTL() time.Duration {
	return time.Duration(c.ExpireKeys) * time.Second
}

// GetTokenValidity returns TokenValidity as a time.Duration.
func (c Config) GetTokenValidity() time.Duration {
	return time.Duration(c.TokenValidity) * time.Second
}

// ProviderFor looks up the provider configuration for an email address's
// domain. ok is false if no provider is configured for that domain.
func (c Config) ProviderFor(domain string) (Provider, bool) {
	p, ok := c.Providers[domain]
	return p, ok
}

// Load reads and validates the JSON config file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, brokererrors.Wrapf(err, "%w: open %s", brokererrors.ErrConfigInvalid, path)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, brokererrors.Wrapf(err, "%w: decode %s", brokererrors.ErrConfigInvalid, path)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.BaseURL == "":
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "base_url is required")
	case c.ListenAddr == "":
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "listen_addr is required")
	case c.PrivateKeyFile == "":
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "private_key_file is required")
	case c.RedisURL == "":
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "redis_url is required")
	case c.Sender.Address == "":
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "sender.address is required")
	case c.SMTP.Host == "":
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "smtp.host is required")
	case c.ExpireKeys <= 0:
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "expire_keys must be positive")
	case c.TokenValidity <= 0:
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "token_validity must be positive")
	case len(c.Providers) == 0:
		return brokererrors.Wrapf(brokererrors.ErrConfigInvalid, "providers must not be empty")
	}
	return nil
}

package broker

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	brokererrors "github.com/idbroker/broker/internal/errors"
	"github.com/idbroker/broker/oidcclient"
	"github.com/idbroker/broker/session"
)

func domainOf(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(email[i+1:])
}

// authHandler implements POST /auth: it routes by the login_hint's email
// domain to either the OIDC client or the email loop.
func (s *Server) authHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
			return
		}

		email := r.Form.Get("login_hint")
		clientID := r.Form.Get("client_id")
		redirectURI := r.Form.Get("redirect_uri")
		nonce := r.Form.Get("nonce")

		if email == "" || clientID == "" || redirectURI == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "login_hint, client_id, and redirect_uri are required"})
			return
		}

		domain := domainOf(email)
		if domain == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "login_hint must be an email address"})
			return
		}

		if _, ok := s.cfg.ProviderFor(domain); !ok {
			if err := s.emailLoop.Request(r.Context(), email, clientID, redirectURI, nonce); err != nil {
				log.Error().Err(err).Str("email_domain", domain).Msg("email loop request failed")
				writeJSON(w, http.StatusOK, map[string]string{"error": "could not send confirmation email"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{})
			return
		}

		s.startOIDCFlow(w, r, domain, email, clientID, redirectURI, nonce)
	}
}

func (s *Server) startOIDCFlow(w http.ResponseWriter, r *http.Request, domain, email, clientID, redirectURI, nonce string) {
	provider, ok := s.cfg.ProviderFor(domain)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown provider domain"})
		return
	}

	disc, err := s.oidc.Discover(r.Context(), provider.Discovery, provider.Issuer)
	if err != nil {
		log.Error().Err(err).Str("email_domain", domain).Msg("discovery failed")
		status := http.StatusBadGateway
		if brokererrors.Is(err, brokererrors.ErrProviderMismatch) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, map[string]string{"error": "could not reach upstream provider"})
		return
	}

	id, err := session.NewID()
	if err != nil {
		log.Error().Err(err).Msg("session id generation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	record := session.Record{
		Kind:           session.KindOIDC,
		Email:          email,
		ClientID:       clientID,
		Nonce:          nonce,
		RedirectURI:    redirectURI,
		ProviderDomain: domain,
	}
	if err := s.store.Put(r.Context(), id, record, s.cfg.GetSessionTTL()); err != nil {
		log.Error().Err(err).Msg("session persist failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	authURL := oidcclient.AuthCodeURL(disc, provider.ClientID, provider.Secret, s.cfg.BaseURL, id, email)
	http.Redirect(w, r, authURL, http.StatusFound)
}

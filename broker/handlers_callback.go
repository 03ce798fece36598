package broker

import (
	"net/http"

	"github.com/rs/zerolog/log"

	brokererrors "github.com/idbroker/broker/internal/errors"
	"github.com/idbroker/broker/session"
)

// callbackHandler implements GET /callback: the upstream provider's
// redirect back after the user authenticates. state carries the
// session-id, code the authorization code to exchange.
func (s *Server) callbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		if sessionID == "" || code == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "state and code are required"})
			return
		}

		rec, err := s.store.Get(r.Context(), sessionID)
		if err != nil {
			status := http.StatusInternalServerError
			if brokererrors.Is(err, brokererrors.ErrNotFound) {
				status = http.StatusBadRequest
			}
			writeJSON(w, status, map[string]string{"error": "session not found"})
			return
		}
		if rec.Kind != session.KindOIDC {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session not found"})
			return
		}

		provider, ok := s.cfg.ProviderFor(rec.ProviderDomain)
		if !ok {
			log.Error().Str("provider_domain", rec.ProviderDomain).Msg("session references unknown provider")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		disc, err := s.oidc.Discover(r.Context(), provider.Discovery, provider.Issuer)
		if err != nil {
			log.Error().Err(err).Msg("discovery failed during callback")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "could not reach upstream provider"})
			return
		}

		rawIDToken, err := s.oidc.Exchange(r.Context(), disc, provider.ClientID, provider.Secret, s.cfg.BaseURL, code)
		if err != nil {
			log.Error().Err(err).Msg("token exchange failed")
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "token exchange failed"})
			return
		}

		if err := s.oidc.VerifyIDToken(r.Context(), disc, provider.ClientID, provider.Issuer, rawIDToken, rec.Email, sessionID); err != nil {
			log.Error().Err(err).Msg("id token verification failed")
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id token"})
			return
		}

		if err := s.store.Delete(r.Context(), sessionID); err != nil {
			log.Error().Err(err).Msg("session delete failed")
		}

		jwt, err := s.issuer.CreateIDToken(rec.Email, rec.ClientID, rec.Nonce)
		if err != nil {
			log.Error().Err(err).Msg("jwt issuance failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}

		if err := s.form.render(w, rec.RedirectURI, jwt); err != nil {
			log.Error().Err(err).Msg("rp form render failed")
		}
	}
}

package broker

import (
	"net/http"

	"github.com/rs/zerolog/log"

	brokererrors "github.com/idbroker/broker/internal/errors"
)

// confirmHandler implements GET /confirm: the link emailed by the
// email-loop's Request step. On success it renders the RP form; on
// mismatch or expiry it returns a JSON error directly to the browser
// rather than posting an error back to the RP.
func (s *Server) confirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.URL.Query().Get("session")
		code := r.URL.Query().Get("code")
		if sessionID == "" || code == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session and code are required"})
			return
		}

		rec, err := s.emailLoop.Verify(r.Context(), sessionID, code)
		if err != nil {
			switch {
			case brokererrors.Is(err, brokererrors.ErrMismatch):
				writeJSON(w, http.StatusOK, map[string]string{"error": "code does not match"})
			case brokererrors.Is(err, brokererrors.ErrNotFound):
				writeJSON(w, http.StatusOK, map[string]string{"error": "session expired or not found"})
			default:
				log.Error().Err(err).Msg("email loop verify failed")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			}
			return
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

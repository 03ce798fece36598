package broker

import (
	"encoding/json"
	"net/http"

	"github.com/idbroker/broker/session"
)

const contentTypeJSON = "application/json; charset=utf-8"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// indexHandler serves the broker's welcome document.
func (s *Server) indexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"service": "broker",
			"version": "1",
		})
	}
}

// wellKnownHandler serves the OIDC discovery document per spec.md §4.6.
func (s *Server) wellKnownHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		base := s.cfg.BaseURL
		writeJSON(w, http.StatusOK, map[string]any{
			"issuer":                                base,
			"authorization_endpoint":                 base + "/auth",
			"jwks_uri":                                base + "/keys.json",
			"scopes_supported":                        []string{"openid", "email"},
			"claims_supported":                        []string{"aud", "email", "email_verified", "exp", "iat", "iss", "sub"},
			"response_types_supported":                []string{"id_token"},
			"response_modes_supported":                []string{"form_post"},
			"grant_types_supported":                    []string{"implicit"},
			"subject_types_supported":                  []string{"public"},
			"id_token_signing_alg_values_supported":     []string{"RS256"},
		})
	}
}

// keysHandler serves the broker's JWK Set.
func (s *Server) keysHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(s.jwkSet)
	}
}

// healthzHandler reports SessionStore reachability so an operator can
// distinguish "broker up" from "broker up, store down" — not named in
// spec.md, added per SPEC_FULL.md's ambient-stack supplement.
func (s *Server) healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pinger, ok := s.store.(session.Pinger); ok {
			if err := pinger.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "store unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

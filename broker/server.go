// Package broker implements the identity broker's HTTP surface: OIDC
// discovery and JWKS publication, the domain-routed /auth entrypoint,
// the OIDC callback and email-loop confirm endpoints, and the RP
// callback form.
package broker

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/idbroker/broker/emailloop"
	"github.com/idbroker/broker/internal/config"
	"github.com/idbroker/broker/oidcclient"
	"github.com/idbroker/broker/session"
	"github.com/idbroker/broker/token/jwt"
)

// Server is the broker's HTTP handler: it dispatches between the OIDC
// client and the email loop and owns every other externally-visible
// endpoint.
type Server struct {
	mux    *http.ServeMux
	routes []string

	cfg       config.Config
	store     session.Store
	issuer    *jwt.Issuer
	oidc      *oidcclient.Client
	emailLoop *emailloop.Loop
	form      *rpForm
	jwkSet    []byte
}

// New wires a Server from its already-constructed collaborators. Config,
// the signing key, and the SessionStore handle are shared read-only (or
// internally synchronized) across every request handler.
func New(cfg config.Config, store session.Store, issuer *jwt.Issuer, oidcClient *oidcclient.Client, emailLoop *emailloop.Loop, jwkSet []byte) (*Server, error) {
	form, err := newRPForm()
	if err != nil {
		return nil, fmt.Errorf("load rp callback form template: %w", err)
	}

	s := &Server{
		mux:       http.NewServeMux(),
		cfg:       cfg,
		store:     store,
		issuer:    issuer,
		oidc:      oidcClient,
		emailLoop: emailLoop,
		form:      form,
		jwkSet:    jwkSet,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoute(pattern string, handler http.HandlerFunc, mw ...Middleware) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, ChainMiddleware(handler, mw...))
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			log.Info().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			log.Info().Str("path", parts[0]).Msg("route registered")
		}
	}
}

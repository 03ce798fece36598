package broker

import "github.com/idbroker/broker/internal/config"

func (s *Server) initRoutes() {
	common := []Middleware{RequestIDMiddleware, LoggingMiddleware, RecoverMiddleware}
	authMW := append(append([]Middleware{}, common...), CorsMiddleware(config.AnyOrigin{}))

	s.registerRoute("GET /", s.indexHandler(), common...)
	s.registerRoute("GET /.well-known/openid-configuration", s.wellKnownHandler(), common...)
	s.registerRoute("GET /keys.json", s.keysHandler(), common...)
	s.registerRoute("GET /healthz", s.healthzHandler(), common...)

	s.registerRoute("POST /auth", s.authHandler(), authMW...)
	s.registerRoute("GET /callback", s.callbackHandler(), common...)
	s.registerRoute("GET /confirm", s.confirmHandler(), common...)
}

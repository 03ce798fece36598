package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/idbroker/broker/broker"
	"github.com/idbroker/broker/emailloop"
	"github.com/idbroker/broker/internal/config"
	brokererrors "github.com/idbroker/broker/internal/errors"
	"github.com/idbroker/broker/oidcclient"
	"github.com/idbroker/broker/session"
	"github.com/idbroker/broker/token/jwt"
	"github.com/idbroker/broker/token/keys"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the broker's JSON configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("broker exited")
	}
}

func run(configPath string) (returnErr error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("recovered from panic")
			returnErr = errors.New("panic recovered")
		}
	}()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	displayBanner("identity broker")
	for domain, p := range cfg.Providers {
		log.Info().Str("email_domain", domain).Str("discovery", p.Discovery).Msg("provider configured")
	}

	signer, err := keys.NewSignerFromFile(cfg.PrivateKeyFile)
	if err != nil {
		return brokererrors.Wrapf(err, "%w", brokererrors.ErrKeyLoadFailed)
	}

	jwkSet, err := signer.GetJWKS()
	if err != nil {
		return brokererrors.Wrapf(err, "%w: build jwk set", brokererrors.ErrKeyLoadFailed)
	}
	jwkSetJSON, err := json.Marshal(jwkSet)
	if err != nil {
		return brokererrors.Wrapf(err, "%w: marshal jwk set", brokererrors.ErrKeyLoadFailed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := session.NewRedisStore(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		return brokererrors.Wrapf(err, "%w", brokererrors.ErrStoreUnavailable)
	}
	defer store.Close()

	issuer := jwt.NewIssuer(cfg.BaseURL, cfg.GetTokenValidity(), signer)
	oidcClient := oidcclient.New()
	mailer := emailloop.NewMailer(cfg.Sender, cfg.SMTP)
	emailLoop := emailloop.New(store, mailer, cfg.BaseURL, cfg.GetSessionTTL())

	srv, err := broker.New(cfg, store, issuer, oidcClient, emailLoop, jwkSetJSON)
	if err != nil {
		return fmt.Errorf("build broker server: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("broker listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("listen and serve failed")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func displayBanner(name string) {
	myFigure := figure.NewFigure(name, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

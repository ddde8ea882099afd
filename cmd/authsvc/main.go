// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"crypto/rsa"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ordermesh/ordermesh/internal/authsvc"
	"github.com/ordermesh/ordermesh/internal/config"
	"github.com/ordermesh/ordermesh/internal/health"
	omlog "github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/registry"
	"github.com/ordermesh/ordermesh/internal/server"
	"github.com/ordermesh/ordermesh/internal/store"
	"github.com/ordermesh/ordermesh/internal/token"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// loadSigningKeys loads the configured RSA key pair, or generates an
// ephemeral one so the service can run standalone. Ephemeral tokens are
// unverifiable by the other services.
func loadSigningKeys(cfg config.Keys, logger zerolog.Logger) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	if cfg.PrivateKeyPath == "" {
		logger.Warn().Msg("JWT_PRIVATE_KEY not set, generating ephemeral signing keys")
		return token.GenerateEphemeralKeys()
	}
	priv, err := token.LoadPrivateKeyPEM(cfg.PrivateKeyPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.PublicKeyPath != "" {
		pub, err := token.LoadPublicKeyPEM(cfg.PublicKeyPath)
		if err != nil {
			return nil, nil, err
		}
		return priv, pub, nil
	}
	return priv, &priv.PublicKey, nil
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	omlog.Configure(omlog.Config{Service: "auth-service"})
	logger := omlog.WithComponent("authsvc")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadAuth()

	privateKey, publicKey, err := loadSigningKeys(cfg.Keys, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load signing keys")
	}
	tokens := token.New(privateKey, publicKey, token.WithTTL(cfg.Keys.TokenTTL))

	reg := registry.NewHTTP(cfg.RegistryAddr)
	instance := registry.Instance{
		Service:  "auth-service",
		Addr:     cfg.AdvertiseAddr,
		Metadata: map[string]string{registry.MetadataProfile: cfg.Profile},
	}
	if err := reg.Register(ctx, instance); err != nil {
		logger.Warn().Err(err).Str("registry", cfg.RegistryAddr).Msg("registry registration failed")
	}
	defer func() {
		deregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reg.Deregister(deregCtx, instance); err != nil {
			logger.Warn().Err(err).Msg("registry deregistration failed")
		}
	}()

	handler := authsvc.New(authsvc.Config{
		Credentials: store.NewCredentials(store.BcryptEncoder{}),
		Users:       store.NewUsers(),
		Tokens:      tokens,
		Health:      health.NewManager("auth-service"),
		Logger:      logger,
	})

	logger.Info().
		Str("version", version).
		Str("addr", cfg.HTTPAddr).
		Str(omlog.FieldProfile, cfg.Profile).
		Dur("token_ttl", cfg.Keys.TokenTTL).
		Msg("starting auth service")

	if err := server.Run(ctx, cfg.HTTPAddr, handler, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal().Err(err).Msg("auth service exited with error")
	}
	logger.Info().Msg("auth service exiting")
}

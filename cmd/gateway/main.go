// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ordermesh/ordermesh/internal/config"
	"github.com/ordermesh/ordermesh/internal/gateway"
	"github.com/ordermesh/ordermesh/internal/health"
	omlog "github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/registry"
	"github.com/ordermesh/ordermesh/internal/server"
	"github.com/ordermesh/ordermesh/internal/token"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	omlog.Configure(omlog.Config{Service: "gateway"})
	logger := omlog.WithComponent("gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadGateway()

	if cfg.Keys.PublicKeyPath == "" {
		logger.Fatal().Msg("JWT_PUBLIC_KEY is required: the gateway cannot verify tokens without it")
	}
	publicKey, err := token.LoadPublicKeyPEM(cfg.Keys.PublicKeyPath)
	if err != nil {
		logger.Fatal().Err(err).Str(omlog.FieldPath, cfg.Keys.PublicKeyPath).Msg("failed to load public key")
	}
	verifier := token.NewVerifier(publicKey)

	reg := registry.NewHTTP(cfg.RegistryAddr)

	hm := health.NewManager("gateway")
	hm.Register(health.CheckerFunc{
		CheckName: "registry",
		Fn: func(ctx context.Context) error {
			_, err := reg.Instances(ctx, "user-service")
			return err
		},
	})

	handler := gateway.New(gateway.Config{
		Registry:       reg,
		Verifier:       verifier,
		DefaultProfile: cfg.DefaultProfile,
		RequestsPerMin: cfg.RequestsPerMin,
		Health:         hm,
		Logger:         logger,
	})

	logger.Info().
		Str("version", version).
		Str("addr", cfg.HTTPAddr).
		Str("registry", cfg.RegistryAddr).
		Str("default_profile", cfg.DefaultProfile).
		Msg("starting gateway")

	if err := server.Run(ctx, cfg.HTTPAddr, handler, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal().Err(err).Msg("gateway exited with error")
	}
	logger.Info().Msg("gateway exiting")
}

// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ordermesh/ordermesh/internal/cache"
	"github.com/ordermesh/ordermesh/internal/config"
	"github.com/ordermesh/ordermesh/internal/events"
	"github.com/ordermesh/ordermesh/internal/health"
	omlog "github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/registry"
	"github.com/ordermesh/ordermesh/internal/server"
	"github.com/ordermesh/ordermesh/internal/store"
	"github.com/ordermesh/ordermesh/internal/token"
	"github.com/ordermesh/ordermesh/internal/usersvc"
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

	omlog.Configure(omlog.Config{Service: "user-service"})
	logger := omlog.WithComponent("usersvc")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadUser()

	if cfg.Keys.PublicKeyPath == "" {
		logger.Fatal().Msg("JWT_PUBLIC_KEY is required: the user service cannot verify tokens without it")
	}
	publicKey, err := token.LoadPublicKeyPEM(cfg.Keys.PublicKeyPath)
	if err != nil {
		logger.Fatal().Err(err).Str(omlog.FieldPath, cfg.Keys.PublicKeyPath).Msg("failed to load public key")
	}
	verifier := token.NewVerifier(publicKey)

	hm := health.NewManager("user-service")

	var userCache cache.Cache
	redisCache, err := cache.NewRedis(cfg.RedisAddr, logger)
	if err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, using in-process cache")
		mem := cache.NewMemory(time.Minute)
		defer mem.Close()
		userCache = mem
	} else {
		defer func() { _ = redisCache.Close() }()
		hm.Register(health.CheckerFunc{CheckName: "redis", Fn: redisCache.HealthCheck})
		userCache = redisCache
	}

	reg := registry.NewHTTP(cfg.RegistryAddr)
	instance := registry.Instance{
		Service:  "user-service",
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

	handler := usersvc.New(usersvc.Config{
		Users:    store.NewUsers(),
		Cache:    userCache,
		CacheTTL: cfg.CacheTTL,
		Verifier: verifier,
		Health:   hm,
		Logger:   logger,
	})

	policy := events.NoFailure
	if cfg.FailureInjection {
		logger.Warn().Msg("failure injection enabled: even order ids will be rejected")
		policy = events.EvenOrderIDFailure
	}

	source := events.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, cfg.Kafka.Group)
	defer func() { _ = source.Close() }()
	deadLetter := events.NewKafkaDeadLetter(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic)
	defer func() { _ = deadLetter.Close() }()

	consumer := events.NewConsumer(events.ConsumerConfig{
		Source:     source,
		DeadLetter: deadLetter,
		Verifier:   verifier,
		Policy:     policy,
		MaxRetries: cfg.Kafka.MaxRetries,
		Topic:      cfg.Kafka.OrdersTopic,
		Logger:     omlog.WithComponent("consumer"),
	})

	dltSource := events.NewKafkaSource(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic+events.DLTSuffix, cfg.Kafka.DLTGroup)
	defer func() { _ = dltSource.Close() }()
	dlt := events.NewDLTListener(dltSource, omlog.WithComponent("dlt"), nil)

	logger.Info().
		Str("version", version).
		Str("addr", cfg.HTTPAddr).
		Str(omlog.FieldProfile, cfg.Profile).
		Str(omlog.FieldTopic, cfg.Kafka.OrdersTopic).
		Str(omlog.FieldGroup, cfg.Kafka.Group).
		Msg("starting user service")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.HTTPAddr, handler, cfg.ShutdownTimeout, logger)
	})
	g.Go(func() error {
		return consumer.Run(gctx)
	})
	g.Go(func() error {
		return dlt.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("user service exited with error")
	}
	logger.Info().Msg("user service exiting")
}

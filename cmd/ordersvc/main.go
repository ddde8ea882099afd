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

	"github.com/redis/go-redis/v9"

	"github.com/ordermesh/ordermesh/internal/config"
	"github.com/ordermesh/ordermesh/internal/events"
	"github.com/ordermesh/ordermesh/internal/health"
	"github.com/ordermesh/ordermesh/internal/lock"
	omlog "github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/ordersvc"
	"github.com/ordermesh/ordermesh/internal/registry"
	"github.com/ordermesh/ordermesh/internal/resilience"
	"github.com/ordermesh/ordermesh/internal/server"
	"github.com/ordermesh/ordermesh/internal/store"
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

	omlog.Configure(omlog.Config{Service: "order-service"})
	logger := omlog.WithComponent("ordersvc")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadOrder()

	if cfg.Keys.PublicKeyPath == "" {
		logger.Fatal().Msg("JWT_PUBLIC_KEY is required: the order service cannot verify tokens without it")
	}
	publicKey, err := token.LoadPublicKeyPEM(cfg.Keys.PublicKeyPath)
	if err != nil {
		logger.Fatal().Err(err).Str(omlog.FieldPath, cfg.Keys.PublicKeyPath).Msg("failed to load public key")
	}
	verifier := token.NewVerifier(publicKey)

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	defer func() { _ = redisClient.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("lock store unreachable")
	}
	cancel()

	hm := health.NewManager("order-service")
	hm.Register(health.CheckerFunc{
		CheckName: "redis",
		Fn: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	reg := registry.NewHTTP(cfg.RegistryAddr)
	instance := registry.Instance{
		Service:  "order-service",
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

	breaker := resilience.NewCircuitBreaker(cfg.UserService, 5, 30*time.Second)
	userClient := ordersvc.NewUserClient(reg, cfg.UserService, omlog.WithComponent("userclient"))
	fetchUsers := ordersvc.NewResilientUserFetch(userClient, reg, breaker, logger)

	producer := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic, omlog.WithComponent("producer"))
	defer func() { _ = producer.Close() }()

	handler := ordersvc.New(ordersvc.Config{
		Orders:     store.NewOrders(),
		Locks:      lock.New(redisClient, omlog.WithComponent("lock")),
		LockTTL:    cfg.LockTTL,
		FetchUsers: fetchUsers,
		Producer:   producer,
		Verifier:   verifier,
		Health:     hm,
		Logger:     logger,
	})

	logger.Info().
		Str("version", version).
		Str("addr", cfg.HTTPAddr).
		Str(omlog.FieldProfile, cfg.Profile).
		Str(omlog.FieldTopic, cfg.Kafka.OrdersTopic).
		Dur("lock_ttl", cfg.LockTTL).
		Msg("starting order service")

	if err := server.Run(ctx, cfg.HTTPAddr, handler, cfg.ShutdownTimeout, logger); err != nil {
		logger.Fatal().Err(err).Msg("order service exited with error")
	}
	logger.Info().Msg("order service exiting")
}

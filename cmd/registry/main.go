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

	"github.com/ordermesh/ordermesh/internal/config"
	omlog "github.com/ordermesh/ordermesh/internal/log"
	"github.com/ordermesh/ordermesh/internal/registry"
	"github.com/ordermesh/ordermesh/internal/server"
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

	omlog.Configure(omlog.Config{Service: "registry"})
	logger := omlog.WithComponent("registry")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadRegistry()
	srv := registry.NewServer(registry.NewStatic(), logger)

	logger.Info().
		Str("version", version).
		Str("addr", cfg.HTTPAddr).
		Msg("starting registry")

	if err := server.Run(ctx, cfg.HTTPAddr, srv.Handler(), 10*time.Second, logger); err != nil {
		logger.Fatal().Err(err).Msg("registry exited with error")
	}
	logger.Info().Msg("registry exiting")
}

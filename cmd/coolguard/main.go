package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coolguard/internal/config"
	"coolguard/internal/logger"
	"coolguard/internal/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.FromEnv()
	logger.Init(cfg.LogLevel)

	log := logger.WithComponent("main")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	srv := server.New(cfg)

	// run server in background
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	// wait for termination signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		log.Info().Msg("shutting down")
		cancel()
		// give graceful shutdown some time
		select {
		case err := <-done:
			if err != nil {
				log.Error().Err(err).Msg("server exited with error")
			}
		case <-time.After(60 * time.Second):
			log.Warn().Msg("shutdown timeout, exiting")
		}
	case err := <-done:
		if err != nil {
			log.Fatal().Err(err).Msg("server exited")
		}
	}

	log.Info().Msg("exited")
}

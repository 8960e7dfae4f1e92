package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/certify-api/internal/app"
	"github.com/jwalitptl/certify-api/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := app.NewLogger(cfg.Log).With("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "failed to initialize worker")
	}
	defer a.Close()

	// Health and metrics endpoint
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.WorkerPort),
		Handler:           a.StatusEngine(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "health server failed")
		}
	}()

	logger.Info("delivery worker started", "topic", cfg.Delivery.Topic)
	if err := a.Worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, "delivery worker stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "health server forced to shutdown")
	}
	logger.Info("worker exited")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abearman/mindful-sub000/api"
	"github.com/abearman/mindful-sub000/bootstrap"
	"github.com/abearman/mindful-sub000/config"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	opts, err := bootstrap.Options(shutdownCtx, cfg, logger, true)
	if err != nil {
		logger.Fatal("Failed to build dependencies", zap.Error(err))
	}

	mindfulAPI, err := api.NewMindfulAPI(opts, shutdownCtx)
	if err != nil {
		logger.Fatal("Failed to create mindful api", zap.Error(err))
	}

	server := &http.Server{
		Addr:              ":" + cfg.HostPort,
		Handler:           mindfulAPI.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("host_port", cfg.HostPort), zap.String("stage", cfg.Stage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-shutdownCtx.Done()
	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}

// Package main provides the entry point for the LumeIQ impact scoring
// server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// newLogger creates a zap.Logger depending on the environment.
func newLogger(env string) *zap.Logger {
	if env == "production" {
		logger, _ := zap.NewProduction()
		return logger
	}
	logger, _ := zap.NewDevelopment()
	return logger
}

// Run is the testable entrypoint for the application.
func Run(ctx context.Context) error {
	cfg := LoadConfig()
	log := newLogger(cfg.Env)
	log.Info("Starting LumeIQ server", zap.String("addr", cfg.Addr))

	app, err := NewApp(cfg, log)
	if err != nil {
		log.Error("failed to build application", zap.Error(err))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("failed to close store", zap.Error(err))
		}
	}()

	h := NewHandler(app, log)
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      h.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down server")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctxShutdown)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := Run(ctx); err != nil {
		os.Exit(1)
	}
}

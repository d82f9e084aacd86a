package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"mountpass/internal/platform/config"
	"mountpass/internal/platform/httpserver"
	"mountpass/internal/platform/logger"
	"mountpass/internal/platform/otel"
)

// main loads configuration and runs the HTTP server and the outbox relay
// until SIGINT or SIGTERM. Business logic lives in internal packages.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("mountpass stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			log.Warn("flush traces", "error", err)
		}
	}()

	a, err := buildApp(ctx, cfg, log, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := httpserver.New(cfg.Server.Addr, a.router, cfg.Server.RequestTimeout)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting mountpass", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	if a.relay != nil {
		g.Go(func() error {
			return a.relay.Run(gctx)
		})
	}
	return g.Wait()
}

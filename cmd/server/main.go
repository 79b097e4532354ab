package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AngelCh415/quasr/internal/cli"
	"github.com/AngelCh415/quasr/internal/config"
)

func main() {
	cfg := config.FromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, app, err := cli.NewServer(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		logger.Error("startup failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer app.Close()

	if err := cli.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

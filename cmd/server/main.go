package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/castwire/castwire/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := server.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	hub := server.NewHub(cfg, logger)
	go hub.Run()

	mux := server.SetupRoutes(hub)
	httpServer := server.CreateServer(cfg.Port, mux)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.StartServer(httpServer)
	}()
	logger.Info("relay listening", "addr", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Error("server failed", "error", err)
		return 1
	case sig := <-quit:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	// Drain: notify clients and close their connections, then stop the
	// listener. The grace timer runs in parallel and wins if draining
	// stalls, so shutdown latency stays bounded.
	done := make(chan struct{})
	go func() {
		if err := hub.Shutdown(cfg.ShutdownGrace); err != nil {
			logger.Warn("hub drain incomplete", "error", err)
		}
		if err := server.ShutdownServer(httpServer, cfg.ShutdownGrace); err != nil {
			logger.Warn("http server drain incomplete", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return 0
	case <-time.After(cfg.ShutdownGrace):
		logger.Error("shutdown grace period exceeded, terminating")
		return 1
	}
}

func newLogger(level string) *slog.Logger {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	return slog.New(handler)
}

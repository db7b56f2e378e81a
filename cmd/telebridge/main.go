package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/phsym/console-slog"

	"github.com/telebridge/telebridge/pkg/authentik"
	"github.com/telebridge/telebridge/pkg/bridge"
)

func main() {
	godotenv.Load()

	logLevel := slog.LevelInfo
	if os.Getenv("VERBOSE") != "" {
		logLevel = slog.LevelDebug
	}
	if os.Getenv("PRETTY_LOGS") != "false" {
		logger := slog.New(
			console.NewHandler(os.Stderr, &console.HandlerOptions{Level: logLevel}),
		)
		slog.SetDefault(logger)
	} else {
		slog.SetLogLoggerLevel(logLevel)
	}

	if err := run(); err != nil {
		slog.Error("bridge failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := bridge.ConfigFromEnv()
	if err != nil {
		return err
	}

	clients, err := cfg.ClientsRegistry()
	if err != nil {
		return err
	}

	store := bridge.NewMemorySessionStore()

	opts := []bridge.Option{
		bridge.WithBotCredentials(cfg.BotToken, cfg.BotID),
		bridge.WithClientsRegistry(clients),
		bridge.WithSessionStore(store),
	}
	if cfg.AuthentikURL != "" {
		slog.Info("using downstream identity provider", "url", cfg.AuthentikURL)
		opts = append(opts, bridge.WithIdentityProvider(
			authentik.NewClient(cfg.AuthentikURL, cfg.AuthentikAPIToken),
		))
	}

	server, err := bridge.New(opts...)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	server.MountRoutes(e.Group(""))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go bridge.NewSweeper(store, cfg.SessionRetention, cfg.SweepInterval).Run(ctx)

	go func() {
		slog.Info("listening", "addr", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

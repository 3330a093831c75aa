package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	v1 "github.com/epitrello/epitrello/internal/api/v1"
	"github.com/epitrello/epitrello/internal/auth"
	"github.com/epitrello/epitrello/internal/config"
	"github.com/epitrello/epitrello/internal/events"
	"github.com/epitrello/epitrello/internal/history"
	"github.com/epitrello/epitrello/internal/notify"
	"github.com/epitrello/epitrello/internal/server"
	redisstore "github.com/epitrello/epitrello/internal/store/redis"
	"github.com/epitrello/epitrello/web"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("EPITRELLO_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("EPITRELLO_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to Redis, the system of record.
	store, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Board history log and the realtime event bus on top of it.
	histLog := history.NewLog(store.History())
	bus := events.NewBus(ctx, store.PubSub(), histLog)
	defer bus.Close()

	// Auth service and OAuth providers.
	authSvc := auth.NewService(store.Users(), cfg.Session.Secret, cfg.Session.TTL)
	providers := buildOAuthProviders(cfg)

	// Notifications: stored per user, optionally pushed to Slack.
	var pusher notify.Pusher
	if cfg.Slack.Enabled() {
		pusher = notify.NewSlackPusherFromToken(cfg.Slack.BotToken, cfg.Slack.Channel)
		log.Info().Str("channel", cfg.Slack.Channel).Msg("Slack notifications enabled")
	}
	notifier := notify.New(store.Notifications(), pusher)

	// Prepare embedded web client assets (strip "build/" prefix).
	webAssets, err := fs.Sub(web.Assets, "build")
	if err != nil {
		return fmt.Errorf("web assets: %w", err)
	}

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, bus, histLog, authSvc, notifier, providers, webAssets)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

// buildOAuthProviders wires every provider with credentials configured.
func buildOAuthProviders(cfg *config.Config) map[string]v1.OAuthExchanger {
	providers := make(map[string]v1.OAuthExchanger)
	callback := func(name string) string {
		return cfg.Server.PublicURL + "/api/v1/auth/oauth/" + name + "/callback"
	}

	if cfg.OAuth.GitHub.Enabled() {
		providers["github"] = auth.NewGitHubProvider(
			cfg.OAuth.GitHub.ClientID,
			cfg.OAuth.GitHub.ClientSecret,
			callback("github"),
		)
		log.Info().Msg("GitHub OAuth enabled")
	}
	if cfg.OAuth.Microsoft.Enabled() {
		providers["microsoft"] = auth.NewMicrosoftProvider(
			cfg.OAuth.Microsoft.ClientID,
			cfg.OAuth.Microsoft.ClientSecret,
			cfg.OAuth.MicrosoftTenant,
			callback("microsoft"),
		)
		log.Info().Msg("Microsoft OAuth enabled")
	}
	return providers
}

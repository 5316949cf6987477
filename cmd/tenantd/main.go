package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/tenantd/tenantd/internal/certs"
	"github.com/tenantd/tenantd/internal/config"
	"github.com/tenantd/tenantd/internal/notify"
	"github.com/tenantd/tenantd/internal/provision"
	"github.com/tenantd/tenantd/internal/registry"
	"github.com/tenantd/tenantd/internal/server"
	"github.com/tenantd/tenantd/internal/store/postgres"
	redisstore "github.com/tenantd/tenantd/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("TENANTD_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("TENANTD_LOG_FORMAT")
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

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Create the ACME issuer when configured; without an account email the
	// service still runs, but bindings stay pending until one is set.
	var issuer *certs.ACMEIssuer
	if cfg.ACME.Email != "" {
		issuer, err = certs.NewACMEIssuer(certs.ACMEConfig{
			Email:        cfg.ACME.Email,
			CacheDir:     cfg.ACME.CacheDir,
			DirectoryURL: cfg.ACME.DirectoryURL,
		})
		if err != nil {
			return fmt.Errorf("acme issuer: %w", err)
		}
	} else {
		log.Warn().Msg("TENANTD_ACME_EMAIL not set; certificate issuance disabled")
	}

	// Create the Slack notifier when configured.
	var notifier provision.Notifier
	if cfg.Slack.BotToken != "" {
		notifier = notify.NewSlackNotifier(slacklib.New(cfg.Slack.BotToken), cfg.Slack.Channel)
		log.Info().Str("channel", cfg.Slack.Channel).Msg("Slack notifications enabled")
	}

	// Create the claim coordinator.
	reg := registry.New(store.Tenants(), store.Jobs(), pubsub)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the provisioning engine and sweeper when issuance is possible.
	if issuer != nil {
		engine := provision.New(store.Tenants(), store.Jobs(), issuer, pubsub, notifier, provision.Config{
			Workers:      cfg.Provisioner.Workers,
			PollInterval: cfg.Provisioner.PollInterval,
			Lease:        cfg.Provisioner.Lease,
			IssueTimeout: cfg.Provisioner.IssueTimeout,
			MaxAttempts:  cfg.Provisioner.MaxAttempts,
			BackoffBase:  cfg.Provisioner.BackoffBase,
			BackoffCap:   cfg.Provisioner.BackoffCap,
			DrainTimeout: cfg.Provisioner.DrainTimeout,
		})
		if err = engine.Start(ctx); err != nil {
			return err
		}
		defer engine.Stop()

		sweeper := provision.NewSweeper(store.Tenants(), store.Jobs(), pubsub, provision.SweeperConfig{
			Interval:     cfg.Provisioner.SweepInterval,
			RenewBefore:  cfg.Provisioner.RenewBefore,
			RenewEnabled: cfg.Provisioner.RenewEnabled,
		})
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, pubsub, reg, issuer)

	// Start server in background goroutine.
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

// Package main is the entry point for the Steam party bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"steam-party-bot/internal/config"
	"steam-party-bot/internal/discord"
	"steam-party-bot/internal/handler"
	"steam-party-bot/internal/matcher"
	"steam-party-bot/internal/party"
	"steam-party-bot/internal/pkg/db"
	"steam-party-bot/internal/pkg/lock"
	"steam-party-bot/internal/repository"
	"steam-party-bot/internal/server"
	"steam-party-bot/internal/service"
	"steam-party-bot/internal/steam"
	"steam-party-bot/internal/wiki"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories and clients
	identityRepo := repository.NewIdentityRepository(dbPool.Pool)
	discordClient := discord.NewClient(&cfg.Discord)
	steamClient := steam.NewClient(&cfg.Steam)

	wikiClient, err := wiki.NewClient(&cfg.Wiki)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create multiplayer oracle client")
	}

	// Initialize the party manager with per-party locking
	partyLock := lock.NewKeyLock()
	partyManager := party.NewManager(cfg.Party.MaxLobbySize, partyLock)

	// Initialize services
	gameMatcher := matcher.New(wikiClient)
	searchService := service.NewSearchService(identityRepo, steamClient, gameMatcher, cfg.Party.ResolveTimeout)
	linkService := service.NewLinkService(cfg, discordClient, identityRepo)

	// Initialize the interaction dispatcher
	interactionHandler := handler.NewInteractionHandler(
		identityRepo,
		partyManager,
		searchService,
		discordClient,
		linkService.AuthURL(),
	)

	log.Info().
		Int("max_lobby_size", cfg.Party.MaxLobbySize).
		Dur("resolve_timeout", cfg.Party.ResolveTimeout).
		Msg("Party manager initialized")

	// Initialize HTTP server
	srv, err := server.New(cfg, interactionHandler, linkService, dbPool)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	// Periodic cleanup: expired identities and stale parties
	go runSweeper(ctx, cfg, identityRepo, partyManager)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

// runSweeper purges expired identities and reaps stale parties on the
// configured interval. One sweep runs immediately at startup.
func runSweeper(ctx context.Context, cfg *config.Config, identities *repository.IdentityRepository, parties *party.Manager) {
	sweep := func() {
		sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		removed, err := identities.SweepExpired(sweepCtx)
		if err != nil {
			log.Error().Err(err).Msg("Identity sweep failed")
		} else if removed > 0 {
			log.Info().Int64("removed", removed).Msg("Swept expired identities")
		}

		if reaped := parties.ReapStale(cfg.Party.StaleAfter); len(reaped) > 0 {
			log.Info().Int("reaped", len(reaped)).Msg("Reaped stale parties")
		}
	}

	sweep()

	ticker := time.NewTicker(cfg.Party.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create identities table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS identities (
			discord_id VARCHAR(32) PRIMARY KEY,
			steam_id VARCHAR(32) NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_identities_expires ON identities(expires_at);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: identities table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}

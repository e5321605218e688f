// Package main registers the bot's global slash commands. Run once after
// deploying or whenever the command set changes.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"steam-party-bot/internal/config"
	"steam-party-bot/internal/discord"
	"steam-party-bot/internal/handler"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	commands := []discord.Command{
		{
			Name:             handler.CommandGamePicker,
			Description:      "Find a game to play on Steam",
			Type:             1,
			IntegrationTypes: []int{0, 1},
			Contexts:         []int{0, 2},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := discord.NewClient(&cfg.Discord)
	if err := client.RegisterGlobalCommands(ctx, commands); err != nil {
		log.Fatal().Err(err).Msg("Failed to register commands")
	}

	log.Info().Int("count", len(commands)).Msg("Global commands registered")
}

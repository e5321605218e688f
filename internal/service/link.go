// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"steam-party-bot/internal/config"
	"steam-party-bot/internal/discord"
	"steam-party-bot/internal/model"
	"steam-party-bot/internal/repository"
)

// Errors for the linking flow.
var (
	ErrNoSteamConnection = errors.New("no steam connection on discord account")
)

// connectionSteam is the Discord connection type for Steam accounts.
const connectionSteam = "steam"

// LinkService runs the OAuth2 flow that links a Discord user to their
// Steam account: code exchange, connections lookup, identity upsert.
type LinkService struct {
	oauth      *oauth2.Config
	discord    *discord.Client
	identities *repository.IdentityRepository
}

// NewLinkService creates a LinkService from the application config.
func NewLinkService(cfg *config.Config, client *discord.Client, identities *repository.IdentityRepository) *LinkService {
	return &LinkService{
		oauth: &oauth2.Config{
			ClientID:     cfg.Discord.ClientID,
			ClientSecret: cfg.Discord.ClientSecret,
			RedirectURL:  cfg.RedirectURL(),
			Scopes:       []string{"identify", "connections"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/oauth2/authorize",
				TokenURL: cfg.Discord.APIBase + "/oauth2/token",
			},
		},
		discord:    client,
		identities: identities,
	}
}

// AuthURL returns the authorization URL users visit to grant access to
// their Steam connection.
func (s *LinkService) AuthURL() string {
	return s.oauth.AuthCodeURL("")
}

// CompleteLink exchanges an authorization code, reads the user's identity
// and Steam connection, and stores the mapping with a one-year expiry.
func (s *LinkService) CompleteLink(ctx context.Context, code string) (*model.Identity, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	user, err := s.discord.CurrentUser(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user identity: %w", err)
	}

	connections, err := s.discord.CurrentUserConnections(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user connections: %w", err)
	}

	var steamID string
	for _, conn := range connections {
		if conn.Type == connectionSteam {
			steamID = conn.ID
			break
		}
	}
	if steamID == "" {
		return nil, ErrNoSteamConnection
	}

	identity, err := s.identities.Upsert(ctx, user.ID, steamID)
	if err != nil {
		return nil, fmt.Errorf("failed to store identity: %w", err)
	}

	log.Info().
		Str("discord_id", identity.DiscordID).
		Time("expires_at", identity.ExpiresAt).
		Msg("Linked Steam account")

	return identity, nil
}

// Package steam provides the Steam Web API client used to fetch a
// player's owned-games library.
package steam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"steam-party-bot/internal/config"
	"steam-party-bot/internal/model"
)

// Errors for library fetches. A missing games list is an error, not an
// empty catalog: private profiles and bad Steam ids come back that way and
// must abort the search rather than silently match nothing.
var (
	ErrLibraryUnavailable = errors.New("could not fetch library data")
)

// Client fetches owned-games catalogs from the Steam Web API.
type Client struct {
	apiKey  string
	apiBase string
	http    *http.Client
}

// NewClient creates a Steam Web API client.
func NewClient(cfg *config.SteamConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ownedGamesResponse mirrors IPlayerService/GetOwnedGames. Games is nil
// (not empty) when the profile is private or the id is unknown.
type ownedGamesResponse struct {
	Response struct {
		GameCount int                  `json:"game_count"`
		Games     []model.CatalogEntry `json:"games"`
	} `json:"response"`
}

// FetchCatalog returns the owned-games catalog for a Steam account.
func (c *Client) FetchCatalog(ctx context.Context, steamID string) (model.Catalog, error) {
	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("steamid", steamID)
	q.Set("include_appinfo", "true")
	q.Set("include_played_free_games", "true")
	q.Set("format", "json")

	endpoint := c.apiBase + "/IPlayerService/GetOwnedGames/v0001/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build owned games request: %w", err)
	}

	log.Debug().Str("steam_id", steamID).Msg("Fetching Steam library")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLibraryUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: steam api returned %s", ErrLibraryUnavailable, resp.Status)
	}

	var body ownedGamesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLibraryUnavailable, err)
	}

	if body.Response.Games == nil {
		return nil, fmt.Errorf("%w: no games in response for steam id %s", ErrLibraryUnavailable, steamID)
	}

	return model.Catalog(body.Response.Games), nil
}

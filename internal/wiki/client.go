// Package wiki provides the multiplayer oracle backed by PCGamingWiki's
// cargo query API.
//
// https://www.pcgamingwiki.com/wiki/PCGamingWiki:API
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"steam-party-bot/internal/config"
)

// Client answers whether a Steam app supports online multiplayer.
// Confirmed answers (yes and no) are cached; failed queries are not, so a
// transient wiki outage doesn't poison the cache.
type Client struct {
	apiBase string
	http    *http.Client
	cache   *lru.Cache[int64, bool]
}

// NewClient creates a wiki oracle client with an LRU answer cache.
func NewClient(cfg *config.WikiConfig) (*Client, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = 1024
	}

	cache, err := lru.New[int64, bool](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle cache: %w", err)
	}

	return &Client{
		apiBase: cfg.APIBase,
		http:    &http.Client{Timeout: 15 * time.Second},
		cache:   cache,
	}, nil
}

// cargoResponse mirrors the cargoquery result rows. The multiplayer field
// is a free-form player count; any non-empty value means the game has an
// online multiplayer entry.
type cargoResponse struct {
	CargoQuery []struct {
		Title struct {
			Page        string `json:"Page"`
			Multiplayer string `json:"multiplayer"`
		} `json:"title"`
	} `json:"cargoquery"`
}

// IsMultiplayer reports whether the app has online multiplayer according
// to the wiki. Query failures are returned as errors so callers can tell
// "confirmed not multiplayer" from "could not determine".
func (c *Client) IsMultiplayer(ctx context.Context, appID int64) (bool, error) {
	if cached, ok := c.cache.Get(appID); ok {
		return cached, nil
	}

	q := url.Values{}
	q.Set("action", "cargoquery")
	q.Set("tables", "Infobox_game=IG,Multiplayer=M")
	q.Set("join_on", "IG._pageName=M._pageName")
	q.Set("fields", "IG._pageName=Page,IG.Steam_AppID,M.Online_players=multiplayer")
	q.Set("where", fmt.Sprintf("IG.Steam_AppID HOLDS %q", strconv.FormatInt(appID, 10)))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("failed to build cargo query: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("cargo query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("cargo query returned %s", resp.Status)
	}

	var body cargoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode cargo query response: %w", err)
	}

	// No row for the app id means the wiki has no multiplayer entry.
	multiplayer := len(body.CargoQuery) > 0 && body.CargoQuery[0].Title.Multiplayer != ""

	c.cache.Add(appID, multiplayer)

	log.Debug().
		Int64("app_id", appID).
		Bool("multiplayer", multiplayer).
		Msg("Multiplayer oracle answer")

	return multiplayer, nil
}

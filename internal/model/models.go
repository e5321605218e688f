// Package model defines the data models for the Steam party bot.
package model

import (
	"strconv"
	"time"
)

// Identity maps a Discord user to their linked Steam account.
// Rows expire one year after linking and are purged by a periodic sweep.
type Identity struct {
	DiscordID string    `db:"discord_id"`
	SteamID   string    `db:"steam_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// IdentityTTL is how long a Steam link stays valid before the user has to
// re-authorize.
const IdentityTTL = 365 * 24 * time.Hour

// CatalogEntry is one owned game in a user's Steam library.
// Transient: produced by the library client, consumed by the matcher.
type CatalogEntry struct {
	AppID   int64  `json:"appid"`
	Name    string `json:"name"`
	IconRef string `json:"img_icon_url"`
}

// Catalog is one member's owned-games list.
type Catalog []CatalogEntry

// StoreURL returns the Steam store page for the entry.
func (e CatalogEntry) StoreURL() string {
	return "https://store.steampowered.com/app/" + strconv.FormatInt(e.AppID, 10)
}

// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"steam-party-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrIdentityNotFound = errors.New("identity not found")
)

// IdentityRepository persists the Discord user to Steam account mapping.
// Reads never return expired rows, so an unlinked or lapsed user always
// hits the Steam-link prompt even between sweeps.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates a new IdentityRepository instance.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Get retrieves the identity linked to a Discord user.
// Returns ErrIdentityNotFound if no unexpired link exists.
func (r *IdentityRepository) Get(ctx context.Context, discordID string) (*model.Identity, error) {
	const query = `
		SELECT discord_id, steam_id, expires_at, created_at
		FROM identities
		WHERE discord_id = $1 AND expires_at > NOW()
	`

	var identity model.Identity
	err := r.pool.QueryRow(ctx, query, discordID).Scan(
		&identity.DiscordID,
		&identity.SteamID,
		&identity.ExpiresAt,
		&identity.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return &identity, nil
}

// BatchGet retrieves the Steam ids for a set of Discord users.
// The result map omits users with no unexpired link; callers decide
// whether a partial result is acceptable.
func (r *IdentityRepository) BatchGet(ctx context.Context, discordIDs []string) (map[string]string, error) {
	const query = `
		SELECT discord_id, steam_id
		FROM identities
		WHERE discord_id = ANY($1) AND expires_at > NOW()
	`

	rows, err := r.pool.Query(ctx, query, discordIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to batch get identities: %w", err)
	}
	defer rows.Close()

	steamIDs := make(map[string]string, len(discordIDs))
	for rows.Next() {
		var discordID, steamID string
		if err := rows.Scan(&discordID, &steamID); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		steamIDs[discordID] = steamID
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identities: %w", err)
	}

	return steamIDs, nil
}

// Upsert creates or refreshes a Steam link for a Discord user.
// Re-linking resets the one-year expiry.
func (r *IdentityRepository) Upsert(ctx context.Context, discordID, steamID string) (*model.Identity, error) {
	const query = `
		INSERT INTO identities (discord_id, steam_id, expires_at, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (discord_id)
		DO UPDATE SET steam_id = EXCLUDED.steam_id, expires_at = EXCLUDED.expires_at
		RETURNING discord_id, steam_id, expires_at, created_at
	`

	expiresAt := time.Now().Add(model.IdentityTTL)

	var identity model.Identity
	err := r.pool.QueryRow(ctx, query, discordID, steamID, expiresAt).Scan(
		&identity.DiscordID,
		&identity.SteamID,
		&identity.ExpiresAt,
		&identity.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert identity: %w", err)
	}

	return &identity, nil
}

// SweepExpired deletes identities whose expiry has passed.
// Returns the number of rows removed.
func (r *IdentityRepository) SweepExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM identities WHERE expires_at <= NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired identities: %w", err)
	}

	return result.RowsAffected(), nil
}

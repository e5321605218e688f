// Package matcher finds a multiplayer game common to a set of Steam
// libraries.
//
// The search is randomized and bounded rather than an exhaustive
// intersection: it probes random entries of the smallest library and asks
// the multiplayer oracle only for entries every member owns. That keeps
// oracle traffic proportional to the number of probes, bounds the worst
// case by the smallest library, and varies the suggestion when several
// games would match.
package matcher

import (
	"context"
	"errors"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"

	"steam-party-bot/internal/model"
)

// Oracle answers whether a game supports multiplayer. A failed query is an
// explicit error, distinct from a confirmed "no".
type Oracle interface {
	IsMultiplayer(ctx context.Context, appID int64) (bool, error)
}

// Errors for match resolution.
var (
	ErrNoCatalogs   = errors.New("no catalogs to compare")
	ErrNoCommonGame = errors.New("no common multiplayer game found")
)

// Matcher resolves a shared game across member catalogs.
type Matcher struct {
	oracle Oracle
}

// New creates a Matcher backed by the given oracle.
func New(oracle Oracle) *Matcher {
	return &Matcher{oracle: oracle}
}

// FindSharedGame returns one game present in every catalog and confirmed
// multiplayer by the oracle. With a single catalog it returns a uniformly
// random entry without consulting the oracle: the multiplayer constraint
// only matters when comparing across members.
//
// ErrNoCommonGame is a legitimate negative result, not a fault. Input
// catalogs are not mutated.
func (m *Matcher) FindSharedGame(ctx context.Context, catalogs []model.Catalog) (model.CatalogEntry, error) {
	switch len(catalogs) {
	case 0:
		return model.CatalogEntry{}, ErrNoCatalogs
	case 1:
		if len(catalogs[0]) == 0 {
			return model.CatalogEntry{}, ErrNoCommonGame
		}
		return catalogs[0][rand.Intn(len(catalogs[0]))], nil
	}

	// Smallest library is the probe set; the rest become membership sets.
	sorted := make([]model.Catalog, len(catalogs))
	copy(sorted, catalogs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) < len(sorted[j])
	})

	probe := make([]model.CatalogEntry, len(sorted[0]))
	copy(probe, sorted[0])

	others := make([]map[int64]struct{}, 0, len(sorted)-1)
	for _, catalog := range sorted[1:] {
		owned := make(map[int64]struct{}, len(catalog))
		for _, entry := range catalog {
			owned[entry.AppID] = struct{}{}
		}
		others = append(others, owned)
	}

	// Failed probes are removed permanently, so the loop terminates after
	// at most len(probe) iterations.
	for len(probe) > 0 {
		if err := ctx.Err(); err != nil {
			return model.CatalogEntry{}, err
		}

		i := rand.Intn(len(probe))
		candidate := probe[i]

		if ownedByAll(candidate.AppID, others) {
			multiplayer, err := m.oracle.IsMultiplayer(ctx, candidate.AppID)
			if err != nil {
				// Could not determine; skip this candidate rather than
				// failing the whole search.
				log.Warn().
					Err(err).
					Int64("app_id", candidate.AppID).
					Str("name", candidate.Name).
					Msg("Multiplayer lookup failed, skipping candidate")
			} else if multiplayer {
				return candidate, nil
			}
		}

		probe[i] = probe[len(probe)-1]
		probe = probe[:len(probe)-1]
	}

	return model.CatalogEntry{}, ErrNoCommonGame
}

// ownedByAll checks set membership of an app id in every other catalog.
func ownedByAll(appID int64, others []map[int64]struct{}) bool {
	for _, owned := range others {
		if _, ok := owned[appID]; !ok {
			return false
		}
	}
	return true
}

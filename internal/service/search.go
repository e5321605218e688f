package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"steam-party-bot/internal/matcher"
	"steam-party-bot/internal/model"
)

// ErrMemberNotLinked is returned when a party member's Steam link is
// missing or lapsed at resolution time.
var ErrMemberNotLinked = errors.New("party member has no linked steam account")

// IdentityDirectory resolves Discord users to Steam ids. The result map
// omits users with no valid link.
type IdentityDirectory interface {
	BatchGet(ctx context.Context, discordIDs []string) (map[string]string, error)
}

// LibrarySource fetches a Steam account's owned-games catalog.
type LibrarySource interface {
	FetchCatalog(ctx context.Context, steamID string) (model.Catalog, error)
}

// SearchService resolves a shared multiplayer game for a closed party.
// Resolution is all-or-nothing: every member must resolve to a Steam id
// and every catalog fetch must succeed, otherwise the whole search fails.
type SearchService struct {
	identities IdentityDirectory
	libraries  LibrarySource
	matcher    *matcher.Matcher
	timeout    time.Duration
}

// NewSearchService creates a SearchService. The timeout bounds the whole
// resolution so the shared "searching" message cannot go stale unbounded.
func NewSearchService(identities IdentityDirectory, libraries LibrarySource, m *matcher.Matcher, timeout time.Duration) *SearchService {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &SearchService{
		identities: identities,
		libraries:  libraries,
		matcher:    m,
		timeout:    timeout,
	}
}

// ResolveSharedGame finds one game common to all members' libraries.
// Distinct failures: ErrMemberNotLinked, the library source's fetch
// error, and matcher.ErrNoCommonGame (a legitimate negative result).
func (s *SearchService) ResolveSharedGame(ctx context.Context, memberIDs []string) (model.CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	steamIDs, err := s.identities.BatchGet(ctx, memberIDs)
	if err != nil {
		return model.CatalogEntry{}, fmt.Errorf("failed to resolve member identities: %w", err)
	}

	ordered := make([]string, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		steamID, ok := steamIDs[memberID]
		if !ok {
			return model.CatalogEntry{}, fmt.Errorf("%w: %s", ErrMemberNotLinked, memberID)
		}
		ordered = append(ordered, steamID)
	}

	// Fetch all catalogs concurrently; the first failure cancels the rest.
	catalogs := make([]model.Catalog, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	for i, steamID := range ordered {
		g.Go(func() error {
			catalog, err := s.libraries.FetchCatalog(gctx, steamID)
			if err != nil {
				return err
			}
			catalogs[i] = catalog
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.CatalogEntry{}, err
	}

	started := time.Now()
	entry, err := s.matcher.FindSharedGame(ctx, catalogs)
	if err != nil {
		return model.CatalogEntry{}, err
	}

	log.Info().
		Int("members", len(memberIDs)).
		Int64("app_id", entry.AppID).
		Str("name", entry.Name).
		Dur("took", time.Since(started)).
		Msg("Resolved shared game")

	return entry, nil
}

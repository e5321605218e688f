// Package handler dispatches verified interaction events: liveness pings,
// the party-creating slash command, and the party control buttons.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"steam-party-bot/internal/discord"
	"steam-party-bot/internal/matcher"
	"steam-party-bot/internal/model"
	"steam-party-bot/internal/party"
	"steam-party-bot/internal/repository"
	"steam-party-bot/internal/service"
	"steam-party-bot/internal/steam"
)

// CommandGamePicker is the slash command that creates a party.
const CommandGamePicker = "game-picker"

// ErrBadInteraction is returned for events that violate the interaction
// contract (unknown type, missing data). Surfaced as a bad request.
var ErrBadInteraction = errors.New("malformed interaction")

// IdentityGate authorizes party-affecting actions: every actor must hold
// an unexpired Steam link.
type IdentityGate interface {
	Get(ctx context.Context, discordID string) (*model.Identity, error)
}

// Searcher resolves a shared game for a closed party's members.
type Searcher interface {
	ResolveSharedGame(ctx context.Context, memberIDs []string) (model.CatalogEntry, error)
}

// Webhook edits interaction messages after the initial response.
type Webhook interface {
	CreateFollowup(ctx context.Context, token string, data *discord.ResponseData) error
	EditOriginal(ctx context.Context, token string, data *discord.ResponseData) error
}

// Followup is deferred work that must run after the initial interaction
// response has been written: follow-up posts and shared-message patches.
type Followup func(ctx context.Context)

// InteractionHandler owns the event dispatch: classify, gate on identity,
// route to the party manager, render the outcome.
type InteractionHandler struct {
	identities IdentityGate
	parties    *party.Manager
	searcher   Searcher
	webhook    Webhook
	authURL    string
}

// NewInteractionHandler creates an InteractionHandler.
func NewInteractionHandler(identities IdentityGate, parties *party.Manager, searcher Searcher, webhook Webhook, authURL string) *InteractionHandler {
	return &InteractionHandler{
		identities: identities,
		parties:    parties,
		searcher:   searcher,
		webhook:    webhook,
		authURL:    authURL,
	}
}

// Handle processes one interaction event and returns the initial response
// plus any deferred follow-up work. An error means a contract violation;
// every user-facing rejection is rendered as an ephemeral notice instead.
func (h *InteractionHandler) Handle(ctx context.Context, in *discord.Interaction) (discord.Response, Followup, error) {
	switch in.Type {
	case discord.InteractionPing:
		return discord.Pong(), nil, nil
	case discord.InteractionCommand:
		return h.handleCommand(ctx, in)
	case discord.InteractionMessageComponent:
		return h.handleComponent(ctx, in)
	default:
		return discord.Response{}, nil, fmt.Errorf("%w: unknown interaction type %d", ErrBadInteraction, in.Type)
	}
}

// handleCommand creates a party for the game-picker command.
func (h *InteractionHandler) handleCommand(ctx context.Context, in *discord.Interaction) (discord.Response, Followup, error) {
	sender := in.Sender()
	if sender == nil || in.Data == nil {
		return discord.Response{}, nil, fmt.Errorf("%w: command without sender or data", ErrBadInteraction)
	}

	if in.Data.Name != CommandGamePicker {
		return discord.Response{}, nil, fmt.Errorf("%w: unknown command %q", ErrBadInteraction, in.Data.Name)
	}

	if resp, ok := h.gate(ctx, sender.ID); !ok {
		return resp, nil, nil
	}

	snap, err := h.parties.Create(in.ID, sender.ID, in.Token)
	if err != nil {
		log.Error().Err(err).Str("party_id", in.ID).Msg("Failed to create party")
		return discord.Ephemeral("Hmm, something went wrong."), nil, nil
	}

	log.Info().
		Str("party_id", snap.ID).
		Str("leader_id", sender.ID).
		Msg("Party created")

	// The leader controls are a follow-up under the same token, posted
	// once the announcement response has been written.
	token := in.Token
	followup := func(ctx context.Context) {
		if err := h.webhook.CreateFollowup(ctx, token, controlsMessage(snap.ID)); err != nil {
			log.Error().Err(err).Str("party_id", snap.ID).Msg("Failed to post leader controls")
		}
	}

	return discord.ChannelMessage(partyMessage(snap, h.parties.MaxLobbySize())), followup, nil
}

// handleComponent routes a party control click.
func (h *InteractionHandler) handleComponent(ctx context.Context, in *discord.Interaction) (discord.Response, Followup, error) {
	sender := in.Sender()
	if sender == nil || in.Data == nil {
		return discord.Response{}, nil, fmt.Errorf("%w: component without sender or data", ErrBadInteraction)
	}

	control, err := discord.DecodeControlID(in.Data.CustomID)
	if err != nil {
		return discord.Response{}, nil, err
	}

	if resp, ok := h.gate(ctx, sender.ID); !ok {
		return resp, nil, nil
	}

	switch control.Action {
	case discord.ActionJoin:
		return h.handleJoin(control.PartyID, sender.ID)
	case discord.ActionLeave:
		return h.handleLeave(control.PartyID, sender.ID)
	case discord.ActionBegin:
		return h.handleBegin(control.PartyID, sender.ID)
	case discord.ActionDisband:
		return h.handleDisband(control.PartyID, sender.ID)
	default:
		return discord.Response{}, nil, fmt.Errorf("%w: unhandled action %q", ErrBadInteraction, control.Action)
	}
}

// handleJoin adds the user to the party and re-renders the shared message.
func (h *InteractionHandler) handleJoin(partyID, userID string) (discord.Response, Followup, error) {
	snap, err := h.parties.Join(partyID, userID)
	switch {
	case err == nil:
		return discord.UpdateMessage(partyMessage(snap, h.parties.MaxLobbySize())), nil, nil
	case errors.Is(err, party.ErrAlreadyMember):
		return discord.Ephemeral(fmt.Sprintf("You've already joined %s's party!", mention(snap.Leader()))), nil, nil
	case errors.Is(err, party.ErrPartyFull):
		return discord.Ephemeral(fmt.Sprintf("%s's party is already full!", mention(snap.Leader()))), nil, nil
	case errors.Is(err, party.ErrNotOpen):
		return discord.Ephemeral("This party has already started searching."), nil, nil
	case errors.Is(err, party.ErrNotFound):
		return discord.Ephemeral("This party does not exist! 👻"), nil, nil
	default:
		return discord.Ephemeral("Hmm, something went wrong."), nil, nil
	}
}

// handleLeave removes the user from the party and re-renders the shared
// message. The leader is redirected to Disband.
func (h *InteractionHandler) handleLeave(partyID, userID string) (discord.Response, Followup, error) {
	snap, err := h.parties.Leave(partyID, userID)
	switch {
	case err == nil:
		return discord.UpdateMessage(partyMessage(snap, h.parties.MaxLobbySize())), nil, nil
	case errors.Is(err, party.ErrLeaderCannotLeave):
		return discord.Ephemeral("You're the party leader! Did you mean to disband?"), nil, nil
	case errors.Is(err, party.ErrNotMember):
		return discord.Ephemeral(fmt.Sprintf("You aren't in %s's party.", mention(snap.Leader()))), nil, nil
	case errors.Is(err, party.ErrNotOpen):
		return discord.Ephemeral("This party has already started searching."), nil, nil
	case errors.Is(err, party.ErrNotFound):
		return discord.Ephemeral("This party does not exist! 👻"), nil, nil
	default:
		return discord.Ephemeral("Hmm, something went wrong."), nil, nil
	}
}

// handleBegin closes the party and resolves the shared game. The initial
// response clears the leader controls; the resolution itself runs as
// deferred work that patches the shared message with each phase.
func (h *InteractionHandler) handleBegin(partyID, userID string) (discord.Response, Followup, error) {
	snap, err := h.parties.Begin(partyID, userID)
	switch {
	case err == nil:
	case errors.Is(err, party.ErrNotLeader):
		return discord.Ephemeral("Only the party leader can do that."), nil, nil
	case errors.Is(err, party.ErrNotOpen):
		return discord.Ephemeral("This party has already started searching."), nil, nil
	case errors.Is(err, party.ErrNotFound):
		return discord.Ephemeral("This party does not exist! 👻"), nil, nil
	default:
		return discord.Ephemeral("Hmm, something went wrong."), nil, nil
	}

	log.Info().
		Str("party_id", snap.ID).
		Int("members", len(snap.Members)).
		Msg("Party closed, starting search")

	followup := func(ctx context.Context) {
		h.resolve(ctx, snap)
	}

	resp := discord.UpdateMessage(&discord.ResponseData{
		Content:    "🔍 Search started.",
		Components: []discord.Component{},
	})
	return resp, followup, nil
}

// resolve runs the search for a closed party and renders the outcome on
// the shared message. The party record is removed once either outcome has
// been rendered; a stale token is terminal, never retried.
func (h *InteractionHandler) resolve(ctx context.Context, snap party.Snapshot) {
	defer h.parties.Remove(snap.ID)

	leader := snap.Leader()

	// A disband may land before this deferred work runs; the shared
	// message already says so and must stay that way.
	if _, ok := h.parties.Get(snap.ID); !ok {
		return
	}

	if err := h.webhook.EditOriginal(ctx, snap.MessageToken, searchingMessage(leader)); err != nil {
		log.Error().Err(err).Str("party_id", snap.ID).Msg("Failed to render searching state")
		return
	}

	entry, err := h.searcher.ResolveSharedGame(ctx, snap.Members)

	var outcome *discord.ResponseData
	switch {
	case err == nil:
		outcome = foundMessage(leader, entry)
	case errors.Is(err, matcher.ErrNoCommonGame):
		outcome = failureMessage(leader, "No common multiplayer game found. 😢")
	case errors.Is(err, service.ErrMemberNotLinked):
		outcome = failureMessage(leader, "A member's Steam link has expired — they need to re-link.")
	case errors.Is(err, steam.ErrLibraryUnavailable):
		outcome = failureMessage(leader, "Couldn't fetch everyone's library data.")
	default:
		log.Error().Err(err).Str("party_id", snap.ID).Msg("Search failed")
		outcome = failureMessage(leader, "Something went wrong during the search.")
	}

	// The leader may have disbanded while the search ran; their
	// cancellation wins over a late outcome.
	if _, ok := h.parties.Get(snap.ID); !ok {
		return
	}

	if err := h.webhook.EditOriginal(ctx, snap.MessageToken, outcome); err != nil {
		log.Error().Err(err).Str("party_id", snap.ID).Msg("Failed to render search outcome")
	}
}

// handleDisband cancels the party. The initial response clears the leader
// controls; the shared message is patched as deferred work.
func (h *InteractionHandler) handleDisband(partyID, userID string) (discord.Response, Followup, error) {
	snap, err := h.parties.Disband(partyID, userID)
	switch {
	case err == nil:
	case errors.Is(err, party.ErrNotLeader):
		return discord.Ephemeral("Only the party leader can do that."), nil, nil
	case errors.Is(err, party.ErrNotFound):
		return discord.Ephemeral("This party does not exist! 👻"), nil, nil
	default:
		return discord.Ephemeral("Hmm, something went wrong."), nil, nil
	}

	log.Info().Str("party_id", snap.ID).Msg("Party disbanded")

	followup := func(ctx context.Context) {
		if err := h.webhook.EditOriginal(ctx, snap.MessageToken, disbandedMessage(snap.Leader())); err != nil {
			log.Error().Err(err).Str("party_id", snap.ID).Msg("Failed to render disband")
		}
	}

	resp := discord.UpdateMessage(&discord.ResponseData{
		Content:    "Party disbanded.",
		Components: []discord.Component{},
	})
	return resp, followup, nil
}

// gate checks the actor's Steam link. Returns (prompt, false) when the
// action must be blocked, rendering either the link prompt or a generic
// failure notice.
func (h *InteractionHandler) gate(ctx context.Context, discordID string) (discord.Response, bool) {
	_, err := h.identities.Get(ctx, discordID)
	switch {
	case err == nil:
		return discord.Response{}, true
	case errors.Is(err, repository.ErrIdentityNotFound):
		return linkPrompt(h.authURL), false
	default:
		log.Error().Err(err).Str("discord_id", discordID).Msg("Identity lookup failed")
		return discord.Ephemeral("Hmm, something went wrong."), false
	}
}

package handler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steam-party-bot/internal/discord"
	"steam-party-bot/internal/matcher"
	"steam-party-bot/internal/model"
	"steam-party-bot/internal/party"
	"steam-party-bot/internal/repository"
)

// fakeGate admits users from a fixed set.
type fakeGate struct {
	linked map[string]bool
}

func (f *fakeGate) Get(_ context.Context, discordID string) (*model.Identity, error) {
	if f.linked[discordID] {
		return &model.Identity{
			DiscordID: discordID,
			SteamID:   "steam-" + discordID,
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil
	}
	return nil, repository.ErrIdentityNotFound
}

// fakeSearcher returns a canned resolution outcome. The hook, when set,
// runs mid-search to stage actions that land while resolution is in
// flight.
type fakeSearcher struct {
	entry model.CatalogEntry
	err   error
	hook  func()

	gotMembers []string
}

func (f *fakeSearcher) ResolveSharedGame(_ context.Context, memberIDs []string) (model.CatalogEntry, error) {
	f.gotMembers = memberIDs
	if f.hook != nil {
		f.hook()
	}
	return f.entry, f.err
}

// fakeWebhook records message edits and follow-up posts.
type fakeWebhook struct {
	mu        sync.Mutex
	followups []*discord.ResponseData
	edits     []*discord.ResponseData
	tokens    []string
}

func (f *fakeWebhook) CreateFollowup(_ context.Context, token string, data *discord.ResponseData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followups = append(f.followups, data)
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeWebhook) EditOriginal(_ context.Context, token string, data *discord.ResponseData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, data)
	f.tokens = append(f.tokens, token)
	return nil
}

type fixture struct {
	handler  *InteractionHandler
	gate     *fakeGate
	parties  *party.Manager
	searcher *fakeSearcher
	webhook  *fakeWebhook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gate:     &fakeGate{linked: map[string]bool{"leader": true, "member": true}},
		parties:  party.NewManager(4, nil),
		searcher: &fakeSearcher{},
		webhook:  &fakeWebhook{},
	}
	f.handler = NewInteractionHandler(f.gate, f.parties, f.searcher, f.webhook, "https://example.com/auth")
	return f
}

func commandInteraction(id, userID, token string) *discord.Interaction {
	return &discord.Interaction{
		Type:  discord.InteractionCommand,
		ID:    id,
		Token: token,
		Data:  &discord.InteractionData{Name: CommandGamePicker},
		Member: &discord.Member{
			User: &discord.User{ID: userID},
		},
	}
}

func componentInteraction(userID string, control discord.ControlID) *discord.Interaction {
	return &discord.Interaction{
		Type:  discord.InteractionMessageComponent,
		ID:    "click-1",
		Token: "click-token",
		Data:  &discord.InteractionData{CustomID: control.Encode()},
		Member: &discord.Member{
			User: &discord.User{ID: userID},
		},
	}
}

// createParty drives a command through the handler and returns the party id.
func createParty(t *testing.T, f *fixture, leaderID string) string {
	t.Helper()
	resp, followup, err := f.handler.Handle(context.Background(), commandInteraction("party-1", leaderID, "tok-1"))
	require.NoError(t, err)
	require.Equal(t, discord.ResponseChannelMessage, resp.Type)
	require.NotNil(t, followup)
	followup(context.Background())
	return "party-1"
}

func TestHandle_Ping(t *testing.T) {
	f := newFixture(t)

	resp, followup, err := f.handler.Handle(context.Background(), &discord.Interaction{Type: discord.InteractionPing})
	require.NoError(t, err)
	assert.Equal(t, discord.Pong(), resp)
	assert.Nil(t, followup)
}

func TestHandle_UnknownType(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.handler.Handle(context.Background(), &discord.Interaction{Type: 99})
	assert.ErrorIs(t, err, ErrBadInteraction)
}

func TestHandleCommand_UnlinkedUserGetsPrompt(t *testing.T) {
	f := newFixture(t)

	resp, followup, err := f.handler.Handle(context.Background(), commandInteraction("party-1", "stranger", "tok-1"))
	require.NoError(t, err)
	assert.Nil(t, followup)

	// No party is created; the user is sent to OAuth instead.
	assert.Equal(t, 0, f.parties.Count())
	require.NotNil(t, resp.Data)
	assert.NotZero(t, resp.Data.Flags&discord.FlagEphemeral)

	require.Len(t, resp.Data.Components, 1)
	button := resp.Data.Components[0].Components[0]
	assert.Equal(t, discord.StyleLink, button.Style)
	assert.Equal(t, "https://example.com/auth", button.URL)
}

func TestHandleCommand_CreatesPartyAndPostsControls(t *testing.T) {
	f := newFixture(t)

	resp, followup, err := f.handler.Handle(context.Background(), commandInteraction("party-1", "leader", "tok-1"))
	require.NoError(t, err)
	require.NotNil(t, followup)

	assert.Equal(t, discord.ResponseChannelMessage, resp.Type)
	assert.Contains(t, resp.Data.Content, "<@leader>")
	assert.Contains(t, resp.Data.Content, "1/4")

	snap, ok := f.parties.Get("party-1")
	require.True(t, ok)
	assert.Equal(t, []string{"leader"}, snap.Members)
	assert.Equal(t, "tok-1", snap.MessageToken)

	// Join/Leave buttons carry decodable control ids.
	row := resp.Data.Components[0]
	for _, button := range row.Components {
		control, err := discord.DecodeControlID(button.CustomID)
		require.NoError(t, err)
		assert.Equal(t, "party-1", control.PartyID)
	}

	// The leader controls arrive as an ephemeral follow-up.
	followup(context.Background())
	require.Len(t, f.webhook.followups, 1)
	controls := f.webhook.followups[0]
	assert.NotZero(t, controls.Flags&discord.FlagEphemeral)
	assert.Equal(t, []string{"tok-1"}, f.webhook.tokens)
}

func TestHandleCommand_UnknownCommand(t *testing.T) {
	f := newFixture(t)

	in := commandInteraction("party-1", "leader", "tok-1")
	in.Data.Name = "other-command"
	_, _, err := f.handler.Handle(context.Background(), in)
	assert.ErrorIs(t, err, ErrBadInteraction)
}

func TestHandleComponent_MalformedCustomID(t *testing.T) {
	f := newFixture(t)

	in := componentInteraction("leader", discord.ControlID{})
	in.Data.CustomID = "join:party-1"
	_, _, err := f.handler.Handle(context.Background(), in)
	assert.ErrorIs(t, err, discord.ErrBadControlID)
}

func TestHandleJoin(t *testing.T) {
	t.Run("linked user joins and the message re-renders", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")

		resp, followup, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionJoin, PartyID: partyID}))
		require.NoError(t, err)
		assert.Nil(t, followup)

		assert.Equal(t, discord.ResponseUpdateMessage, resp.Type)
		assert.Contains(t, resp.Data.Content, "2/4")
		assert.Contains(t, resp.Data.Content, "<@member>")
	})

	t.Run("unlinked user is prompted, not joined", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")

		resp, _, err := f.handler.Handle(context.Background(),
			componentInteraction("stranger", discord.ControlID{Action: discord.ActionJoin, PartyID: partyID}))
		require.NoError(t, err)

		assert.NotZero(t, resp.Data.Flags&discord.FlagEphemeral)
		snap, ok := f.parties.Get(partyID)
		require.True(t, ok)
		assert.Equal(t, []string{"leader"}, snap.Members)
	})

	t.Run("double join gets an ephemeral notice", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")

		_, _, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionJoin, PartyID: partyID}))
		require.NoError(t, err)

		resp, _, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionJoin, PartyID: partyID}))
		require.NoError(t, err)

		assert.Equal(t, discord.ResponseChannelMessage, resp.Type)
		assert.NotZero(t, resp.Data.Flags&discord.FlagEphemeral)
		assert.Contains(t, resp.Data.Content, "already joined")
	})

	t.Run("ghost party gets an ephemeral notice", func(t *testing.T) {
		f := newFixture(t)

		resp, _, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionJoin, PartyID: "gone"}))
		require.NoError(t, err)

		assert.NotZero(t, resp.Data.Flags&discord.FlagEphemeral)
		assert.Contains(t, resp.Data.Content, "does not exist")
	})
}

func TestHandleLeave(t *testing.T) {
	t.Run("member leaves and the message re-renders", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")
		_, _, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionJoin, PartyID: partyID}))
		require.NoError(t, err)

		resp, _, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionLeave, PartyID: partyID}))
		require.NoError(t, err)

		assert.Equal(t, discord.ResponseUpdateMessage, resp.Type)
		assert.Contains(t, resp.Data.Content, "1/4")
		assert.NotContains(t, resp.Data.Content, "<@member>")
	})

	t.Run("leader is redirected to disband", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")

		resp, _, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionLeave, PartyID: partyID}))
		require.NoError(t, err)

		assert.NotZero(t, resp.Data.Flags&discord.FlagEphemeral)
		assert.Contains(t, resp.Data.Content, "disband")

		snap, ok := f.parties.Get(partyID)
		require.True(t, ok)
		assert.Equal(t, []string{"leader"}, snap.Members)
	})
}

func TestHandleBegin(t *testing.T) {
	t.Run("non-leader is rejected", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")
		_, _, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionJoin, PartyID: partyID}))
		require.NoError(t, err)

		resp, followup, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionBegin, PartyID: partyID}))
		require.NoError(t, err)
		assert.Nil(t, followup)
		assert.Contains(t, resp.Data.Content, "leader")

		snap, ok := f.parties.Get(partyID)
		require.True(t, ok)
		assert.Equal(t, party.StateOpen, snap.State)
	})

	t.Run("search finds a game", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")
		_, _, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionJoin, PartyID: partyID}))
		require.NoError(t, err)

		f.searcher.entry = model.CatalogEntry{AppID: 730, Name: "Counter-Strike 2"}

		resp, followup, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionBegin, PartyID: partyID}))
		require.NoError(t, err)
		require.NotNil(t, followup)

		// The clicked controls message is cleared in place.
		assert.Equal(t, discord.ResponseUpdateMessage, resp.Type)
		assert.Empty(t, resp.Data.Components)

		followup(context.Background())

		// Searching state, then the result, both on the party's own token.
		require.Len(t, f.webhook.edits, 2)
		assert.Contains(t, f.webhook.edits[0].Content, "looking for a game")
		assert.Contains(t, f.webhook.edits[1].Content, "Counter-Strike 2")
		button := f.webhook.edits[1].Components[0].Components[0]
		assert.Equal(t, "https://store.steampowered.com/app/730", button.URL)
		assert.Equal(t, []string{"tok-1", "tok-1"}, f.webhook.tokens[1:])

		// The search ran over the frozen membership, leader first.
		assert.Equal(t, []string{"leader", "member"}, f.searcher.gotMembers)

		// Outcome rendered: the party record is gone.
		_, ok := f.parties.Get(partyID)
		assert.False(t, ok)
	})

	t.Run("no common game renders the empty-handed outcome", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")
		f.searcher.err = matcher.ErrNoCommonGame

		_, followup, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionBegin, PartyID: partyID}))
		require.NoError(t, err)
		require.NotNil(t, followup)
		followup(context.Background())

		require.Len(t, f.webhook.edits, 2)
		assert.Contains(t, f.webhook.edits[1].Content, "No common multiplayer game")
		assert.Empty(t, f.webhook.edits[1].Components)

		_, ok := f.parties.Get(partyID)
		assert.False(t, ok)
	})

	t.Run("disband during the search suppresses the outcome", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")
		f.searcher.entry = model.CatalogEntry{AppID: 730, Name: "Counter-Strike 2"}
		f.searcher.hook = func() {
			_, disbandFollowup, err := f.handler.Handle(context.Background(),
				componentInteraction("leader", discord.ControlID{Action: discord.ActionDisband, PartyID: partyID}))
			require.NoError(t, err)
			require.NotNil(t, disbandFollowup)
			disbandFollowup(context.Background())
		}

		_, followup, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionBegin, PartyID: partyID}))
		require.NoError(t, err)
		require.NotNil(t, followup)
		followup(context.Background())

		// Searching state, then the disband; the found game is never
		// rendered over the cancellation.
		require.Len(t, f.webhook.edits, 2)
		assert.Contains(t, f.webhook.edits[0].Content, "looking for a game")
		assert.Contains(t, f.webhook.edits[1].Content, "disbanded")
	})

	t.Run("disband before the deferred search runs wins outright", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")

		_, searchFollowup, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionBegin, PartyID: partyID}))
		require.NoError(t, err)
		require.NotNil(t, searchFollowup)

		_, disbandFollowup, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionDisband, PartyID: partyID}))
		require.NoError(t, err)
		require.NotNil(t, disbandFollowup)
		disbandFollowup(context.Background())

		searchFollowup(context.Background())

		// Only the disband render; not even the searching state lands.
		require.Len(t, f.webhook.edits, 1)
		assert.Contains(t, f.webhook.edits[0].Content, "disbanded")
	})

	t.Run("second begin click lands after close", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")

		_, _, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionBegin, PartyID: partyID}))
		require.NoError(t, err)

		// Party is Closed but not yet resolved; the duplicate click is a
		// polite no-op.
		resp, followup, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionBegin, PartyID: partyID}))
		require.NoError(t, err)
		assert.Nil(t, followup)
		assert.Contains(t, resp.Data.Content, "already started")
	})
}

func TestHandleDisband(t *testing.T) {
	t.Run("leader disbands and the shared message is patched", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")

		resp, followup, err := f.handler.Handle(context.Background(),
			componentInteraction("leader", discord.ControlID{Action: discord.ActionDisband, PartyID: partyID}))
		require.NoError(t, err)
		require.NotNil(t, followup)

		assert.Equal(t, discord.ResponseUpdateMessage, resp.Type)
		assert.Empty(t, resp.Data.Components)

		// Gone immediately, before the followup runs.
		_, ok := f.parties.Get(partyID)
		assert.False(t, ok)

		followup(context.Background())
		require.Len(t, f.webhook.edits, 1)
		assert.Contains(t, f.webhook.edits[0].Content, "disbanded")
		assert.Empty(t, f.webhook.edits[0].Components)
	})

	t.Run("non-leader is rejected", func(t *testing.T) {
		f := newFixture(t)
		partyID := createParty(t, f, "leader")
		_, _, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionJoin, PartyID: partyID}))
		require.NoError(t, err)

		resp, followup, err := f.handler.Handle(context.Background(),
			componentInteraction("member", discord.ControlID{Action: discord.ActionDisband, PartyID: partyID}))
		require.NoError(t, err)
		assert.Nil(t, followup)
		assert.Contains(t, resp.Data.Content, "leader")

		_, ok := f.parties.Get(partyID)
		assert.True(t, ok)
	})
}

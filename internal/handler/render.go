package handler

import (
	"fmt"
	"math/rand"
	"strings"

	"steam-party-bot/internal/discord"
	"steam-party-bot/internal/model"
	"steam-party-bot/internal/party"
)

// partyEmojis decorate the party announcement.
var partyEmojis = []string{"😀", "🎮", "🎲", "🕹️", "👾", "🎯", "🔥", "⚡"}

func randomEmoji() string {
	return partyEmojis[rand.Intn(len(partyEmojis))]
}

// mention formats a Discord user mention.
func mention(userID string) string {
	return "<@" + userID + ">"
}

// partyMessage renders the shared party announcement with Join/Leave
// controls and the current membership count.
func partyMessage(snap party.Snapshot, maxSize int) *discord.ResponseData {
	var tags strings.Builder
	for _, memberID := range snap.Members[1:] {
		tags.WriteString(" ")
		tags.WriteString(mention(memberID))
	}

	content := fmt.Sprintf(
		"%s started a game search party! %s\n`Members: %d/%d`%s",
		mention(snap.Leader()), randomEmoji(), len(snap.Members), maxSize, tags.String(),
	)

	return &discord.ResponseData{
		Content: content,
		Components: []discord.Component{
			{
				Type: discord.ComponentActionRow,
				Components: []discord.Component{
					{
						Type:     discord.ComponentButton,
						Label:    "Join",
						Style:    discord.StyleSuccess,
						CustomID: discord.ControlID{Action: discord.ActionJoin, PartyID: snap.ID}.Encode(),
					},
					{
						Type:     discord.ComponentButton,
						Label:    "Leave",
						Style:    discord.StyleSecondary,
						CustomID: discord.ControlID{Action: discord.ActionLeave, PartyID: snap.ID}.Encode(),
					},
				},
			},
		},
	}
}

// controlsMessage renders the ephemeral leader controls posted after the
// party announcement.
func controlsMessage(partyID string) *discord.ResponseData {
	return &discord.ResponseData{
		Content: "Leader Controls:",
		Flags:   discord.FlagEphemeral,
		Components: []discord.Component{
			{
				Type: discord.ComponentActionRow,
				Components: []discord.Component{
					{
						Type:     discord.ComponentButton,
						Label:    "Begin Search",
						Style:    discord.StyleSuccess,
						CustomID: discord.ControlID{Action: discord.ActionBegin, PartyID: partyID}.Encode(),
					},
					{
						Type:     discord.ComponentButton,
						Label:    "Disband",
						Style:    discord.StyleDanger,
						CustomID: discord.ControlID{Action: discord.ActionDisband, PartyID: partyID}.Encode(),
					},
				},
			},
		},
	}
}

// linkPrompt renders the ephemeral Steam-link request with the OAuth
// authorization button.
func linkPrompt(authURL string) discord.Response {
	return discord.Response{
		Type: discord.ResponseChannelMessage,
		Data: &discord.ResponseData{
			Content: "This bot wants to access your Steam connection.\n" +
				"NOTE: Make sure you've connected your Steam account to Discord first!",
			Flags: discord.FlagEphemeral,
			Components: []discord.Component{
				{
					Type: discord.ComponentActionRow,
					Components: []discord.Component{
						{
							Type:  discord.ComponentButton,
							Label: "Allow Access",
							Style: discord.StyleLink,
							URL:   authURL,
						},
					},
				},
			},
		},
	}
}

// searchingMessage replaces the shared message while resolution runs.
func searchingMessage(leaderID string) *discord.ResponseData {
	return &discord.ResponseData{
		Content:    mention(leaderID) + " is looking for a game...",
		Components: []discord.Component{},
	}
}

// foundMessage renders the resolved game with a store link.
func foundMessage(leaderID string, entry model.CatalogEntry) *discord.ResponseData {
	return &discord.ResponseData{
		Content: fmt.Sprintf("%s found **%s**! 🎉", mention(leaderID), entry.Name),
		Components: []discord.Component{
			{
				Type: discord.ComponentActionRow,
				Components: []discord.Component{
					{
						Type:  discord.ComponentButton,
						Label: "View on Steam",
						Style: discord.StyleLink,
						URL:   entry.StoreURL(),
					},
				},
			},
		},
	}
}

// failureMessage replaces the shared message when resolution fails.
func failureMessage(leaderID, reason string) *discord.ResponseData {
	return &discord.ResponseData{
		Content:    fmt.Sprintf("%s's search came up empty. %s", mention(leaderID), reason),
		Components: []discord.Component{},
	}
}

// disbandedMessage replaces the shared message after a disband.
func disbandedMessage(leaderID string) *discord.ResponseData {
	return &discord.ResponseData{
		Content:    mention(leaderID) + " disbanded the party.",
		Components: []discord.Component{},
	}
}

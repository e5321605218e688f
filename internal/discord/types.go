// Package discord implements the slice of the Discord interactions
// protocol this bot consumes: inbound webhook events, outbound response
// payloads, and the webhook endpoints used to edit messages after the
// initial response.
package discord

// InteractionType classifies an inbound interaction event.
type InteractionType int

// Interaction types delivered to the webhook endpoint.
const (
	InteractionPing             InteractionType = 1
	InteractionCommand          InteractionType = 2
	InteractionMessageComponent InteractionType = 3
)

// ResponseType selects how the initial interaction response is rendered.
type ResponseType int

// Interaction response types.
const (
	ResponsePong              ResponseType = 1
	ResponseChannelMessage    ResponseType = 4
	ResponseDeferredUpdate    ResponseType = 6
	ResponseUpdateMessage     ResponseType = 7
)

// MessageFlags control message visibility.
type MessageFlags int

// FlagEphemeral makes the response visible only to the acting user.
const FlagEphemeral MessageFlags = 1 << 6

// ComponentType identifies a message component.
type ComponentType int

// Component types used by the bot.
const (
	ComponentActionRow ComponentType = 1
	ComponentButton    ComponentType = 2
)

// ButtonStyle selects a button's appearance.
type ButtonStyle int

// Button styles.
const (
	StylePrimary   ButtonStyle = 1
	StyleSecondary ButtonStyle = 2
	StyleSuccess   ButtonStyle = 3
	StyleDanger    ButtonStyle = 4
	StyleLink      ButtonStyle = 5
)

// User is the acting Discord user.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Member wraps the user when an interaction originates in a guild.
type Member struct {
	User *User `json:"user"`
}

// Message identifies the message a component interaction was clicked on.
type Message struct {
	ID string `json:"id"`
}

// InteractionData carries the command name or the clicked component's
// custom id, depending on the interaction type.
type InteractionData struct {
	Name     string `json:"name,omitempty"`
	CustomID string `json:"custom_id,omitempty"`
}

// Interaction is a verified, parsed inbound event.
type Interaction struct {
	Type    InteractionType  `json:"type"`
	ID      string           `json:"id"`
	Token   string           `json:"token"`
	Context int              `json:"context"`
	Data    *InteractionData `json:"data,omitempty"`
	Member  *Member          `json:"member,omitempty"`
	User    *User            `json:"user,omitempty"`
	Message *Message         `json:"message,omitempty"`
}

// Sender returns the acting user: nested under member for guild
// interactions, top-level otherwise.
func (i *Interaction) Sender() *User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// Component is an action row or button in an outbound message.
type Component struct {
	Type       ComponentType `json:"type"`
	Components []Component   `json:"components,omitempty"`
	Label      string        `json:"label,omitempty"`
	Style      ButtonStyle   `json:"style,omitempty"`
	CustomID   string        `json:"custom_id,omitempty"`
	URL        string        `json:"url,omitempty"`
}

// ResponseData is the renderable body of a response or webhook edit.
type ResponseData struct {
	Content    string       `json:"content,omitempty"`
	Flags      MessageFlags `json:"flags,omitempty"`
	Components []Component  `json:"components"`
}

// Response is the payload returned from the interactions endpoint.
type Response struct {
	Type ResponseType  `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

// Pong acknowledges a liveness ping.
func Pong() Response {
	return Response{Type: ResponsePong}
}

// Ephemeral builds a private notice visible only to the acting user.
func Ephemeral(content string) Response {
	return Response{
		Type: ResponseChannelMessage,
		Data: &ResponseData{
			Content:    content,
			Flags:      FlagEphemeral,
			Components: []Component{},
		},
	}
}

// UpdateMessage builds an in-place edit of the message the component
// interaction was attached to.
func UpdateMessage(data *ResponseData) Response {
	return Response{Type: ResponseUpdateMessage, Data: data}
}

// ChannelMessage builds a new shared message in the channel.
func ChannelMessage(data *ResponseData) Response {
	return Response{Type: ResponseChannelMessage, Data: data}
}

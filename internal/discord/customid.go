package discord

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Action identifies a party control button.
type Action string

// Party control actions.
const (
	ActionJoin    Action = "join"
	ActionLeave   Action = "leave"
	ActionBegin   Action = "begin"
	ActionDisband Action = "disband"
)

// ErrBadControlID is returned for custom ids this bot did not produce.
var ErrBadControlID = errors.New("malformed control id")

// ControlID is the typed payload attached to party control buttons. It is
// serialized into the component custom id and decoded back on click, so
// the action and party id travel as structured data rather than a
// delimited string.
type ControlID struct {
	Action  Action `json:"a"`
	PartyID string `json:"p"`
}

// Encode serializes the payload for use as a component custom id.
// Custom ids are limited to 100 characters; a JSON action plus a snowflake
// stays well under that.
func (c ControlID) Encode() string {
	b, _ := json.Marshal(c)
	return string(b)
}

// DecodeControlID parses and validates a component custom id.
func DecodeControlID(raw string) (ControlID, error) {
	var c ControlID
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ControlID{}, fmt.Errorf("%w: %v", ErrBadControlID, err)
	}

	switch c.Action {
	case ActionJoin, ActionLeave, ActionBegin, ActionDisband:
	default:
		return ControlID{}, fmt.Errorf("%w: unknown action %q", ErrBadControlID, c.Action)
	}
	if c.PartyID == "" {
		return ControlID{}, fmt.Errorf("%w: missing party id", ErrBadControlID)
	}

	return c, nil
}

package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlID_EncodeDecode(t *testing.T) {
	for _, action := range []Action{ActionJoin, ActionLeave, ActionBegin, ActionDisband} {
		t.Run(string(action), func(t *testing.T) {
			original := ControlID{Action: action, PartyID: "123456789012345678"}

			encoded := original.Encode()
			// Discord caps component custom ids at 100 characters.
			assert.LessOrEqual(t, len(encoded), 100)

			decoded, err := DecodeControlID(encoded)
			require.NoError(t, err)
			assert.Equal(t, original, decoded)
		})
	}
}

func TestDecodeControlID_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "join:123"},
		{name: "empty string", raw: ""},
		{name: "unknown action", raw: `{"a":"promote","p":"123"}`},
		{name: "missing action", raw: `{"p":"123"}`},
		{name: "missing party id", raw: `{"a":"join"}`},
		{name: "empty party id", raw: `{"a":"join","p":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeControlID(tt.raw)
			assert.ErrorIs(t, err, ErrBadControlID)
		})
	}
}

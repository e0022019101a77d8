package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	data, err := Marshal(MsgSessionStarted, SessionStartedPayload{
		SessionID: "abc-123",
		Tier:      "pro",
		Voice:     "american-man",
		Language:  "en",
	})
	require.NoError(t, err)

	msgType, raw, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, MsgSessionStarted, msgType)

	payload, err := UnmarshalPayload[SessionStartedPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", payload.SessionID)
	assert.Equal(t, "pro", payload.Tier)
	assert.Equal(t, "en", payload.Language)
}

func TestMarshalNilPayload(t *testing.T) {
	data, err := Marshal(MsgBargeIn, nil)
	require.NoError(t, err)

	msgType, raw, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, MsgBargeIn, msgType)
	assert.Empty(t, raw)
}

func TestUnmarshalRejectsBadEnvelopes(t *testing.T) {
	_, _, err := Unmarshal([]byte("{not json"))
	assert.Error(t, err)

	_, _, err = Unmarshal([]byte(`{"payload": {}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing type")
}

func TestUnmarshalPayloadTypeMismatch(t *testing.T) {
	_, err := UnmarshalPayload[AudioHeaderPayload]([]byte(`{"sample_rate": "not a number"}`))
	assert.Error(t, err)
}

package events

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomChannelRoundTrip(t *testing.T) {
	id := uuid.New()
	got, ok := ParseRoomChannel(RoomChannel(id))
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = ParseRoomChannel(UserChannel(id))
	assert.False(t, ok)
	_, ok = ParseRoomChannel(ChannelPrefixRoom + "not-a-uuid")
	assert.False(t, ok)
}

func TestNewEnvelopeEmbedsPayload(t *testing.T) {
	env, err := NewEnvelope(EventTypeMessageRead, AggregateTypeRoom, "r1", map[string]int{"count": 2})
	require.NoError(t, err)

	data, err := env.Marshal()
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.JSONEq(t, `{"count":2}`, string(decoded["payload"]))
	assert.JSONEq(t, `"message.read"`, string(decoded["event_type"]))
}

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTripMsgpack(t *testing.T) {
	env := NewEnvelope(GroupChat, TypeChatMessage, ChatMessage{
		ID:        "msg_1",
		Sender:    "alice",
		Content:   "hello",
		Timestamp: 1700000000,
	})

	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, GroupChat, decoded.Group)
	assert.Equal(t, TypeChatMessage, decoded.Type)

	msg, err := DecodeBody[ChatMessage](decoded)
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, int64(1700000000), msg.Timestamp)
}

func TestEnvelopeRoundTripJSON(t *testing.T) {
	env := NewEnvelope(GroupML, TypeStreamUpdate, StreamUpdate{
		StreamID:   "stream_1",
		Sequence:   3,
		Prediction: 0.87,
		Label:      "CONFIRMED",
		Timestamp:  1700000000,
	})

	data, err := env.EncodeJSON()
	require.NoError(t, err)

	decoded, err := DecodeEnvelopeJSON(data)
	require.NoError(t, err)
	assert.Equal(t, TypeStreamUpdate, decoded.Type)

	update, err := DecodeBody[StreamUpdate](decoded)
	require.NoError(t, err)
	assert.Equal(t, 3, update.Sequence)
	assert.InDelta(t, 0.87, update.Prediction, 1e-9)
	assert.Equal(t, int64(1700000000), update.Timestamp)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte{0xc1})
	assert.Error(t, err)

	_, err = DecodeEnvelopeJSON([]byte("{not json"))
	assert.Error(t, err)
}

package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientEvent_Parse(t *testing.T) {
	raw := []byte(`{"id":7,"send_message":{"room_id":"general","content":"hello","reply_to":42}}`)

	var ev ClientEvent
	assert.NoError(t, json.Unmarshal(raw, &ev), "expected a valid frame to parse")
	assert.Equal(t, 7, ev.Id)
	assert.Nil(t, ev.JoinRoom, "expected only the sent payload to be set")
	if assert.NotNil(t, ev.SendMessage) {
		assert.Equal(t, "general", ev.SendMessage.RoomId)
		assert.Equal(t, "hello", ev.SendMessage.Content)
		if assert.NotNil(t, ev.SendMessage.ReplyTo) {
			assert.Equal(t, 42, *ev.SendMessage.ReplyTo)
		}
	}
}

func TestNewErrorEvent(t *testing.T) {
	ev := NewErrorEvent(3, "Room not found")

	assert.Equal(t, EventError, ev.Type)
	assert.Equal(t, 3, ev.Id)
	assert.Equal(t, "Room not found", ev.Error.Message)
	assert.False(t, ev.Timestamp.IsZero(), "expected error events to be stamped")

	raw, err := json.Marshal(ev)
	assert.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"error"`)
	assert.Contains(t, string(raw), `"message":"Room not found"`)
}

func TestServerEvent_MarkedCountSerializesZero(t *testing.T) {
	count := 0
	raw, err := json.Marshal(&ServerEvent{Type: EventRoomMarkedRead, MarkedCount: &count})

	assert.NoError(t, err)
	assert.Contains(t, string(raw), `"marked_count":0`, "expected a zero count to stay on the wire")
}

package server

import (
	"log"
	"testing"
	"time"

	"github.com/chatroomd/chatroomd/internal/testutil"
	"github.com/chatroomd/chatroomd/internal/types"
	"github.com/stretchr/testify/assert"
)

func newTestBroadcaster(t *testing.T) (*Broadcaster, *ConnectionRegistry, *RoomIndex) {
	registry := NewConnectionRegistry()
	index := NewRoomIndex()
	return NewBroadcaster(registry, index, testutil.TestLogger(t)), registry, index
}

func bufferedClient(user types.User, logger *log.Logger, size int) *Client {
	return &Client{
		log:   logger,
		user:  user,
		send:  make(chan *ServerEvent, size),
		rooms: make(map[string]struct{}),
		stop:  make(chan struct{}),
	}
}

func TestBroadcast_DeliversToAllHandles(t *testing.T) {
	b, registry, index := newTestBroadcaster(t)
	logger := testutil.TestLogger(t)

	alicePhone := bufferedClient(types.User{Id: 1, Username: "alice"}, logger, 4)
	aliceLaptop := bufferedClient(types.User{Id: 1, Username: "alice"}, logger, 4)
	bob := bufferedClient(types.User{Id: 2, Username: "bob"}, logger, 4)

	registry.Register(1, alicePhone)
	registry.Register(1, aliceLaptop)
	registry.Register(2, bob)
	index.Join("general", 1)
	index.Join("general", 2)

	b.Broadcast("general", &ServerEvent{Type: EventNewMessage, RoomId: "general"}, 0)

	for _, c := range []*Client{alicePhone, aliceLaptop, bob} {
		ev := receiveEvent(t, c)
		assert.Equal(t, EventNewMessage, ev.Type, "expected every handle to receive the event")
		assert.False(t, ev.Timestamp.IsZero(), "expected broadcast to stamp the event")
	}
}

func TestBroadcast_ExcludesUser(t *testing.T) {
	b, registry, index := newTestBroadcaster(t)
	logger := testutil.TestLogger(t)

	alice := bufferedClient(types.User{Id: 1, Username: "alice"}, logger, 4)
	bob := bufferedClient(types.User{Id: 2, Username: "bob"}, logger, 4)

	registry.Register(1, alice)
	registry.Register(2, bob)
	index.Join("general", 1)
	index.Join("general", 2)

	b.Broadcast("general", &ServerEvent{Type: EventUserTyping, RoomId: "general"}, 1)

	assertNoEvent(t, alice)
	ev := receiveEvent(t, bob)
	assert.Equal(t, EventUserTyping, ev.Type, "expected the other member to receive the event")
}

func TestBroadcast_SkipsMissingHandles(t *testing.T) {
	b, registry, index := newTestBroadcaster(t)
	logger := testutil.TestLogger(t)

	bob := bufferedClient(types.User{Id: 2, Username: "bob"}, logger, 4)
	registry.Register(2, bob)

	// user 1 is indexed but raced a disconnect out of the registry
	index.Join("general", 1)
	index.Join("general", 2)

	b.Broadcast("general", &ServerEvent{Type: EventNewMessage, RoomId: "general"}, 0)

	ev := receiveEvent(t, bob)
	assert.Equal(t, EventNewMessage, ev.Type, "expected delivery to proceed past the missing handle")
}

func TestBroadcast_SlowReceiverDoesNotBlock(t *testing.T) {
	b, registry, index := newTestBroadcaster(t)
	logger := testutil.TestLogger(t)

	slow := bufferedClient(types.User{Id: 1, Username: "slow"}, logger, 1)
	bob := bufferedClient(types.User{Id: 2, Username: "bob"}, logger, 4)

	registry.Register(1, slow)
	registry.Register(2, bob)
	index.Join("general", 1)
	index.Join("general", 2)

	slow.send <- &ServerEvent{Type: EventNewMessage} // fill the buffer

	done := make(chan struct{})
	go func() {
		b.Broadcast("general", &ServerEvent{Type: EventNewMessage, RoomId: "general"}, 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("broadcast blocked on a slow receiver")
	}

	ev := receiveEvent(t, bob)
	assert.Equal(t, EventNewMessage, ev.Type, "expected the healthy receiver to be served")
}

func TestSendTo(t *testing.T) {
	b, registry, _ := newTestBroadcaster(t)
	logger := testutil.TestLogger(t)

	phone := bufferedClient(types.User{Id: 1, Username: "alice"}, logger, 4)
	laptop := bufferedClient(types.User{Id: 1, Username: "alice"}, logger, 4)
	registry.Register(1, phone)
	registry.Register(1, laptop)

	b.SendTo(1, &ServerEvent{Type: EventUserRooms})

	assert.Equal(t, EventUserRooms, receiveEvent(t, phone).Type, "expected first handle to receive the event")
	assert.Equal(t, EventUserRooms, receiveEvent(t, laptop).Type, "expected second handle to receive the event")
}

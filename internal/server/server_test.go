package server

import (
	"context"
	"testing"
	"time"

	"github.com/chatroomd/chatroomd/internal/config"
	"github.com/chatroomd/chatroomd/internal/database"
	"github.com/chatroomd/chatroomd/internal/stats"
	"github.com/chatroomd/chatroomd/internal/testutil"
	"github.com/chatroomd/chatroomd/internal/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// newTestChatServer creates a ChatServer for tests. Counter updates are
// optional expectations so individual tests only assert what they care
// about.
func newTestChatServer(t *testing.T, db database.Repository, su *stats.MockStatsUpdater) *ChatServer {
	su.On("RegisterMetric", mock.Anything).Return().Times(4)
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()

	cfg := &config.Config{
		ServerAddr:   ":0",
		DatabaseDSN:  "test",
		StoreTimeout: time.Second,
		HistoryLimit: 20,
	}

	cs, err := NewChatServer(testutil.TestLogger(t), db, su, cfg)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

// newTestClient builds a connection-less client the way the pumps
// would, so handlers can be driven directly.
func newTestClient(cs *ChatServer, user types.User) *Client {
	return &Client{
		id:         uuid.NewString(),
		chatServer: cs,
		log:        cs.log,
		user:       user,
		send:       make(chan *ServerEvent, 256),
		rooms:      make(map[string]struct{}),
		stop:       make(chan struct{}),
	}
}

// connect wires a client into registry and index for roomIds without
// going through the store.
func connect(cs *ChatServer, c *Client, roomIds ...string) {
	cs.addClient(c)
	cs.registry.Register(c.user.Id, c)
	for _, roomId := range roomIds {
		cs.index.Join(roomId, c.user.Id)
		c.trackRoom(roomId)
	}
}

func receiveEvent(t *testing.T, c *Client) *ServerEvent {
	t.Helper()
	select {
	case ev := <-c.send:
		return ev
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.send:
		t.Fatalf("expected no event, got %q", ev.Type)
	default:
	}
}

func TestNewChatServer(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Return().Times(4)

	cfg := &config.Config{ServerAddr: ":0", DatabaseDSN: "test", StoreTimeout: time.Second, HistoryLimit: 20}
	cs, err := NewChatServer(testutil.TestLogger(t), db, su, cfg)
	assert.NoError(t, err, "expected no error creating ChatServer")
	assert.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.NotNil(t, cs.registry, "expected registry to be initialized")
	assert.NotNil(t, cs.index, "expected index to be initialized")
	assert.NotNil(t, cs.broadcaster, "expected broadcaster to be initialized")
	assert.NotNil(t, cs.rooms, "expected rooms map to be initialized")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
}

func TestNewChatServer_NilRepository(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	cfg := &config.Config{ServerAddr: ":0", DatabaseDSN: "test"}

	cs, err := NewChatServer(testutil.TestLogger(t), nil, su, cfg)
	assert.Error(t, err, "expected error for nil repository")
	assert.Nil(t, cs, "expected no ChatServer for nil repository")
}

func TestRoomHandle_LazyCreate(t *testing.T) {
	cs := newTestChatServer(t, &database.MockRepository{}, &stats.MockStatsUpdater{})

	assert.Nil(t, cs.loadedRoom("general"), "expected no handle before first use")

	rh := cs.roomHandle(7, "general")
	assert.Equal(t, 7, rh.id, "expected handle to keep the persistent id")
	assert.Same(t, rh, cs.roomHandle(7, "general"), "expected the same handle on repeat use")
	assert.Same(t, rh, cs.loadedRoom("general"), "expected loadedRoom to return the handle")
}

func TestShutdown(t *testing.T) {
	t.Run("no clients", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockRepository{}, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		assert.NoError(t, cs.Shutdown(ctx), "expected clean shutdown with no clients")
	})

	t.Run("disconnects remaining clients", func(t *testing.T) {
		db := &database.MockRepository{}
		cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})

		c := newTestClient(cs, types.User{Id: 1, Username: "alice"})
		connect(cs, c)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		assert.NoError(t, cs.Shutdown(ctx), "expected clean shutdown")
		assert.False(t, cs.registry.IsOnline(1), "expected client to be unregistered after shutdown")
	})
}

package server

import (
	"database/sql"
	"testing"

	"github.com/chatroomd/chatroomd/internal/database"
	"github.com/chatroomd/chatroomd/internal/stats"
	"github.com/chatroomd/chatroomd/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHandleConnect_ReplaysRooms(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})

	db.On("ListAccountRooms", mock.Anything, 1).Return([]database.RoomMembership{
		{
			Room:        database.Room{Id: 7, ExternalId: "general", Name: "General", Visibility: database.VisibilityPublic, Active: true},
			Role:        database.RoleMember,
			UnreadCount: 3,
		},
		{
			Room:        database.Room{Id: 8, ExternalId: "random", Name: "Random", Visibility: database.VisibilityPublic, Active: true},
			Role:        database.RoleAdmin,
			UnreadCount: 0,
		},
	}, nil)
	db.On("SetMembershipOnline", mock.Anything, 1, 7, true).Return(nil)
	db.On("SetMembershipOnline", mock.Anything, 1, 8, true).Return(nil)

	bob := newTestClient(cs, types.User{Id: 2, Username: "bob"})
	connect(cs, bob, "general")

	alice := newTestClient(cs, types.User{Id: 1, Username: "alice"})
	cs.addClient(alice)
	cs.handleConnect(alice)

	rooms := receiveEvent(t, alice)
	assert.Equal(t, EventUserRooms, rooms.Type, "expected the room list on connect")
	assert.Len(t, rooms.Rooms, 2)
	assert.Equal(t, "general", rooms.Rooms[0].Room.Id)
	assert.Equal(t, 3, rooms.Rooms[0].UnreadCount, "expected the unread count to be carried")
	assert.Equal(t, database.RoleAdmin, rooms.Rooms[1].Role)

	online := receiveEvent(t, bob)
	assert.Equal(t, EventUserOnline, online.Type, "expected members to be told the user came online")
	assert.Equal(t, 1, online.UserId)
	assert.Equal(t, "general", online.RoomId)

	assert.True(t, cs.registry.IsOnline(1), "expected the connection to be registered")
	assert.True(t, cs.index.IsIndexed("general", 1), "expected every persisted room to be indexed")
	assert.True(t, cs.index.IsIndexed("random", 1))
	assert.True(t, alice.inRoom("general"), "expected the connection to track its rooms")
	assert.True(t, alice.inRoom("random"))
}

func TestHandleConnect_StoreFailure(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})

	db.On("ListAccountRooms", mock.Anything, 1).Return([]database.RoomMembership{}, sql.ErrConnDone)

	alice := newTestClient(cs, types.User{Id: 1, Username: "alice"})
	cs.addClient(alice)
	cs.handleConnect(alice)

	assert.Equal(t, "Could not load your rooms, please reconnect", receiveError(t, alice))
	assert.True(t, cs.registry.IsOnline(1), "expected the connection to stay registered for a retry")
	assert.Empty(t, alice.joinedRooms(), "expected no rooms tracked after a failed replay")
}

func TestHandleConnect_SecondDeviceIsQuiet(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})

	db.On("ListAccountRooms", mock.Anything, 1).Return([]database.RoomMembership{
		{
			Room: database.Room{Id: 7, ExternalId: "general", Visibility: database.VisibilityPublic, Active: true},
			Role: database.RoleMember,
		},
	}, nil)

	bob := newTestClient(cs, types.User{Id: 2, Username: "bob"})
	connect(cs, bob, "general")

	phone := newTestClient(cs, types.User{Id: 1, Username: "alice"})
	connect(cs, phone, "general")

	laptop := newTestClient(cs, types.User{Id: 1, Username: "alice"})
	cs.addClient(laptop)
	cs.handleConnect(laptop)

	assert.Equal(t, EventUserRooms, receiveEvent(t, laptop).Type, "expected the room list for every device")
	assertNoEvent(t, bob)
	assert.Len(t, cs.registry.HandlesFor(1), 2, "expected both devices registered")
}

func TestHandleDisconnect_MultiDevice(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
	cs.roomHandle(7, "general")

	db.On("SetMembershipOnline", mock.Anything, 1, 7, false).Return(nil).Once()

	bob := newTestClient(cs, types.User{Id: 2, Username: "bob"})
	connect(cs, bob, "general")

	phone := newTestClient(cs, types.User{Id: 1, Username: "alice"})
	laptop := newTestClient(cs, types.User{Id: 1, Username: "alice"})
	connect(cs, phone, "general")
	connect(cs, laptop, "general")

	cs.handleDisconnect(phone)
	assertNoEvent(t, bob)
	assert.True(t, cs.registry.IsOnline(1), "expected the user to stay online via the other device")
	assert.True(t, cs.index.IsIndexed("general", 1), "expected the other device to hold the index entry")

	cs.handleDisconnect(laptop)
	offline := receiveEvent(t, bob)
	assert.Equal(t, EventUserOffline, offline.Type, "expected the final disconnect to announce offline")
	assert.Equal(t, 1, offline.UserId)
	assert.False(t, cs.registry.IsOnline(1))
	assert.False(t, cs.index.IsIndexed("general", 1))
}

func TestDisconnect_Idempotent(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	cs := newTestChatServer(t, db, &stats.MockStatsUpdater{})
	cs.roomHandle(7, "general")

	db.On("SetMembershipOnline", mock.Anything, 1, 7, false).Return(nil).Once()

	bob := newTestClient(cs, types.User{Id: 2, Username: "bob"})
	connect(cs, bob, "general")

	alice := newTestClient(cs, types.User{Id: 1, Username: "alice"})
	connect(cs, alice, "general")

	alice.disconnect()
	alice.disconnect()

	assert.Equal(t, EventUserOffline, receiveEvent(t, bob).Type)
	assertNoEvent(t, bob)
	assert.False(t, cs.registry.IsOnline(1), "expected the user offline after disconnect")
	assert.True(t, cs.registry.IsOnline(2), "expected other users untouched")
}

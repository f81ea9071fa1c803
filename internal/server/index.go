package server

import (
	"sort"
	"sync"
)

// RoomIndex tracks which users are currently active in which rooms.
// Entries are reference-counted per (room, user) so a user with two
// connections in a room stays indexed until the last one leaves.
// Invariant: every indexed user has a live entry in the connection
// registry; the index never outlives a user's registrations.
type RoomIndex struct {
	mu    sync.RWMutex
	rooms map[string]map[int]int
}

func NewRoomIndex() *RoomIndex {
	return &RoomIndex{
		rooms: make(map[string]map[int]int),
	}
}

// Join records one connection's presence and reports whether the user
// is newly present in the room.
func (idx *RoomIndex) Join(roomId string, userId int) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.rooms[roomId] == nil {
		idx.rooms[roomId] = make(map[int]int)
	}
	idx.rooms[roomId][userId]++

	return idx.rooms[roomId][userId] == 1
}

// Leave drops one connection's presence and reports whether the user is
// now absent from the room. Leaving a room the user is not indexed in
// is a no-op.
func (idx *RoomIndex) Leave(roomId string, userId int) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	users, ok := idx.rooms[roomId]
	if !ok || users[userId] == 0 {
		return false
	}

	users[userId]--
	if users[userId] > 0 {
		return false
	}

	delete(users, userId)
	if len(users) == 0 {
		delete(idx.rooms, roomId)
	}

	return true
}

func (idx *RoomIndex) MembersOf(roomId string) []int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	members := make([]int, 0, len(idx.rooms[roomId]))
	for userId := range idx.rooms[roomId] {
		members = append(members, userId)
	}
	sort.Ints(members)

	return members
}

func (idx *RoomIndex) IsIndexed(roomId string, userId int) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.rooms[roomId][userId] > 0
}

package server

import "log"

// Broadcaster delivers an event to every connection of every user the
// index lists for a room. Each target is attempted independently: a
// handle missing from the registry (racing disconnect) is skipped, and
// a slow receiver's full buffer drops the event for that handle only.
type Broadcaster struct {
	registry *ConnectionRegistry
	index    *RoomIndex
	log      *log.Logger
}

func NewBroadcaster(registry *ConnectionRegistry, index *RoomIndex, l *log.Logger) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		index:    index,
		log:      l,
	}
}

// Broadcast sends ev to the room's current members. excludeUserId
// skips every handle of that user; pass 0 to deliver to all.
func (b *Broadcaster) Broadcast(roomId string, ev *ServerEvent, excludeUserId int) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = Now()
	}

	for _, userId := range b.index.MembersOf(roomId) {
		if userId == excludeUserId {
			continue
		}

		for _, c := range b.registry.HandlesFor(userId) {
			c.queueEvent(ev)
		}
	}
}

// SendTo delivers ev to every handle of a single user.
func (b *Broadcaster) SendTo(userId int, ev *ServerEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = Now()
	}

	for _, c := range b.registry.HandlesFor(userId) {
		c.queueEvent(ev)
	}
}

package server

// Presence reconciliation: on connect a user's persisted rooms are
// replayed into the index and announced; on disconnect every index
// entry the connection contributed is unwound. Store failures on the
// disconnect path are logged and swallowed so in-memory cleanup always
// completes and no connection leaks survive a persistence hiccup.

import (
	"github.com/chatroomd/chatroomd/internal/types"
)

func (cs *ChatServer) handleConnect(c *Client) {
	cs.registry.Register(c.user.Id, c)
	cs.stats.Incr(metricConnections)

	ctx, cancel := cs.storeCtx()
	defer cancel()

	memberships, err := cs.db.ListAccountRooms(ctx, c.user.Id)
	if err != nil {
		cs.log.Printf("list rooms for %q: %v", c.user.Username, err)
		c.queueEvent(NewErrorEvent(0, "Could not load your rooms, please reconnect"))
		return
	}

	summaries := make([]types.RoomSummary, 0, len(memberships))
	for _, m := range memberships {
		cs.roomHandle(m.Room.Id, m.Room.ExternalId)

		first := cs.index.Join(m.Room.ExternalId, c.user.Id)
		c.trackRoom(m.Room.ExternalId)

		if first {
			if err := cs.db.SetMembershipOnline(ctx, c.user.Id, m.Room.Id, true); err != nil {
				cs.log.Printf("mark online in %q: %v", m.Room.ExternalId, err)
			}

			cs.broadcaster.Broadcast(m.Room.ExternalId, &ServerEvent{
				Type:   EventUserOnline,
				RoomId: m.Room.ExternalId,
				User:   &c.user,
				UserId: c.user.Id,
			}, c.user.Id)
		}

		summaries = append(summaries, types.RoomSummary{
			Room:        wireRoom(m.Room),
			Role:        m.Role,
			UnreadCount: m.UnreadCount,
		})
	}

	c.queueEvent(&ServerEvent{
		Type:      EventUserRooms,
		Timestamp: Now(),
		Rooms:     summaries,
	})
}

// handleDisconnect is idempotent per connection; Client.disconnect
// guards it with a sync.Once.
func (cs *ChatServer) handleDisconnect(c *Client) {
	ctx, cancel := cs.storeCtx()
	defer cancel()

	for _, roomId := range c.joinedRooms() {
		c.untrackRoom(roomId)

		gone := cs.index.Leave(roomId, c.user.Id)
		if !gone {
			continue
		}

		if rh := cs.loadedRoom(roomId); rh != nil {
			if err := cs.db.SetMembershipOnline(ctx, c.user.Id, rh.id, false); err != nil {
				cs.log.Printf("mark offline in %q: %v", roomId, err)
			}
		}

		cs.broadcaster.Broadcast(roomId, &ServerEvent{
			Type:   EventUserOffline,
			RoomId: roomId,
			UserId: c.user.Id,
		}, c.user.Id)
	}

	cs.registry.Unregister(c.user.Id, c)
	cs.removeClient(c)
	cs.stats.Decr(metricConnections)
}

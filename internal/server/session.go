package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/chatroomd/chatroomd/internal/database"
	"github.com/chatroomd/chatroomd/internal/types"
)

// dispatch routes one inbound event to its handler and converts any
// failure into a caller-directed error event. Handler failures never
// terminate the connection or leak to other connections.
func (cs *ChatServer) dispatch(c *Client, ev *ClientEvent) {
	var err error
	switch {
	case ev.JoinRoom != nil:
		err = cs.handleJoinRoom(c, ev)
	case ev.LeaveRoom != nil:
		err = cs.handleLeaveRoom(c, ev)
	case ev.SendMessage != nil:
		err = cs.handleSendMessage(c, ev)
	case ev.EditMessage != nil:
		err = cs.handleEditMessage(c, ev)
	case ev.DeleteMessage != nil:
		err = cs.handleDeleteMessage(c, ev)
	case ev.MarkRoomRead != nil:
		err = cs.handleMarkRoomRead(c, ev)
	case ev.TypingStart != nil:
		err = cs.handleTyping(c, ev.TypingStart, true)
	case ev.TypingStop != nil:
		err = cs.handleTyping(c, ev.TypingStop, false)
	case ev.GetOnlineUsers != nil:
		err = cs.handleGetOnlineUsers(c, ev)
	default:
		err = eventErr(ErrValidation, "Unknown event")
	}

	if err == nil {
		return
	}

	cs.stats.Incr(metricErrors)

	var evErr *eventError
	if errors.As(err, &evErr) {
		c.queueEvent(NewErrorEvent(ev.Id, evErr.msg))
		return
	}

	cs.log.Printf("event handler for %q: %v", c.user.Username, err)
	c.queueEvent(NewErrorEvent(ev.Id, "The service is temporarily unavailable, please retry"))
}

func (cs *ChatServer) handleJoinRoom(c *Client, ev *ClientEvent) error {
	ctx, cancel := cs.storeCtx()
	defer cancel()

	room, err := cs.db.GetRoomByExternalId(ctx, ev.JoinRoom.RoomId)
	if errors.Is(err, sql.ErrNoRows) {
		return eventErr(ErrNotFound, "Room not found")
	}
	if err != nil {
		return cs.storeErr("get room", err)
	}
	if !room.Active {
		return eventErr(ErrNotFound, "Room not found")
	}

	_, err = cs.db.GetMembership(ctx, c.user.Id, room.Id)
	if errors.Is(err, sql.ErrNoRows) {
		// Auto-admit only into public rooms with free capacity; private
		// and direct rooms require a persisted membership up front.
		if room.Visibility != database.VisibilityPublic {
			return eventErr(ErrAccessDenied, "Access denied to this room")
		}

		count, err := cs.db.CountRoomMembers(ctx, room.Id)
		if err != nil {
			return cs.storeErr("count members", err)
		}
		if room.Capacity > 0 && count >= room.Capacity {
			return eventErr(ErrAccessDenied, "Room is full")
		}

		if _, err := cs.db.CreateMembership(ctx, c.user.Id, room.Id, database.RoleMember); err != nil {
			return cs.storeErr("create membership", err)
		}
	} else if err != nil {
		return cs.storeErr("get membership", err)
	}

	cs.roomHandle(room.Id, room.ExternalId)

	// One index contribution per connection per room; rejoining on the
	// same connection must not inflate the refcount.
	var first bool
	if !c.inRoom(room.ExternalId) {
		first = cs.index.Join(room.ExternalId, c.user.Id)
		c.trackRoom(room.ExternalId)
	}

	if first {
		if err := cs.db.SetMembershipOnline(ctx, c.user.Id, room.Id, true); err != nil {
			cs.log.Printf("mark online in %q: %v", room.ExternalId, err)
		}
	}

	messages, err := cs.db.ListRecentMessages(ctx, room.Id, cs.historyLimit)
	if err != nil {
		return cs.storeErr("list messages", err)
	}

	wireMessages := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		wireMessages = append(wireMessages, wireMessage(m))
	}

	wr := wireRoom(room)
	c.queueEvent(&ServerEvent{
		Id:            ev.Id,
		Type:          EventRoomJoined,
		Timestamp:     Now(),
		Room:          &wr,
		Messages:      wireMessages,
		OnlineMembers: cs.onlineRoster(room.ExternalId),
	})

	if first {
		cs.broadcaster.Broadcast(room.ExternalId, &ServerEvent{
			Type:   EventUserJoinedRoom,
			RoomId: room.ExternalId,
			User:   &c.user,
			UserId: c.user.Id,
		}, c.user.Id)
	}

	return nil
}

func (cs *ChatServer) handleLeaveRoom(c *Client, ev *ClientEvent) error {
	roomId := ev.LeaveRoom.RoomId
	if !c.inRoom(roomId) {
		return eventErr(ErrValidation, "You have not joined this room")
	}

	c.untrackRoom(roomId)
	last := cs.index.Leave(roomId, c.user.Id)

	if last {
		if rh := cs.loadedRoom(roomId); rh != nil {
			ctx, cancel := cs.storeCtx()
			defer cancel()
			if err := cs.db.SetMembershipOnline(ctx, c.user.Id, rh.id, false); err != nil {
				cs.log.Printf("mark offline in %q: %v", roomId, err)
			}
		}
	}

	c.queueEvent(&ServerEvent{
		Id:        ev.Id,
		Type:      EventRoomLeft,
		Timestamp: Now(),
		RoomId:    roomId,
	})

	if last {
		cs.broadcaster.Broadcast(roomId, &ServerEvent{
			Type:   EventUserLeftRoom,
			RoomId: roomId,
			User:   &c.user,
			UserId: c.user.Id,
		}, c.user.Id)
	}

	return nil
}

func (cs *ChatServer) handleSendMessage(c *Client, ev *ClientEvent) error {
	p := ev.SendMessage

	content := strings.TrimSpace(p.Content)
	if content == "" {
		return eventErr(ErrValidation, "Message content cannot be empty")
	}

	msgType := p.MessageType
	if msgType == "" {
		msgType = database.MessageTypeText
	}
	switch msgType {
	case database.MessageTypeText, database.MessageTypeImage, database.MessageTypeFile, database.MessageTypeSystem:
	default:
		return eventErr(ErrValidation, "Unknown message type")
	}

	if !c.inRoom(p.RoomId) {
		return eventErr(ErrAccessDenied, "Join the room before sending messages")
	}

	rh := cs.loadedRoom(p.RoomId)
	if rh == nil {
		return eventErr(ErrNotFound, "Room not found")
	}

	// Serialize commit+broadcast per room so concurrent senders cannot
	// interleave delivery out of commit order.
	rh.mu.Lock()
	defer rh.mu.Unlock()

	ctx, cancel := cs.storeCtx()
	defer cancel()

	if p.ReplyTo != nil {
		parent, err := cs.db.GetMessage(ctx, *p.ReplyTo)
		if errors.Is(err, sql.ErrNoRows) {
			return eventErr(ErrNotFound, "Reply target not found")
		}
		if err != nil {
			return cs.storeErr("get reply target", err)
		}
		if parent.RoomId != rh.id || parent.Deleted {
			return eventErr(ErrValidation, "Reply must reference a message in the same room")
		}
	}

	msg, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		RoomId:    rh.id,
		AccountId: c.user.Id,
		Type:      msgType,
		Content:   content,
		ReplyToId: p.ReplyTo,
	})
	if err != nil {
		// No commit, no fan-out.
		return cs.storeErr("create message", err)
	}

	if err := cs.db.TouchRoom(ctx, rh.id); err != nil {
		cs.log.Printf("touch room %q: %v", rh.externalId, err)
	}

	cs.stats.Incr(metricMessages)

	wm := wireMessage(msg)
	if wm.RoomId == "" {
		wm.RoomId = rh.externalId
	}
	if wm.Sender.Username == "" {
		wm.Sender = c.user
	}

	cs.broadcaster.Broadcast(rh.externalId, &ServerEvent{
		Id:        ev.Id,
		Type:      EventNewMessage,
		Timestamp: Now(),
		RoomId:    rh.externalId,
		Message:   &wm,
	}, 0)

	return nil
}

func (cs *ChatServer) handleEditMessage(c *Client, ev *ClientEvent) error {
	p := ev.EditMessage

	content := strings.TrimSpace(p.Content)
	if content == "" {
		return eventErr(ErrValidation, "Message content cannot be empty")
	}

	ctx, cancel := cs.storeCtx()
	defer cancel()

	msg, err := cs.db.GetMessage(ctx, p.MessageId)
	if errors.Is(err, sql.ErrNoRows) {
		return eventErr(ErrNotFound, "Message not found")
	}
	if err != nil {
		return cs.storeErr("get message", err)
	}

	if msg.Deleted {
		return eventErr(ErrValidation, "Deleted messages cannot be edited")
	}
	if msg.AccountId != c.user.Id {
		return eventErr(ErrAccessDenied, "You can only edit your own messages")
	}

	rh := cs.roomHandle(msg.RoomId, msg.RoomExternalId)
	rh.mu.Lock()
	defer rh.mu.Unlock()

	updated, err := cs.db.UpdateMessageContent(ctx, p.MessageId, content)
	if err != nil {
		return cs.storeErr("update message", err)
	}

	wm := wireMessage(updated)
	cs.broadcaster.Broadcast(rh.externalId, &ServerEvent{
		Id:        ev.Id,
		Type:      EventMessageEdited,
		Timestamp: Now(),
		RoomId:    rh.externalId,
		Message:   &wm,
	}, 0)

	return nil
}

func (cs *ChatServer) handleDeleteMessage(c *Client, ev *ClientEvent) error {
	p := ev.DeleteMessage

	ctx, cancel := cs.storeCtx()
	defer cancel()

	msg, err := cs.db.GetMessage(ctx, p.MessageId)
	if errors.Is(err, sql.ErrNoRows) {
		return eventErr(ErrNotFound, "Message not found")
	}
	if err != nil {
		return cs.storeErr("get message", err)
	}

	// Deleting an already-deleted message is a no-op beyond not-found
	// handling; no second broadcast goes out.
	if msg.Deleted {
		return eventErr(ErrNotFound, "Message not found")
	}

	if msg.AccountId != c.user.Id {
		member, err := cs.db.GetMembership(ctx, c.user.Id, msg.RoomId)
		if errors.Is(err, sql.ErrNoRows) {
			return eventErr(ErrAccessDenied, "You don't have permission to delete this message")
		}
		if err != nil {
			return cs.storeErr("get membership", err)
		}
		if member.Role != database.RoleAdmin && member.Role != database.RoleModerator {
			return eventErr(ErrAccessDenied, "You don't have permission to delete this message")
		}
	}

	rh := cs.roomHandle(msg.RoomId, msg.RoomExternalId)
	rh.mu.Lock()
	defer rh.mu.Unlock()

	if err := cs.db.MarkMessageDeleted(ctx, p.MessageId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eventErr(ErrNotFound, "Message not found")
		}
		return cs.storeErr("delete message", err)
	}

	cs.broadcaster.Broadcast(rh.externalId, &ServerEvent{
		Id:        ev.Id,
		Type:      EventMessageDeleted,
		Timestamp: Now(),
		RoomId:    rh.externalId,
		MessageId: p.MessageId,
	}, 0)

	return nil
}

func (cs *ChatServer) handleMarkRoomRead(c *Client, ev *ClientEvent) error {
	ctx, cancel := cs.storeCtx()
	defer cancel()

	room, err := cs.db.GetRoomByExternalId(ctx, ev.MarkRoomRead.RoomId)
	if errors.Is(err, sql.ErrNoRows) {
		return eventErr(ErrNotFound, "Room not found")
	}
	if err != nil {
		return cs.storeErr("get room", err)
	}

	if _, err := cs.db.GetMembership(ctx, c.user.Id, room.Id); errors.Is(err, sql.ErrNoRows) {
		return eventErr(ErrAccessDenied, "Access denied to this room")
	} else if err != nil {
		return cs.storeErr("get membership", err)
	}

	count, err := cs.db.MarkRoomRead(ctx, c.user.Id, room.Id)
	if err != nil {
		return cs.storeErr("mark room read", err)
	}

	// Local acknowledgment only; read state is not broadcast.
	c.queueEvent(&ServerEvent{
		Id:          ev.Id,
		Type:        EventRoomMarkedRead,
		Timestamp:   Now(),
		RoomId:      room.ExternalId,
		MarkedCount: &count,
	})

	return nil
}

func (cs *ChatServer) handleTyping(c *Client, ref *RoomRef, start bool) error {
	if !c.inRoom(ref.RoomId) {
		return eventErr(ErrValidation, "You have not joined this room")
	}

	eventType := EventUserTyping
	if !start {
		eventType = EventUserStoppedTyping
	}

	// Ephemeral; nothing persisted, and never echoed to the sender.
	cs.broadcaster.Broadcast(ref.RoomId, &ServerEvent{
		Type:   eventType,
		RoomId: ref.RoomId,
		User:   &c.user,
		UserId: c.user.Id,
	}, c.user.Id)

	return nil
}

func (cs *ChatServer) handleGetOnlineUsers(c *Client, ev *ClientEvent) error {
	roomId := ev.GetOnlineUsers.RoomId

	if !c.inRoom(roomId) {
		ctx, cancel := cs.storeCtx()
		defer cancel()

		room, err := cs.db.GetRoomByExternalId(ctx, roomId)
		if errors.Is(err, sql.ErrNoRows) {
			return eventErr(ErrNotFound, "Room not found")
		}
		if err != nil {
			return cs.storeErr("get room", err)
		}

		if room.Visibility != database.VisibilityPublic {
			if _, err := cs.db.GetMembership(ctx, c.user.Id, room.Id); errors.Is(err, sql.ErrNoRows) {
				return eventErr(ErrAccessDenied, "Access denied to this room")
			} else if err != nil {
				return cs.storeErr("get membership", err)
			}
		}
	}

	c.queueEvent(&ServerEvent{
		Id:        ev.Id,
		Type:      EventOnlineUsers,
		Timestamp: Now(),
		RoomId:    roomId,
		Users:     cs.onlineRoster(roomId),
	})

	return nil
}

// onlineRoster resolves the index snapshot to user profiles via each
// member's live connections. Members racing a disconnect are skipped.
func (cs *ChatServer) onlineRoster(roomId string) []types.User {
	members := cs.index.MembersOf(roomId)

	users := make([]types.User, 0, len(members))
	for _, userId := range members {
		handles := cs.registry.HandlesFor(userId)
		if len(handles) == 0 {
			continue
		}
		users = append(users, handles[0].user)
	}

	return users
}

func (cs *ChatServer) storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return eventErr(ErrStoreUnavailable, "The service timed out, please retry")
	}
	return fmt.Errorf("%s: %w", op, err)
}

func wireRoom(room database.Room) types.Room {
	return types.Room{
		Id:         room.ExternalId,
		Name:       room.Name,
		Visibility: room.Visibility,
		Capacity:   room.Capacity,
		Active:     room.Active,
		CreatedAt:  room.CreatedAt,
		UpdatedAt:  room.UpdatedAt,
	}
}

func wireMessage(m database.Message) types.Message {
	wm := types.Message{
		Id:     m.Id,
		RoomId: m.RoomExternalId,
		Sender: types.User{
			Id:       m.AccountId,
			Username: m.Username,
		},
		Type:      m.Type,
		Content:   m.Content,
		Edited:    m.Edited,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if m.ReplyToId != nil {
		wm.ReplyTo = &types.MessageRef{
			Id:       *m.ReplyToId,
			Content:  m.ReplyContent,
			Username: m.ReplyUsername,
		}
	}

	return wm
}

package server

import (
	"time"

	"github.com/chatroomd/chatroomd/internal/types"
)

const (
	EventRoomJoined        = "room_joined"
	EventUserJoinedRoom    = "user_joined_room"
	EventRoomLeft          = "room_left"
	EventUserLeftRoom      = "user_left_room"
	EventNewMessage        = "new_message"
	EventMessageEdited     = "message_edited"
	EventMessageDeleted    = "message_deleted"
	EventRoomMarkedRead    = "room_marked_read"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventOnlineUsers       = "online_users"
	EventUserRooms         = "user_rooms"
	EventUserOnline        = "user_online"
	EventUserOffline       = "user_offline"
	EventError             = "error"
)

// ClientEvent is one inbound frame. Exactly one payload field is set;
// Id is an optional client correlation id echoed on direct replies.
type ClientEvent struct {
	Id             int            `json:"id,omitempty"`
	JoinRoom       *RoomRef       `json:"join_room,omitempty"`
	LeaveRoom      *RoomRef       `json:"leave_room,omitempty"`
	SendMessage    *SendMessage   `json:"send_message,omitempty"`
	EditMessage    *EditMessage   `json:"edit_message,omitempty"`
	DeleteMessage  *DeleteMessage `json:"delete_message,omitempty"`
	MarkRoomRead   *RoomRef       `json:"mark_room_read,omitempty"`
	TypingStart    *RoomRef       `json:"typing_start,omitempty"`
	TypingStop     *RoomRef       `json:"typing_stop,omitempty"`
	GetOnlineUsers *RoomRef       `json:"get_online_users,omitempty"`
}

type RoomRef struct {
	RoomId string `json:"room_id"`
}

type SendMessage struct {
	RoomId      string `json:"room_id"`
	Content     string `json:"content"`
	MessageType string `json:"message_type,omitempty"`
	ReplyTo     *int   `json:"reply_to,omitempty"`
}

type EditMessage struct {
	MessageId int    `json:"message_id"`
	Content   string `json:"content"`
}

type DeleteMessage struct {
	MessageId int `json:"message_id"`
}

// ServerEvent is one outbound frame, discriminated by Type.
type ServerEvent struct {
	Id            int                 `json:"id,omitempty"`
	Type          string              `json:"type"`
	Timestamp     time.Time           `json:"timestamp"`
	RoomId        string              `json:"room_id,omitempty"`
	Room          *types.Room         `json:"room,omitempty"`
	Message       *types.Message      `json:"message,omitempty"`
	Messages      []types.Message     `json:"messages,omitempty"`
	OnlineMembers []types.User        `json:"online_members,omitempty"`
	Users         []types.User        `json:"users,omitempty"`
	Rooms         []types.RoomSummary `json:"rooms,omitempty"`
	User          *types.User         `json:"user,omitempty"`
	UserId        int                 `json:"user_id,omitempty"`
	MessageId     int                 `json:"message_id,omitempty"`
	MarkedCount   *int                `json:"marked_count,omitempty"`
	Error         *ErrorInfo          `json:"error,omitempty"`
}

type ErrorInfo struct {
	Message string `json:"message"`
}

func NewErrorEvent(id int, msg string) *ServerEvent {
	return &ServerEvent{
		Id:        id,
		Type:      EventError,
		Timestamp: Now(),
		Error:     &ErrorInfo{Message: msg},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

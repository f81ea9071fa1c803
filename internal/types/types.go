package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Room is the client-facing view of a room. Id is the room's external
// identifier; internal database ids never cross the wire.
type Room struct {
	Id         string    `json:"id"`
	Name       string    `json:"name"`
	Visibility string    `json:"visibility"`
	Capacity   int       `json:"capacity,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// RoomSummary is one entry of the room list sent to a client on connect.
type RoomSummary struct {
	Room        Room   `json:"room"`
	Role        string `json:"role"`
	UnreadCount int    `json:"unread_count"`
}

type Message struct {
	Id        int         `json:"id"`
	RoomId    string      `json:"room_id"`
	Sender    User        `json:"sender"`
	Type      string      `json:"type"`
	Content   string      `json:"content"`
	ReplyTo   *MessageRef `json:"reply_to,omitempty"`
	Edited    bool        `json:"edited"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at,omitempty"`
}

// MessageRef is the preview of a message another message replies to.
type MessageRef struct {
	Id       int    `json:"id"`
	Content  string `json:"content"`
	Username string `json:"username"`
}

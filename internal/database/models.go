package database

import "time"

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	VisibilityDirect  = "direct"

	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"

	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	Id         int
	ExternalId string
	Name       string
	Visibility string
	Capacity   int
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Membership struct {
	Id         int
	RoomId     int
	AccountId  int
	Username   string
	Role       string
	Online     bool
	JoinedAt   time.Time
	LastSeenAt time.Time
}

type Message struct {
	Id             int
	RoomId         int
	RoomExternalId string
	AccountId      int
	Username       string
	Type           string
	Content        string
	ReplyToId      *int
	ReplyContent   string
	ReplyUsername  string
	Edited         bool
	Deleted        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoomMembership pairs a room with one account's membership and unread
// count, as listed on connect.
type RoomMembership struct {
	Room        Room
	Role        string
	UnreadCount int
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateRoomParams struct {
	Name       string
	ExternalId string
	Visibility string
	Capacity   int
	OwnerId    int
}

type CreateMessageParams struct {
	RoomId    int
	AccountId int
	Type      string
	Content   string
	ReplyToId *int
}

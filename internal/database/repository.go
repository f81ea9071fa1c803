package database

import "context"

type Repository interface {
	Ping(ctx context.Context) error

	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	GetAccountById(ctx context.Context, accountId int) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)

	CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error)
	GetRoomByExternalId(ctx context.Context, externalId string) (Room, error)
	TouchRoom(ctx context.Context, roomId int) error

	CreateMembership(ctx context.Context, accountId, roomId int, role string) (Membership, error)
	GetMembership(ctx context.Context, accountId, roomId int) (Membership, error)
	ListRoomMembers(ctx context.Context, roomId int) ([]Membership, error)
	CountRoomMembers(ctx context.Context, roomId int) (int, error)
	ListAccountRooms(ctx context.Context, accountId int) ([]RoomMembership, error)
	SetMembershipOnline(ctx context.Context, accountId, roomId int, online bool) error

	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessage(ctx context.Context, messageId int) (Message, error)
	UpdateMessageContent(ctx context.Context, messageId int, content string) (Message, error)
	MarkMessageDeleted(ctx context.Context, messageId int) error
	ListRecentMessages(ctx context.Context, roomId, limit int) ([]Message, error)

	MarkRoomRead(ctx context.Context, accountId, roomId int) (int, error)
}

package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetAccountById(ctx context.Context, accountId int) (Account, error) {
	args := m.Called(ctx, accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) CreateRoom(ctx context.Context, params CreateRoomParams) (Room, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) GetRoomByExternalId(ctx context.Context, externalId string) (Room, error) {
	args := m.Called(ctx, externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockRepository) TouchRoom(ctx context.Context, roomId int) error {
	args := m.Called(ctx, roomId)
	return args.Error(0)
}
func (m *MockRepository) CreateMembership(ctx context.Context, accountId, roomId int, role string) (Membership, error) {
	args := m.Called(ctx, accountId, roomId, role)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockRepository) GetMembership(ctx context.Context, accountId, roomId int) (Membership, error) {
	args := m.Called(ctx, accountId, roomId)
	return args.Get(0).(Membership), args.Error(1)
}
func (m *MockRepository) ListRoomMembers(ctx context.Context, roomId int) ([]Membership, error) {
	args := m.Called(ctx, roomId)
	return args.Get(0).([]Membership), args.Error(1)
}
func (m *MockRepository) CountRoomMembers(ctx context.Context, roomId int) (int, error) {
	args := m.Called(ctx, roomId)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) ListAccountRooms(ctx context.Context, accountId int) ([]RoomMembership, error) {
	args := m.Called(ctx, accountId)
	return args.Get(0).([]RoomMembership), args.Error(1)
}
func (m *MockRepository) SetMembershipOnline(ctx context.Context, accountId, roomId int, online bool) error {
	args := m.Called(ctx, accountId, roomId, online)
	return args.Error(0)
}
func (m *MockRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessage(ctx context.Context, messageId int) (Message, error) {
	args := m.Called(ctx, messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) UpdateMessageContent(ctx context.Context, messageId int, content string) (Message, error) {
	args := m.Called(ctx, messageId, content)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) MarkMessageDeleted(ctx context.Context, messageId int) error {
	args := m.Called(ctx, messageId)
	return args.Error(0)
}
func (m *MockRepository) ListRecentMessages(ctx context.Context, roomId, limit int) ([]Message, error) {
	args := m.Called(ctx, roomId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) MarkRoomRead(ctx context.Context, accountId, roomId int) (int, error) {
	args := m.Called(ctx, accountId, roomId)
	return args.Int(0), args.Error(1)
}

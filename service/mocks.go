package service

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"lobbybot/automod"
)

// MockPlatform is a mock implementation of Platform for testing
type MockPlatform struct {
	mock.Mock
}

func (m *MockPlatform) CreateVoiceRoom(ctx context.Context, guildID int64, req CreateRoomRequest) (int64, error) {
	args := m.Called(ctx, guildID, req)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlatform) DeleteRoom(ctx context.Context, channelID int64) error {
	args := m.Called(ctx, channelID)
	return args.Error(0)
}

func (m *MockPlatform) MoveUser(ctx context.Context, guildID, userID int64, channelID *int64) error {
	args := m.Called(ctx, guildID, userID, channelID)
	return args.Error(0)
}

func (m *MockPlatform) GrantOwnerPermissions(ctx context.Context, channelID, userID int64) error {
	args := m.Called(ctx, channelID, userID)
	return args.Error(0)
}

func (m *MockPlatform) RevokeOwnerPermissions(ctx context.Context, channelID, userID int64) error {
	args := m.Called(ctx, channelID, userID)
	return args.Error(0)
}

func (m *MockPlatform) RoomOccupants(ctx context.Context, guildID, channelID int64) ([]int64, error) {
	args := m.Called(ctx, guildID, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockPlatform) SendMessage(ctx context.Context, channelID int64, msg Message) (int64, error) {
	args := m.Called(ctx, channelID, msg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPlatform) ModifyMessage(ctx context.Context, channelID, messageID int64, msg Message) error {
	args := m.Called(ctx, channelID, messageID, msg)
	return args.Error(0)
}

func (m *MockPlatform) RenameRoom(ctx context.Context, channelID int64, name string) error {
	args := m.Called(ctx, channelID, name)
	return args.Error(0)
}

func (m *MockPlatform) SetRoomUserLimit(ctx context.Context, channelID int64, limit int) error {
	args := m.Called(ctx, channelID, limit)
	return args.Error(0)
}

func (m *MockPlatform) AutoModRules(ctx context.Context, guildID int64) ([]automod.Rule, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]automod.Rule), args.Error(1)
}

// KeyLocalizer renders the locale key and arguments verbatim so tests can
// assert which message was selected without loading translation files.
type KeyLocalizer struct{}

func (KeyLocalizer) Get(tag, key string, args ...any) string {
	if len(args) == 0 {
		return key
	}
	return key + fmt.Sprint(args...)
}

func (KeyLocalizer) Tags() []string { return []string{"en", "es"} }

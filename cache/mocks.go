package cache

import (
	"context"

	"github.com/stretchr/testify/mock"

	"lobbybot/models"
)

// MockGuildConfigStore is a mock implementation of GuildConfigStore
type MockGuildConfigStore struct {
	mock.Mock
}

func (m *MockGuildConfigStore) Get(ctx context.Context, guildID int64) (*models.GuildConfig, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildConfig), args.Error(1)
}

func (m *MockGuildConfigStore) Create(ctx context.Context, cfg *models.GuildConfig) (bool, error) {
	args := m.Called(ctx, cfg)
	return args.Bool(0), args.Error(1)
}

func (m *MockGuildConfigStore) Update(ctx context.Context, cfg *models.GuildConfig) error {
	args := m.Called(ctx, cfg)
	return args.Error(0)
}

func (m *MockGuildConfigStore) Delete(ctx context.Context, guildID int64) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}

// MockChannelStore is a mock implementation of ChannelStore
type MockChannelStore struct {
	mock.Mock
}

func (m *MockChannelStore) Create(ctx context.Context, ch *models.DynamicChannel) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

func (m *MockChannelStore) GetByID(ctx context.Context, channelID int64) (*models.DynamicChannel, error) {
	args := m.Called(ctx, channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DynamicChannel), args.Error(1)
}

func (m *MockChannelStore) GetByOwner(ctx context.Context, guildID, ownerID int64) (*models.DynamicChannel, error) {
	args := m.Called(ctx, guildID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DynamicChannel), args.Error(1)
}

func (m *MockChannelStore) Update(ctx context.Context, ch *models.DynamicChannel) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

func (m *MockChannelStore) SwapOwner(ctx context.Context, channelID, fromOwner, toOwner int64) (bool, error) {
	args := m.Called(ctx, channelID, fromOwner, toOwner)
	return args.Bool(0), args.Error(1)
}

func (m *MockChannelStore) Delete(ctx context.Context, channelID int64) error {
	args := m.Called(ctx, channelID)
	return args.Error(0)
}

func (m *MockChannelStore) List(ctx context.Context) ([]*models.DynamicChannel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DynamicChannel), args.Error(1)
}

func (m *MockChannelStore) CountByGuild(ctx context.Context, guildID int64) (int, error) {
	args := m.Called(ctx, guildID)
	return args.Int(0), args.Error(1)
}

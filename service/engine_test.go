package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lobbybot/automod"
	"lobbybot/cache"
	"lobbybot/events"
	"lobbybot/gracetimer"
	"lobbybot/models"
	"lobbybot/repository"
)

// memChannelStore is an in-memory ChannelStore with the same conditional
// semantics as the real repository, including the one-channel-per-owner
// constraint. Used where tests need real swap semantics under concurrency.
type memChannelStore struct {
	mu       sync.Mutex
	channels map[int64]models.DynamicChannel
}

func newMemChannelStore() *memChannelStore {
	return &memChannelStore{channels: make(map[int64]models.DynamicChannel)}
}

func (s *memChannelStore) Create(ctx context.Context, ch *models.DynamicChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[ch.ChannelID]; ok {
		return repository.ErrChannelExists
	}
	for _, existing := range s.channels {
		if existing.GuildID == ch.GuildID && existing.OwnerID == ch.OwnerID {
			return repository.ErrChannelExists
		}
	}
	s.channels[ch.ChannelID] = *ch
	return nil
}

func (s *memChannelStore) GetByID(ctx context.Context, channelID int64) (*models.DynamicChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[channelID]; ok {
		return &ch, nil
	}
	return nil, nil
}

func (s *memChannelStore) GetByOwner(ctx context.Context, guildID, ownerID int64) (*models.DynamicChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.channels {
		if ch.GuildID == guildID && ch.OwnerID == ownerID {
			out := ch
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memChannelStore) Update(ctx context.Context, ch *models.DynamicChannel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ChannelID] = *ch
	return nil
}

func (s *memChannelStore) SwapOwner(ctx context.Context, channelID, fromOwner, toOwner int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok || ch.OwnerID != fromOwner {
		return false, nil
	}
	for id, other := range s.channels {
		if id != channelID && other.GuildID == ch.GuildID && other.OwnerID == toOwner {
			return false, repository.ErrChannelExists
		}
	}
	ch.OwnerID = toOwner
	s.channels[channelID] = ch
	return true, nil
}

func (s *memChannelStore) Delete(ctx context.Context, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
	return nil
}

func (s *memChannelStore) List(ctx context.Context) ([]*models.DynamicChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.DynamicChannel, 0, len(s.channels))
	for _, ch := range s.channels {
		c := ch
		out = append(out, &c)
	}
	return out, nil
}

func (s *memChannelStore) CountByGuild(ctx context.Context, guildID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, ch := range s.channels {
		if ch.GuildID == guildID {
			count++
		}
	}
	return count, nil
}

type engineFixture struct {
	engine      *Engine
	platform    *MockPlatform
	store       *memChannelStore
	configStore *cache.MockGuildConfigStore
	timers      *gracetimer.Registry
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	platform := &MockPlatform{}
	store := newMemChannelStore()
	configStore := &cache.MockGuildConfigStore{}
	timers := gracetimer.New()
	t.Cleanup(timers.Close)
	engine := NewEngine(
		platform,
		cache.NewGuildConfigCache(configStore, nil),
		cache.NewChannelCache(store, nil),
		timers,
		KeyLocalizer{},
		events.NewBus(),
	)
	return &engineFixture{
		engine:      engine,
		platform:    platform,
		store:       store,
		configStore: configStore,
		timers:      timers,
	}
}

func i64(v int64) *int64 { return &v }
func i32(v int32) *int32 { return &v }
func b(v bool) *bool     { return &v }

func testConfig() *models.GuildConfig {
	return &models.GuildConfig{
		GuildID:         1,
		CreateChannelID: i64(100),
		PreferredLocale: "en",
	}
}

func testMember(id int64) Member {
	return Member{ID: id, DisplayName: "user"}
}

func TestHandleJoin_ProvisionsChannel(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	member := testMember(10)

	f.platform.On("CreateVoiceRoom", mock.Anything, int64(1), mock.MatchedBy(func(req CreateRoomRequest) bool {
		return req.TriggerChannelID == 100 && req.OwnerID == 10 && req.UserLimit == models.DefaultLobbySize
	})).Return(int64(555), nil)
	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), i64(555)).Return(nil)
	f.platform.On("SendMessage", mock.Anything, int64(555), mock.Anything).Return(int64(900), nil)

	err := f.engine.HandleJoin(ctx, cfg, member, 100)
	require.NoError(t, err)

	ch, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, int64(10), ch.OwnerID)
	assert.Equal(t, int64(10), ch.CreatorID)
	require.NotNil(t, ch.PanelMessageID)
	assert.Equal(t, int64(900), *ch.PanelMessageID)
	f.platform.AssertExpectations(t)
}

func TestHandleJoin_IgnoresOtherChannels(t *testing.T) {
	f := newEngineFixture(t)
	cfg := testConfig()

	err := f.engine.HandleJoin(context.Background(), cfg, testMember(10), 999)
	require.NoError(t, err)
	f.platform.AssertNotCalled(t, "CreateVoiceRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleJoin_DeafenedUserDisconnected(t *testing.T) {
	f := newEngineFixture(t)
	cfg := testConfig()
	member := testMember(10)
	member.Deafened = true

	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), (*int64)(nil)).Return(nil)

	err := f.engine.HandleJoin(context.Background(), cfg, member, 100)
	require.NoError(t, err)

	count, _ := f.store.CountByGuild(context.Background(), 1)
	assert.Zero(t, count)
	f.platform.AssertExpectations(t)
}

func TestHandleJoin_DeafenedAllowedWhenConfigured(t *testing.T) {
	f := newEngineFixture(t)
	cfg := testConfig()
	cfg.DenyDeafenedOwner = b(false)
	member := testMember(10)
	member.Deafened = true

	f.platform.On("CreateVoiceRoom", mock.Anything, int64(1), mock.Anything).Return(int64(555), nil)
	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), i64(555)).Return(nil)
	f.platform.On("SendMessage", mock.Anything, int64(555), mock.Anything).Return(int64(900), nil)

	err := f.engine.HandleJoin(context.Background(), cfg, member, 100)
	require.NoError(t, err)
	f.platform.AssertExpectations(t)
}

func TestHandleJoin_RoleGate(t *testing.T) {
	f := newEngineFixture(t)
	cfg := testConfig()
	cfg.CanOwnRoleIDs = []int64{77}
	member := testMember(10)

	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), (*int64)(nil)).Return(nil)

	err := f.engine.HandleJoin(context.Background(), cfg, member, 100)
	require.NoError(t, err)
	f.platform.AssertNotCalled(t, "CreateVoiceRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleJoin_ReusesExistingChannel(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	existing := &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10, PanelMessageID: i64(900)}
	require.NoError(t, f.store.Create(ctx, existing))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{20}, nil)
	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), i64(555)).Return(nil)

	err := f.engine.HandleJoin(ctx, cfg, testMember(10), 100)
	require.NoError(t, err)

	f.platform.AssertNotCalled(t, "CreateVoiceRoom", mock.Anything, mock.Anything, mock.Anything)
	f.platform.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleJoin_RejoinCancelsGraceTimer(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	existing := &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10, PanelMessageID: i64(900)}
	require.NoError(t, f.store.Create(ctx, existing))
	started := f.timers.StartTimer(555, gracetimer.Payload{ChannelID: 555}, time.Hour, func(gracetimer.Payload) {})
	require.True(t, started)

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{20}, nil)
	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), i64(555)).Return(nil)

	require.NoError(t, f.engine.HandleJoin(ctx, cfg, testMember(10), 100))

	// The engine already stopped it
	assert.False(t, f.timers.StopTimer(555))
}

func TestHandleJoin_EvictsStaleRecord(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	stale := &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}
	require.NoError(t, f.store.Create(ctx, stale))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return(nil, ErrGone)
	f.platform.On("CreateVoiceRoom", mock.Anything, int64(1), mock.Anything).Return(int64(556), nil)
	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), i64(556)).Return(nil)
	f.platform.On("SendMessage", mock.Anything, int64(556), mock.Anything).Return(int64(901), nil)

	require.NoError(t, f.engine.HandleJoin(ctx, cfg, testMember(10), 100))

	gone, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	assert.Nil(t, gone)
	replacement, err := f.store.GetByID(ctx, 556)
	require.NoError(t, err)
	require.NotNil(t, replacement)
}

func TestHandleJoin_BlockedNameDisconnects(t *testing.T) {
	f := newEngineFixture(t)
	cfg := testConfig()
	cfg.AutomodEnabled = b(true)
	cfg.AutomodRuleIDs = []int64{5}
	cfg.AutomodLogChannelID = i64(300)

	rules := []automod.Rule{{
		ID:       5,
		Name:     "bad words",
		Enabled:  true,
		Keyword:  true,
		Keywords: []string{"*channel*"},
	}}
	f.platform.On("AutoModRules", mock.Anything, int64(1)).Return(rules, nil)
	f.platform.On("SendMessage", mock.Anything, int64(300), mock.Anything).Return(int64(901), nil)
	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), (*int64)(nil)).Return(nil)

	err := f.engine.HandleJoin(context.Background(), cfg, testMember(10), 100)
	require.NoError(t, err)

	f.platform.AssertNotCalled(t, "CreateVoiceRoom", mock.Anything, mock.Anything, mock.Anything)
	f.platform.AssertExpectations(t)
}

func TestHandleJoin_GuildChannelLimit(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxChannels = i32(1)
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 554, GuildID: 1, CreatorID: 9, OwnerID: 9}))

	f.platform.On("MoveUser", mock.Anything, int64(1), int64(10), (*int64)(nil)).Return(nil)

	require.NoError(t, f.engine.HandleJoin(ctx, cfg, testMember(10), 100))
	f.platform.AssertNotCalled(t, "CreateVoiceRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleLeave_EmptyChannelTornDown(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{}, nil)
	f.platform.On("DeleteRoom", mock.Anything, int64(555)).Return(nil)

	require.NoError(t, f.engine.HandleLeave(ctx, cfg, testMember(10), 555))

	ch, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	assert.Nil(t, ch)
	f.platform.AssertExpectations(t)
}

func TestHandleLeave_RoomAlreadyGone(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return(nil, ErrGone)
	f.platform.On("DeleteRoom", mock.Anything, int64(555)).Return(ErrGone)

	require.NoError(t, f.engine.HandleLeave(ctx, cfg, testMember(10), 555))

	ch, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	assert.Nil(t, ch)
}

func TestHandleLeave_UnknownChannelIgnored(t *testing.T) {
	f := newEngineFixture(t)
	require.NoError(t, f.engine.HandleLeave(context.Background(), testConfig(), testMember(10), 42))
	f.platform.AssertNotCalled(t, "RoomOccupants", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleLeave_OwnerLeftStartsGraceTimer(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	cfg.AbandonedGraceSecs = i32(3600)
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{20}, nil)

	require.NoError(t, f.engine.HandleLeave(ctx, cfg, testMember(10), 555))

	// A timer is registered for the channel
	assert.True(t, f.timers.StopTimer(555))
}

func TestHandleLeave_NonOwnerLeftNoTimer(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{10}, nil)

	require.NoError(t, f.engine.HandleLeave(ctx, cfg, testMember(20), 555))
	assert.False(t, f.timers.StopTimer(555))
}

func TestPostClaimPrompt(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("SendMessage", mock.Anything, int64(555), mock.MatchedBy(func(msg Message) bool {
		return len(msg.Buttons) == 1 && msg.Buttons[0].CustomID == "claim_button:555"
	})).Return(int64(902), nil)

	f.engine.postClaimPrompt(gracetimer.Payload{ChannelID: 555, GuildID: 1, OwnerID: 10, Locale: "en"})
	f.platform.AssertExpectations(t)
}

func TestPostClaimPrompt_SkipsClaimedChannel(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 20}))

	// Payload still names the previous owner, so the prompt is stale
	f.engine.postClaimPrompt(gracetimer.Payload{ChannelID: 555, GuildID: 1, OwnerID: 10, Locale: "en"})
	f.platform.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestClaim_Success(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10, PanelMessageID: i64(900)}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{20, 30}, nil)
	f.platform.On("RevokeOwnerPermissions", mock.Anything, int64(555), int64(10)).Return(nil)
	f.platform.On("GrantOwnerPermissions", mock.Anything, int64(555), int64(20)).Return(nil)
	f.platform.On("ModifyMessage", mock.Anything, int64(555), int64(900), mock.Anything).Return(nil)

	rej, err := f.engine.Claim(ctx, cfg, testMember(20), 555)
	require.NoError(t, err)
	assert.Nil(t, rej)

	ch, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, int64(20), ch.OwnerID)
	assert.Equal(t, int64(10), ch.CreatorID)
	f.platform.AssertExpectations(t)
}

func TestClaim_OwnerStillPresent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{10, 20}, nil)

	rej, err := f.engine.Claim(ctx, testConfig(), testMember(20), 555)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectNotAbandoned, rej.Reason)
}

func TestClaim_ClaimantNotPresent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{30}, nil)

	rej, err := f.engine.Claim(ctx, testConfig(), testMember(20), 555)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectNotInChannel, rej.Reason)
}

func TestClaim_ClaimantAlreadyOwnsAnother(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 556, GuildID: 1, CreatorID: 20, OwnerID: 20}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{20}, nil)

	rej, err := f.engine.Claim(ctx, testConfig(), testMember(20), 555)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectAlreadyOwner, rej.Reason)
}

func TestClaim_UnknownChannel(t *testing.T) {
	f := newEngineFixture(t)
	rej, err := f.engine.Claim(context.Background(), testConfig(), testMember(20), 42)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectUnknownChannel, rej.Reason)
}

func TestClaim_ConcurrentClaimsExactlyOneWinner(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10, PanelMessageID: i64(900)}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{20, 30}, nil)
	f.platform.On("RevokeOwnerPermissions", mock.Anything, int64(555), mock.Anything).Return(nil)
	f.platform.On("GrantOwnerPermissions", mock.Anything, int64(555), mock.Anything).Return(nil)
	f.platform.On("ModifyMessage", mock.Anything, int64(555), int64(900), mock.Anything).Return(nil)

	claimants := []int64{20, 30}
	rejections := make([]*Rejection, len(claimants))
	errs := make([]error, len(claimants))

	var wg sync.WaitGroup
	for i, id := range claimants {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			rejections[i], errs[i] = f.engine.Claim(ctx, cfg, testMember(id), 555)
		}(i, id)
	}
	wg.Wait()

	winners := 0
	for i := range claimants {
		require.NoError(t, errs[i])
		if rejections[i] == nil {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	ch, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	assert.Contains(t, claimants, ch.OwnerID)
}

func TestTransfer_Success(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10, PanelMessageID: i64(900)}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{10, 20}, nil)
	f.platform.On("RevokeOwnerPermissions", mock.Anything, int64(555), int64(10)).Return(nil)
	f.platform.On("GrantOwnerPermissions", mock.Anything, int64(555), int64(20)).Return(nil)
	f.platform.On("ModifyMessage", mock.Anything, int64(555), int64(900), mock.Anything).Return(nil)

	rej, err := f.engine.Transfer(ctx, cfg, testMember(10), testMember(20), 555)
	require.NoError(t, err)
	assert.Nil(t, rej)

	ch, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, int64(20), ch.OwnerID)
}

func TestTransfer_CallerNotOwner(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	rej, err := f.engine.Transfer(ctx, testConfig(), testMember(30), testMember(20), 555)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectNotOwner, rej.Reason)
}

func TestTransfer_TargetAbsent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{10}, nil)

	rej, err := f.engine.Transfer(ctx, testConfig(), testMember(10), testMember(20), 555)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectTargetAbsent, rej.Reason)
}

func TestTransfer_IneligibleTarget(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{10, 20}, nil)

	target := testMember(20)
	target.Muted = true
	rej, err := f.engine.Transfer(ctx, testConfig(), testMember(10), target, 555)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectMuted, rej.Reason)
}

func TestReapOrphan_MissingRoom(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return(nil, ErrGone)
	f.platform.On("DeleteRoom", mock.Anything, int64(555)).Return(ErrGone)

	reaped, err := f.engine.ReapOrphan(ctx, 555)
	require.NoError(t, err)
	assert.True(t, reaped)

	ch, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	assert.Nil(t, ch)
}

func TestReapOrphan_OccupiedRoomKept(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RoomOccupants", mock.Anything, int64(1), int64(555)).Return([]int64{10}, nil)

	reaped, err := f.engine.ReapOrphan(ctx, 555)
	require.NoError(t, err)
	assert.False(t, reaped)
	f.platform.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)
}

func TestPurgeGuild(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 556, GuildID: 1, CreatorID: 11, OwnerID: 11}))
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 777, GuildID: 2, CreatorID: 10, OwnerID: 10}))

	fired := make(chan int64, 1)
	f.timers.StartTimer(555, gracetimer.Payload{ChannelID: 555, GuildID: 1}, time.Hour,
		func(p gracetimer.Payload) { fired <- p.ChannelID })

	f.configStore.On("Delete", mock.Anything, int64(1)).Return(nil)

	require.NoError(t, f.engine.PurgeGuild(ctx, 1))

	for _, id := range []int64{555, 556} {
		ch, err := f.store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, ch)
	}
	other, err := f.store.GetByID(ctx, 777)
	require.NoError(t, err)
	assert.NotNil(t, other, "channels in other guilds must survive")

	assert.False(t, f.timers.StopTimer(555), "grace timer should be cancelled by the purge")
	select {
	case id := <-fired:
		t.Fatalf("timer %d fired after purge", id)
	default:
	}
	f.configStore.AssertExpectations(t)
	f.platform.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)
}

func TestRename_Success(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("RenameRoom", mock.Anything, int64(555), "new name").Return(nil)

	rej, err := f.engine.Rename(ctx, testConfig(), testMember(10), 555, "  new name  ")
	require.NoError(t, err)
	assert.Nil(t, rej)
	f.platform.AssertExpectations(t)
}

func TestRename_BlockedByFilter(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	cfg.AutomodEnabled = b(true)
	cfg.AutomodRuleIDs = []int64{5}
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	rules := []automod.Rule{{ID: 5, Name: "bad words", Enabled: true, Keyword: true, Keywords: []string{"slur"}}}
	f.platform.On("AutoModRules", mock.Anything, int64(1)).Return(rules, nil)

	rej, err := f.engine.Rename(ctx, cfg, testMember(10), 555, "some slur here")
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectBlockedName, rej.Reason)
	f.platform.AssertNotCalled(t, "RenameRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestRename_NonOwnerRejected(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	rej, err := f.engine.Rename(ctx, testConfig(), testMember(20), 555, "new name")
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectNotOwner, rej.Reason)
}

func TestSetLimit(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxLobbySize = i32(10)
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	f.platform.On("SetRoomUserLimit", mock.Anything, int64(555), 8).Return(nil)

	rej, err := f.engine.SetLimit(ctx, cfg, testMember(10), 555, 8)
	require.NoError(t, err)
	assert.Nil(t, rej)

	rej, err = f.engine.SetLimit(ctx, cfg, testMember(10), 555, 11)
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectChannelLimit, rej.Reason)
}

func TestSetLocale(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	cfg := testConfig()
	require.NoError(t, f.store.Create(ctx, &models.DynamicChannel{ChannelID: 555, GuildID: 1, CreatorID: 10, OwnerID: 10}))

	rej, err := f.engine.SetLocale(ctx, cfg, testMember(10), 555, "es")
	require.NoError(t, err)
	assert.Nil(t, rej)

	ch, err := f.store.GetByID(ctx, 555)
	require.NoError(t, err)
	require.NotNil(t, ch.PreferredLocale)
	assert.Equal(t, "es", *ch.PreferredLocale)

	rej, err = f.engine.SetLocale(ctx, cfg, testMember(10), 555, "xx")
	require.NoError(t, err)
	require.NotNil(t, rej)
	assert.Equal(t, RejectInvalidLocale, rej.Reason)
}

package cache

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"lobbybot/models"
	"lobbybot/repository"
)

// ChannelStore is the persistence interface backing the channel cache
type ChannelStore interface {
	Create(ctx context.Context, ch *models.DynamicChannel) error
	GetByID(ctx context.Context, channelID int64) (*models.DynamicChannel, error)
	GetByOwner(ctx context.Context, guildID, ownerID int64) (*models.DynamicChannel, error)
	Update(ctx context.Context, ch *models.DynamicChannel) error
	SwapOwner(ctx context.Context, channelID, fromOwner, toOwner int64) (bool, error)
	Delete(ctx context.Context, channelID int64) error
	List(ctx context.Context) ([]*models.DynamicChannel, error)
	CountByGuild(ctx context.Context, guildID int64) (int, error)
}

type ownerKey struct {
	guildID int64
	ownerID int64
}

// ChannelCache is a cache-aside store for dynamic channel records. The
// canonical key is the channel id; the by-owner lookup is a derived index
// re-keyed under the same lock as the primary entry, so a stale owner-indexed
// entry can never be served after an ownership change.
type ChannelCache struct {
	store   ChannelStore
	metrics Metrics

	mu       sync.RWMutex
	channels map[int64]models.DynamicChannel
	byOwner  map[ownerKey]int64
}

// NewChannelCache creates a channel cache over the given store
func NewChannelCache(store ChannelStore, metrics Metrics) *ChannelCache {
	return &ChannelCache{
		store:    store,
		metrics:  metrics,
		channels: make(map[int64]models.DynamicChannel),
		byOwner:  make(map[ownerKey]int64),
	}
}

// Exists reports whether a dynamic channel record exists for the channel id
func (c *ChannelCache) Exists(ctx context.Context, channelID int64) (bool, error) {
	c.mu.RLock()
	_, ok := c.channels[channelID]
	c.mu.RUnlock()
	if ok {
		return true, nil
	}

	ch, err := c.store.GetByID(ctx, channelID)
	if err != nil {
		return false, err
	}
	return ch != nil, nil
}

// Get returns the record for a channel id, reading through to the store on a
// miss. Returns nil when no record exists. Callers receive a private copy.
func (c *ChannelCache) Get(ctx context.Context, channelID int64) (*models.DynamicChannel, error) {
	c.mu.RLock()
	ch, ok := c.channels[channelID]
	c.mu.RUnlock()
	if ok {
		c.hit("channel")
		return &ch, nil
	}
	c.miss("channel")

	stored, err := c.store.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	c.insert(*stored)
	out := *stored
	return &out, nil
}

// GetByOwner returns the channel owned by a user in a guild, or nil. The
// owner index only ever resolves to the canonical entry.
func (c *ChannelCache) GetByOwner(ctx context.Context, guildID, ownerID int64) (*models.DynamicChannel, error) {
	c.mu.RLock()
	id, ok := c.byOwner[ownerKey{guildID, ownerID}]
	var ch models.DynamicChannel
	if ok {
		ch, ok = c.channels[id]
	}
	c.mu.RUnlock()
	if ok {
		c.hit("channel")
		return &ch, nil
	}
	c.miss("channel")

	stored, err := c.store.GetByOwner(ctx, guildID, ownerID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	c.insert(*stored)
	out := *stored
	return &out, nil
}

// TryCreate persists a new channel record. Returns false if the channel id or
// the (owner, guild) pair is already taken.
func (c *ChannelCache) TryCreate(ctx context.Context, ch *models.DynamicChannel) (bool, error) {
	err := c.store.Create(ctx, ch)
	if errors.Is(err, repository.ErrChannelExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	c.insert(*ch)
	log.WithFields(log.Fields{
		"channelID": ch.ChannelID,
		"ownerID":   ch.OwnerID,
	}).Debug("Dynamic channel record created")
	return true, nil
}

// Modify writes a record through to the store and refreshes the cached copy,
// re-keying the owner index if ownership changed.
func (c *ChannelCache) Modify(ctx context.Context, ch *models.DynamicChannel) error {
	if err := c.store.Update(ctx, ch); err != nil {
		return err
	}

	c.insert(*ch)
	log.WithField("channelID", ch.ChannelID).Debug("Dynamic channel record modified")
	return nil
}

// SwapOwner atomically moves ownership of a channel from one user to another.
// Returns false when a concurrent claim or transfer already changed the
// owner; the cache is only updated when the store reports the swap succeeded.
func (c *ChannelCache) SwapOwner(ctx context.Context, channelID, fromOwner, toOwner int64) (bool, error) {
	swapped, err := c.store.SwapOwner(ctx, channelID, fromOwner, toOwner)
	if err != nil || !swapped {
		return false, err
	}

	c.mu.Lock()
	if ch, ok := c.channels[channelID]; ok {
		delete(c.byOwner, ownerKey{ch.GuildID, ch.OwnerID})
		ch.OwnerID = toOwner
		c.channels[channelID] = ch
		c.byOwner[ownerKey{ch.GuildID, toOwner}] = channelID
	}
	c.mu.Unlock()

	log.WithFields(log.Fields{
		"channelID": channelID,
		"fromOwner": fromOwner,
		"toOwner":   toOwner,
	}).Debug("Dynamic channel ownership swapped")
	return true, nil
}

// Delete removes a channel record from the store and the cache, including its
// owner index entry.
func (c *ChannelCache) Delete(ctx context.Context, channelID int64) error {
	if err := c.store.Delete(ctx, channelID); err != nil {
		return err
	}

	c.mu.Lock()
	if ch, ok := c.channels[channelID]; ok {
		delete(c.byOwner, ownerKey{ch.GuildID, ch.OwnerID})
		delete(c.channels, channelID)
	}
	c.mu.Unlock()

	log.WithField("channelID", channelID).Debug("Dynamic channel record deleted")
	return nil
}

// List returns every persisted channel record, bypassing the cache. Used by
// the reconciliation sweep, which must see the store's view.
func (c *ChannelCache) List(ctx context.Context) ([]*models.DynamicChannel, error) {
	return c.store.List(ctx)
}

// CountByGuild returns the authoritative number of channels in a guild
func (c *ChannelCache) CountByGuild(ctx context.Context, guildID int64) (int, error) {
	return c.store.CountByGuild(ctx, guildID)
}

func (c *ChannelCache) insert(ch models.DynamicChannel) {
	c.mu.Lock()
	if prev, ok := c.channels[ch.ChannelID]; ok && prev.OwnerID != ch.OwnerID {
		delete(c.byOwner, ownerKey{prev.GuildID, prev.OwnerID})
	}
	c.channels[ch.ChannelID] = ch
	c.byOwner[ownerKey{ch.GuildID, ch.OwnerID}] = ch.ChannelID
	c.mu.Unlock()
}

func (c *ChannelCache) hit(kind string) {
	if c.metrics != nil {
		c.metrics.CacheHit(kind)
	}
}

func (c *ChannelCache) miss(kind string) {
	if c.metrics != nil {
		c.metrics.CacheMiss(kind)
	}
}

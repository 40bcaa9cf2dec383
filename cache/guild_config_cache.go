// Package cache implements cache-aside stores for the two persisted entity
// kinds: guild configuration and dynamic channels. Reads fall through to the
// persistent store on a miss; every mutation writes the store first and then
// the in-memory copy. The engine is the sole writer, and these caches hold
// the only in-memory copies of either entity.
package cache

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"lobbybot/models"
)

// Metrics counts cache effectiveness. Implementations must be safe for
// concurrent use; a nil Metrics disables counting.
type Metrics interface {
	CacheHit(kind string)
	CacheMiss(kind string)
}

// GuildConfigStore is the persistence interface backing the config cache
type GuildConfigStore interface {
	Get(ctx context.Context, guildID int64) (*models.GuildConfig, error)
	Create(ctx context.Context, cfg *models.GuildConfig) (bool, error)
	Update(ctx context.Context, cfg *models.GuildConfig) error
	Delete(ctx context.Context, guildID int64) error
}

// GuildConfigCache is a cache-aside store for guild configuration
type GuildConfigCache struct {
	store   GuildConfigStore
	metrics Metrics

	mu      sync.RWMutex
	configs map[int64]models.GuildConfig
}

// NewGuildConfigCache creates a config cache over the given store
func NewGuildConfigCache(store GuildConfigStore, metrics Metrics) *GuildConfigCache {
	return &GuildConfigCache{
		store:   store,
		metrics: metrics,
		configs: make(map[int64]models.GuildConfig),
	}
}

// Exists reports whether a config exists for the guild
func (c *GuildConfigCache) Exists(ctx context.Context, guildID int64) (bool, error) {
	c.mu.RLock()
	_, ok := c.configs[guildID]
	c.mu.RUnlock()
	if ok {
		return true, nil
	}

	cfg, err := c.store.Get(ctx, guildID)
	if err != nil {
		return false, err
	}
	return cfg != nil, nil
}

// Get returns the config for a guild, reading through to the store on a miss.
// Returns nil when no config exists. Callers receive a private copy.
func (c *GuildConfigCache) Get(ctx context.Context, guildID int64) (*models.GuildConfig, error) {
	c.mu.RLock()
	cfg, ok := c.configs[guildID]
	c.mu.RUnlock()
	if ok {
		c.hit("config")
		return &cfg, nil
	}
	c.miss("config")

	stored, err := c.store.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	c.mu.Lock()
	c.configs[guildID] = *stored
	c.mu.Unlock()

	log.WithField("guildID", guildID).Debug("Guild config added to cache")
	out := *stored
	return &out, nil
}

// TryCreate persists a new config. Returns false if one already exists.
func (c *GuildConfigCache) TryCreate(ctx context.Context, cfg *models.GuildConfig) (bool, error) {
	created, err := c.store.Create(ctx, cfg)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}

	c.mu.Lock()
	c.configs[cfg.GuildID] = *cfg
	c.mu.Unlock()

	log.WithField("guildID", cfg.GuildID).Debug("Guild config created")
	return true, nil
}

// Modify writes a config through to the store and refreshes the cached copy
func (c *GuildConfigCache) Modify(ctx context.Context, cfg *models.GuildConfig) error {
	if err := c.store.Update(ctx, cfg); err != nil {
		return err
	}

	c.mu.Lock()
	c.configs[cfg.GuildID] = *cfg
	c.mu.Unlock()

	log.WithField("guildID", cfg.GuildID).Debug("Guild config modified")
	return nil
}

// Delete removes a guild's config from the store and the cache
func (c *GuildConfigCache) Delete(ctx context.Context, guildID int64) error {
	if err := c.store.Delete(ctx, guildID); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.configs, guildID)
	c.mu.Unlock()

	log.WithField("guildID", guildID).Debug("Guild config deleted")
	return nil
}

func (c *GuildConfigCache) hit(kind string) {
	if c.metrics != nil {
		c.metrics.CacheHit(kind)
	}
}

func (c *GuildConfigCache) miss(kind string) {
	if c.metrics != nil {
		c.metrics.CacheMiss(kind)
	}
}

package models

import "time"

// DefaultGracePeriod is how long an abandoned channel waits before a claim
// prompt is posted, when the guild has not configured its own duration.
const DefaultGracePeriod = 30 * time.Second

// DefaultLobbySize is the user limit applied to new dynamic channels when the
// guild has not configured one.
const DefaultLobbySize = 4

// GuildConfig represents per-guild configuration for dynamic voice channels
type GuildConfig struct {
	GuildID              int64    `db:"guild_id"`
	CreateChannelID      *int64   `db:"create_channel_id"`      // Nullable - the trigger channel
	CanOwnRoleIDs        []int64  `db:"can_own_role_ids"`       // Empty = everyone may own
	DenyDeafenedOwner    *bool    `db:"deny_deafened_owner"`    // Nullable - NULL means true
	DenyMutedOwner       *bool    `db:"deny_muted_owner"`       // Nullable - NULL means true
	DefaultLobbySize     *int32   `db:"default_lobby_size"`     // Nullable
	MaxLobbySize         *int32   `db:"max_lobby_size"`         // Nullable
	MaxChannels          *int32   `db:"max_channels"`           // Nullable - cap on concurrent dynamic channels
	AbandonedGraceSecs   *int32   `db:"abandoned_grace_secs"`   // Nullable - NULL means 30s
	AutomodEnabled       *bool    `db:"automod_enabled"`        // Nullable - NULL means false
	AutomodRuleIDs       []int64  `db:"automod_rule_ids"`
	AutomodLogChannelID  *int64   `db:"automod_log_channel_id"` // Nullable
	PreferredLocale      string   `db:"preferred_locale"`
	IsBanned             *bool    `db:"is_banned"`              // Nullable - NULL means false
}

// HasCreateChannel checks if a trigger channel is configured
func (g *GuildConfig) HasCreateChannel() bool {
	return g.CreateChannelID != nil && *g.CreateChannelID > 0
}

// DenyDeafened resolves the tri-state deafened-ownership flag, defaulting to true
func (g *GuildConfig) DenyDeafened() bool {
	return g.DenyDeafenedOwner == nil || *g.DenyDeafenedOwner
}

// DenyMuted resolves the tri-state muted-ownership flag, defaulting to true
func (g *GuildConfig) DenyMuted() bool {
	return g.DenyMutedOwner == nil || *g.DenyMutedOwner
}

// LobbySize returns the configured default user limit for new channels
func (g *GuildConfig) LobbySize() int {
	if g.DefaultLobbySize == nil || *g.DefaultLobbySize <= 0 {
		return DefaultLobbySize
	}
	return int(*g.DefaultLobbySize)
}

// GracePeriod returns the configured abandonment grace duration
func (g *GuildConfig) GracePeriod() time.Duration {
	if g.AbandonedGraceSecs == nil || *g.AbandonedGraceSecs <= 0 {
		return DefaultGracePeriod
	}
	return time.Duration(*g.AbandonedGraceSecs) * time.Second
}

// AutomodActive checks whether name filtering should run for this guild
func (g *GuildConfig) AutomodActive() bool {
	return g.AutomodEnabled != nil && *g.AutomodEnabled && len(g.AutomodRuleIDs) > 0
}

// Banned resolves the tri-state ban flag, defaulting to false
func (g *GuildConfig) Banned() bool {
	return g.IsBanned != nil && *g.IsBanned
}

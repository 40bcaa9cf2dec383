package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lobbybot/database"
	"lobbybot/models"
)

// GuildConfigRepository provides data access for per-guild configuration
type GuildConfigRepository struct {
	q Queryable
}

// NewGuildConfigRepository creates a new guild config repository
func NewGuildConfigRepository(db *database.DB) *GuildConfigRepository {
	return &GuildConfigRepository{q: db.Pool}
}

// NewGuildConfigRepositoryWithTx creates a new guild config repository bound to a transaction
func NewGuildConfigRepositoryWithTx(tx Queryable) *GuildConfigRepository {
	return &GuildConfigRepository{q: tx}
}

const guildConfigColumns = `
	guild_id, create_channel_id, can_own_role_ids, deny_deafened_owner,
	deny_muted_owner, default_lobby_size, max_lobby_size, max_channels,
	abandoned_grace_secs, automod_enabled, automod_rule_ids,
	automod_log_channel_id, preferred_locale, is_banned`

func scanGuildConfig(row pgx.Row) (*models.GuildConfig, error) {
	var cfg models.GuildConfig
	err := row.Scan(
		&cfg.GuildID,
		&cfg.CreateChannelID,
		&cfg.CanOwnRoleIDs,
		&cfg.DenyDeafenedOwner,
		&cfg.DenyMutedOwner,
		&cfg.DefaultLobbySize,
		&cfg.MaxLobbySize,
		&cfg.MaxChannels,
		&cfg.AbandonedGraceSecs,
		&cfg.AutomodEnabled,
		&cfg.AutomodRuleIDs,
		&cfg.AutomodLogChannelID,
		&cfg.PreferredLocale,
		&cfg.IsBanned,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get retrieves the config for a guild, or nil if none exists
func (r *GuildConfigRepository) Get(ctx context.Context, guildID int64) (*models.GuildConfig, error) {
	query := `SELECT` + guildConfigColumns + `
		FROM guild_configs
		WHERE guild_id = $1
	`

	cfg, err := scanGuildConfig(r.q.QueryRow(ctx, query, guildID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get config for guild %d: %w", guildID, err)
	}
	return cfg, nil
}

// Create inserts a new guild config. Returns false if one already exists.
func (r *GuildConfigRepository) Create(ctx context.Context, cfg *models.GuildConfig) (bool, error) {
	query := `
		INSERT INTO guild_configs (guild_id, preferred_locale)
		VALUES ($1, $2)
		ON CONFLICT (guild_id) DO NOTHING
	`

	tag, err := r.q.Exec(ctx, query, cfg.GuildID, cfg.PreferredLocale)
	if err != nil {
		return false, fmt.Errorf("failed to create config for guild %d: %w", cfg.GuildID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Update writes all mutable config fields for a guild
func (r *GuildConfigRepository) Update(ctx context.Context, cfg *models.GuildConfig) error {
	query := `
		UPDATE guild_configs
		SET create_channel_id = $2,
		    can_own_role_ids = $3,
		    deny_deafened_owner = $4,
		    deny_muted_owner = $5,
		    default_lobby_size = $6,
		    max_lobby_size = $7,
		    max_channels = $8,
		    abandoned_grace_secs = $9,
		    automod_enabled = $10,
		    automod_rule_ids = $11,
		    automod_log_channel_id = $12,
		    preferred_locale = $13,
		    is_banned = $14,
		    updated_at = NOW()
		WHERE guild_id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		cfg.GuildID,
		cfg.CreateChannelID,
		cfg.CanOwnRoleIDs,
		cfg.DenyDeafenedOwner,
		cfg.DenyMutedOwner,
		cfg.DefaultLobbySize,
		cfg.MaxLobbySize,
		cfg.MaxChannels,
		cfg.AbandonedGraceSecs,
		cfg.AutomodEnabled,
		cfg.AutomodRuleIDs,
		cfg.AutomodLogChannelID,
		cfg.PreferredLocale,
		cfg.IsBanned,
	)
	if err != nil {
		return fmt.Errorf("failed to update config for guild %d: %w", cfg.GuildID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("config for guild %d not found", cfg.GuildID)
	}
	return nil
}

// Delete removes a guild's config. Its dynamic channels cascade.
func (r *GuildConfigRepository) Delete(ctx context.Context, guildID int64) error {
	query := `DELETE FROM guild_configs WHERE guild_id = $1`

	if _, err := r.q.Exec(ctx, query, guildID); err != nil {
		return fmt.Errorf("failed to delete config for guild %d: %w", guildID, err)
	}
	return nil
}

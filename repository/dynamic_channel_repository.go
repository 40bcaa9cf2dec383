package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"lobbybot/database"
	"lobbybot/models"
)

// DynamicChannelRepository provides data access for dynamic channel records
type DynamicChannelRepository struct {
	q Queryable
}

// NewDynamicChannelRepository creates a new dynamic channel repository
func NewDynamicChannelRepository(db *database.DB) *DynamicChannelRepository {
	return &DynamicChannelRepository{q: db.Pool}
}

// NewDynamicChannelRepositoryWithTx creates a new dynamic channel repository bound to a transaction
func NewDynamicChannelRepositoryWithTx(tx Queryable) *DynamicChannelRepository {
	return &DynamicChannelRepository{q: tx}
}

const dynamicChannelColumns = `
	channel_id, guild_id, creator_id, owner_id, panel_message_id, preferred_locale`

func scanDynamicChannel(row pgx.Row) (*models.DynamicChannel, error) {
	var ch models.DynamicChannel
	err := row.Scan(
		&ch.ChannelID,
		&ch.GuildID,
		&ch.CreatorID,
		&ch.OwnerID,
		&ch.PanelMessageID,
		&ch.PreferredLocale,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// Create inserts a new dynamic channel record. Returns ErrChannelExists if the
// channel id or the (owner, guild) pair is already taken.
func (r *DynamicChannelRepository) Create(ctx context.Context, ch *models.DynamicChannel) error {
	query := `
		INSERT INTO dynamic_channels (channel_id, guild_id, creator_id, owner_id, panel_message_id, preferred_locale)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.Exec(ctx, query,
		ch.ChannelID,
		ch.GuildID,
		ch.CreatorID,
		ch.OwnerID,
		ch.PanelMessageID,
		ch.PreferredLocale,
	)
	if isUniqueViolation(err) {
		return ErrChannelExists
	}
	if err != nil {
		return fmt.Errorf("failed to create dynamic channel %d: %w", ch.ChannelID, err)
	}
	return nil
}

// GetByID retrieves a dynamic channel by its channel id, or nil if none exists
func (r *DynamicChannelRepository) GetByID(ctx context.Context, channelID int64) (*models.DynamicChannel, error) {
	query := `SELECT` + dynamicChannelColumns + `
		FROM dynamic_channels
		WHERE channel_id = $1
	`

	ch, err := scanDynamicChannel(r.q.QueryRow(ctx, query, channelID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dynamic channel %d: %w", channelID, err)
	}
	return ch, nil
}

// GetByOwner retrieves the channel owned by a user in a guild, or nil if none exists
func (r *DynamicChannelRepository) GetByOwner(ctx context.Context, guildID, ownerID int64) (*models.DynamicChannel, error) {
	query := `SELECT` + dynamicChannelColumns + `
		FROM dynamic_channels
		WHERE guild_id = $1 AND owner_id = $2
	`

	ch, err := scanDynamicChannel(r.q.QueryRow(ctx, query, guildID, ownerID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dynamic channel owned by %d in guild %d: %w", ownerID, guildID, err)
	}
	return ch, nil
}

// Update writes the mutable fields of a dynamic channel record
func (r *DynamicChannelRepository) Update(ctx context.Context, ch *models.DynamicChannel) error {
	query := `
		UPDATE dynamic_channels
		SET owner_id = $2,
		    panel_message_id = $3,
		    preferred_locale = $4,
		    updated_at = NOW()
		WHERE channel_id = $1
	`

	tag, err := r.q.Exec(ctx, query, ch.ChannelID, ch.OwnerID, ch.PanelMessageID, ch.PreferredLocale)
	if err != nil {
		return fmt.Errorf("failed to update dynamic channel %d: %w", ch.ChannelID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dynamic channel %d not found", ch.ChannelID)
	}
	return nil
}

// SwapOwner atomically moves ownership from fromOwner to toOwner. Returns false
// if the record's owner is no longer fromOwner, which means a concurrent claim
// or transfer won the race.
func (r *DynamicChannelRepository) SwapOwner(ctx context.Context, channelID, fromOwner, toOwner int64) (bool, error) {
	query := `
		UPDATE dynamic_channels
		SET owner_id = $3,
		    updated_at = NOW()
		WHERE channel_id = $1 AND owner_id = $2
	`

	tag, err := r.q.Exec(ctx, query, channelID, fromOwner, toOwner)
	if isUniqueViolation(err) {
		// toOwner already owns another channel in this guild
		return false, ErrChannelExists
	}
	if err != nil {
		return false, fmt.Errorf("failed to swap owner of dynamic channel %d: %w", channelID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a dynamic channel record
func (r *DynamicChannelRepository) Delete(ctx context.Context, channelID int64) error {
	query := `DELETE FROM dynamic_channels WHERE channel_id = $1`

	if _, err := r.q.Exec(ctx, query, channelID); err != nil {
		return fmt.Errorf("failed to delete dynamic channel %d: %w", channelID, err)
	}
	return nil
}

// List returns all persisted dynamic channel records
func (r *DynamicChannelRepository) List(ctx context.Context) ([]*models.DynamicChannel, error) {
	query := `SELECT` + dynamicChannelColumns + `
		FROM dynamic_channels
		ORDER BY channel_id
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list dynamic channels: %w", err)
	}
	defer rows.Close()

	var channels []*models.DynamicChannel
	for rows.Next() {
		ch, err := scanDynamicChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dynamic channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dynamic channels: %w", err)
	}
	return channels, nil
}

// CountByGuild returns the number of live dynamic channels in a guild
func (r *DynamicChannelRepository) CountByGuild(ctx context.Context, guildID int64) (int, error) {
	query := `SELECT COUNT(*) FROM dynamic_channels WHERE guild_id = $1`

	var count int
	if err := r.q.QueryRow(ctx, query, guildID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count dynamic channels for guild %d: %w", guildID, err)
	}
	return count, nil
}

package models

// DynamicChannel represents one live ephemeral voice channel owned by a user.
// At most one channel per (guild, owner) pair exists at any time; the database
// enforces this with a unique constraint.
type DynamicChannel struct {
	ChannelID       int64   `db:"channel_id"`
	GuildID         int64   `db:"guild_id"`
	CreatorID       int64   `db:"creator_id"`
	OwnerID         int64   `db:"owner_id"`
	PanelMessageID  *int64  `db:"panel_message_id"` // Nullable - set at most once, lazily
	PreferredLocale *string `db:"preferred_locale"` // Nullable - owner override of the guild locale
}

// HasPanel checks if the control panel message has been created
func (c *DynamicChannel) HasPanel() bool {
	return c.PanelMessageID != nil && *c.PanelMessageID > 0
}

// Locale returns the owner's locale override, falling back to the guild's
func (c *DynamicChannel) Locale(guildLocale string) string {
	if c.PreferredLocale != nil && *c.PreferredLocale != "" {
		return *c.PreferredLocale
	}
	return guildLocale
}

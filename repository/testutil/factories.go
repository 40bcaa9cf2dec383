package testutil

import (
	"lobbybot/models"
)

// CreateTestGuildConfig creates a guild config with default values
func CreateTestGuildConfig(guildID int64) *models.GuildConfig {
	return &models.GuildConfig{
		GuildID:         guildID,
		PreferredLocale: "en",
	}
}

// CreateTestGuildConfigWithTrigger creates a guild config with a trigger channel set
func CreateTestGuildConfigWithTrigger(guildID, createChannelID int64) *models.GuildConfig {
	cfg := CreateTestGuildConfig(guildID)
	cfg.CreateChannelID = &createChannelID
	return cfg
}

// CreateTestDynamicChannel creates a dynamic channel record owned by its creator
func CreateTestDynamicChannel(channelID, guildID, ownerID int64) *models.DynamicChannel {
	return &models.DynamicChannel{
		ChannelID: channelID,
		GuildID:   guildID,
		CreatorID: ownerID,
		OwnerID:   ownerID,
	}
}

package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"lobbybot/models"
)

// handleGuildCreate fires on startup for every known guild and whenever the
// bot joins a new one. It seeds a default config record, observes the
// guild's preferred locale, and walks out of banned guilds.
func (b *Bot) handleGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	guildID, err := parseID(g.ID)
	if err != nil {
		return
	}

	ctx := context.Background()
	cfg, err := b.engine.Configs().Get(ctx, guildID)
	if err != nil {
		log.Errorf("Error loading config for guild %s: %v", g.ID, err)
		return
	}

	if cfg != nil && cfg.Banned() {
		log.WithField("guildID", guildID).Info("Leaving banned guild")
		if err := s.GuildLeave(g.ID); err != nil {
			log.Errorf("Error leaving banned guild %s: %v", g.ID, err)
		}
		return
	}

	b.trackGuild(guildID)

	if cfg == nil {
		cfg = &models.GuildConfig{
			GuildID:         guildID,
			PreferredLocale: primarySubtag(g.PreferredLocale),
		}
		created, err := b.engine.Configs().TryCreate(ctx, cfg)
		if err != nil {
			log.Errorf("Error creating config for guild %s: %v", g.ID, err)
			return
		}
		if created {
			log.WithFields(log.Fields{
				"guildID": guildID,
				"locale":  cfg.PreferredLocale,
			}).Info("Created default config for new guild")
		}
	}
}

func (b *Bot) handleGuildDelete(s *discordgo.Session, g *discordgo.GuildDelete) {
	guildID, err := parseID(g.ID)
	if err != nil {
		return
	}
	b.untrackGuild(guildID)

	if g.Unavailable {
		// Outage, not removal. Records stay; the sweeper skips guilds the
		// bot cannot see until they come back.
		log.WithField("guildID", guildID).Warn("Guild became unavailable")
		return
	}

	log.WithField("guildID", guildID).Info("Removed from guild")
	if err := b.engine.PurgeGuild(context.Background(), guildID); err != nil {
		log.Errorf("Error purging state for guild %s: %v", g.ID, err)
	}
}

// primarySubtag reduces a BCP 47 tag like "es-MX" to its language subtag
func primarySubtag(tag string) string {
	if tag == "" {
		return "en"
	}
	if idx := strings.IndexAny(tag, "-_"); idx > 0 {
		tag = tag[:idx]
	}
	return strings.ToLower(tag)
}

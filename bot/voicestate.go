package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"lobbybot/service"
)

// handleVoiceStateUpdate turns gateway voice transitions into engine join and
// leave operations. A user switching channels produces a leave for the old
// channel followed by a join for the new one.
func (b *Bot) handleVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	guildID, err := parseID(vsu.GuildID)
	if err != nil {
		return
	}

	ctx := context.Background()
	cfg, err := b.guildConfig(ctx, guildID)
	if err != nil {
		log.Errorf("Error loading config for guild %s: %v", vsu.GuildID, err)
		return
	}
	if cfg == nil {
		return
	}

	var oldChannel string
	if vsu.BeforeUpdate != nil {
		oldChannel = vsu.BeforeUpdate.ChannelID
	}
	if oldChannel == vsu.ChannelID {
		// Mute or deafen toggle, not a movement
		return
	}

	member := b.memberFromVoiceState(s, vsu)

	if oldChannel != "" {
		leftID, err := parseID(oldChannel)
		if err == nil {
			if err := b.engine.HandleLeave(ctx, cfg, member, leftID); err != nil {
				log.Errorf("Error handling voice leave from channel %s: %v", oldChannel, err)
			}
		}
	}

	if vsu.ChannelID != "" {
		joinedID, err := parseID(vsu.ChannelID)
		if err == nil {
			if err := b.engine.HandleJoin(ctx, cfg, member, joinedID); err != nil {
				log.Errorf("Error handling voice join to channel %s: %v", vsu.ChannelID, err)
			}
		}
	}
}

func (b *Bot) memberFromVoiceState(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) service.Member {
	userID, _ := parseID(vsu.UserID)
	member := service.Member{
		ID:       userID,
		Deafened: vsu.Deaf,
		Muted:    vsu.Mute,
	}

	guildMember := vsu.Member
	if guildMember == nil {
		guildMember, _ = s.State.Member(vsu.GuildID, vsu.UserID)
	}
	if guildMember == nil {
		var err error
		guildMember, err = s.GuildMember(vsu.GuildID, vsu.UserID)
		if err != nil {
			log.Warnf("Could not resolve member %s in guild %s: %v", vsu.UserID, vsu.GuildID, err)
			return member
		}
	}

	member.DisplayName = displayName(guildMember)
	for _, roleID := range guildMember.Roles {
		if parsed, err := parseID(roleID); err == nil {
			member.RoleIDs = append(member.RoleIDs, parsed)
		}
	}
	return member
}

func displayName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User == nil {
		return ""
	}
	if m.User.GlobalName != "" {
		return m.User.GlobalName
	}
	return m.User.Username
}

package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"lobbybot/service"
)

// handleComponent routes panel and prompt button clicks by custom id. Panel
// buttons carry the channel id after the colon.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	action, channelID, ok := splitCustomID(customID)
	if !ok || i.Member == nil {
		return
	}

	ctx := context.Background()
	guildID, err := parseID(i.GuildID)
	if err != nil {
		return
	}
	cfg, err := b.guildConfig(ctx, guildID)
	if err != nil || cfg == nil {
		return
	}
	member := b.interactionMember(s, i)

	switch action {
	case "claim_button":
		rej, err := b.engine.Claim(ctx, cfg, member, channelID)
		if err != nil {
			log.Errorf("Error claiming channel %d: %v", channelID, err)
			return
		}
		if rej != nil {
			b.respondRejection(s, i, rej)
			return
		}
		b.respondKey(s, i, "claim:success", member.DisplayName)

	case "rename_button":
		b.openTextModal(s, i, "rename_modal", channelID, "rename:modal_title", "rename:modal_label")

	case "limit_button":
		b.openTextModal(s, i, "limit_modal", channelID, "limit:modal_title", "limit:modal_label")

	case "locale_button":
		tags := strings.Join(b.localizer.Tags(), ", ")
		b.respondKey(s, i, "locale:choices", tags)

	case "transfer_button":
		b.respondKey(s, i, "transfer:hint")
	}
}

func (b *Bot) handleModal(s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	action, channelID, ok := splitCustomID(customID)
	if !ok || i.Member == nil {
		return
	}

	ctx := context.Background()
	guildID, err := parseID(i.GuildID)
	if err != nil {
		return
	}
	cfg, err := b.guildConfig(ctx, guildID)
	if err != nil || cfg == nil {
		return
	}
	member := b.interactionMember(s, i)
	value := modalInputValue(i)

	switch action {
	case "rename_modal":
		rej, err := b.engine.Rename(ctx, cfg, member, channelID, value)
		if err != nil {
			log.Errorf("Error renaming channel %d: %v", channelID, err)
			return
		}
		if rej != nil {
			b.respondRejection(s, i, rej)
			return
		}
		b.respondKey(s, i, "rename:success", strings.TrimSpace(value))

	case "limit_modal":
		limit, err := parseID(strings.TrimSpace(value))
		if err != nil {
			b.respondKey(s, i, "limit:invalid", cfg.LobbySize())
			return
		}
		rej, serr := b.engine.SetLimit(ctx, cfg, member, channelID, int(limit))
		if serr != nil {
			log.Errorf("Error setting limit on channel %d: %v", channelID, serr)
			return
		}
		if rej != nil {
			b.respondRejection(s, i, rej)
			return
		}
		b.respondKey(s, i, "limit:success", int(limit))
	}
}

func (b *Bot) openTextModal(s *discordgo.Session, i *discordgo.InteractionCreate, action string, channelID int64, titleKey, labelKey string) {
	tag := b.responseLocale(i)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: action + ":" + formatID(channelID),
			Title:    b.localizer.Get(tag, titleKey),
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:  "value",
							Label:     b.localizer.Get(tag, labelKey),
							Style:     discordgo.TextInputShort,
							Required:  true,
							MaxLength: 100,
						},
					},
				},
			},
		},
	})
	if err != nil {
		log.Errorf("Error opening modal %s: %v", action, err)
	}
}

func modalInputValue(i *discordgo.InteractionCreate) string {
	for _, row := range i.ModalSubmitData().Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, component := range actionsRow.Components {
			if input, ok := component.(*discordgo.TextInput); ok {
				return input.Value
			}
		}
	}
	return ""
}

// splitCustomID parses "<action>:<channel id>" custom ids
func splitCustomID(customID string) (string, int64, bool) {
	action, raw, found := strings.Cut(customID, ":")
	if !found {
		return "", 0, false
	}
	channelID, err := parseID(raw)
	if err != nil {
		return "", 0, false
	}
	return action, channelID, true
}

// interactionMember builds the engine's member view from an interaction,
// pulling server deafen and mute flags from the guild voice state.
func (b *Bot) interactionMember(s *discordgo.Session, i *discordgo.InteractionCreate) service.Member {
	userID, _ := parseID(i.Member.User.ID)
	member := service.Member{
		ID:          userID,
		DisplayName: displayName(i.Member),
	}
	for _, roleID := range i.Member.Roles {
		if parsed, err := parseID(roleID); err == nil {
			member.RoleIDs = append(member.RoleIDs, parsed)
		}
	}
	if vs, err := s.State.VoiceState(i.GuildID, i.Member.User.ID); err == nil && vs != nil {
		member.Deafened = vs.Deaf
		member.Muted = vs.Mute
	}
	return member
}

func (b *Bot) guildMemberByID(s *discordgo.Session, guildID, userID string) service.Member {
	id, _ := parseID(userID)
	member := service.Member{ID: id}

	guildMember, err := s.State.Member(guildID, userID)
	if guildMember == nil || err != nil {
		guildMember, err = s.GuildMember(guildID, userID)
		if err != nil {
			return member
		}
	}

	member.DisplayName = displayName(guildMember)
	for _, roleID := range guildMember.Roles {
		if parsed, err := parseID(roleID); err == nil {
			member.RoleIDs = append(member.RoleIDs, parsed)
		}
	}
	if vs, err := s.State.VoiceState(guildID, userID); err == nil && vs != nil {
		member.Deafened = vs.Deaf
		member.Muted = vs.Mute
	}
	return member
}

// voiceChannelOf returns the voice channel a user is connected to
func (b *Bot) voiceChannelOf(s *discordgo.Session, guildID, userID string) (int64, bool) {
	vs, err := s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return 0, false
	}
	channelID, err := parseID(vs.ChannelID)
	if err != nil {
		return 0, false
	}
	return channelID, true
}

// responseLocale picks the language for ephemeral replies from the
// requester's client locale.
func (b *Bot) responseLocale(i *discordgo.InteractionCreate) string {
	return primarySubtag(string(i.Locale))
}

func (b *Bot) respondKey(s *discordgo.Session, i *discordgo.InteractionCreate, key string, args ...any) {
	content := b.localizer.Get(b.responseLocale(i), key, args...)
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Errorf("Error responding to interaction: %v", err)
	}
}

func (b *Bot) respondRejection(s *discordgo.Session, i *discordgo.InteractionCreate, rej *service.Rejection) {
	b.respondKey(s, i, rej.LocaleKey, rej.Args...)
}

package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"lobbybot/models"
	"lobbybot/service"
)

var voiceCommand = &discordgo.ApplicationCommand{
	Name:        "voice",
	Description: "Manage your dynamic voice channel",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "claim",
			Description: "Claim the abandoned channel you are in",
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "transfer",
			Description: "Transfer ownership of your channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "The new owner",
					Required:    true,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "rename",
			Description: "Rename your channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "The new channel name",
					Required:    true,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "limit",
			Description: "Set your channel's user limit",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "limit",
					Description: "Maximum users, 0 for unlimited",
					Required:    true,
				},
			},
		},
		{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        "locale",
			Description: "Set your channel's language",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "language",
					Description: "Language tag, for example en or es",
					Required:    true,
				},
			},
		},
	},
}

func (b *Bot) registerCommands() error {
	_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, "", []*discordgo.ApplicationCommand{voiceCommand})
	return err
}

// handleInteraction routes slash commands, component clicks and modal
// submissions.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == "voice" {
			b.handleVoiceCommand(s, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i, i.MessageComponentData().CustomID)
	case discordgo.InteractionModalSubmit:
		b.handleModal(s, i, i.ModalSubmitData().CustomID)
	}
}

func (b *Bot) handleVoiceCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil {
		return
	}

	ctx := context.Background()
	guildID, err := parseID(i.GuildID)
	if err != nil {
		return
	}
	cfg, err := b.guildConfig(ctx, guildID)
	if err != nil || cfg == nil {
		if err != nil {
			log.Errorf("Error loading config for guild %s: %v", i.GuildID, err)
		}
		return
	}

	member := b.interactionMember(s, i)
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}

	switch options[0].Name {
	case "claim":
		b.runClaim(ctx, s, i, cfg, member)
	case "transfer":
		b.runTransfer(ctx, s, i, cfg, member, options[0].Options)
	case "rename":
		b.runRename(ctx, s, i, cfg, member, options[0].Options)
	case "limit":
		b.runLimit(ctx, s, i, cfg, member, options[0].Options)
	case "locale":
		b.runLocale(ctx, s, i, cfg, member, options[0].Options)
	}
}

func (b *Bot) runClaim(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, cfg *models.GuildConfig, member service.Member) {
	channelID, ok := b.voiceChannelOf(s, i.GuildID, i.Member.User.ID)
	if !ok {
		b.respondKey(s, i, "claim:not_in_channel_error")
		return
	}
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
}

func (b *Bot) runTransfer(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, cfg *models.GuildConfig, member service.Member, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	ch, err := b.engine.Channels().GetByOwner(ctx, cfg.GuildID, member.ID)
	if err != nil {
		log.Errorf("Error looking up owned channel for user %d: %v", member.ID, err)
		return
	}
	if ch == nil {
		b.respondKey(s, i, "transfer:not_owner_error")
		return
	}

	targetUser := opts[0].UserValue(s)
	if targetUser == nil {
		return
	}
	target := b.guildMemberByID(s, i.GuildID, targetUser.ID)

	rej, err := b.engine.Transfer(ctx, cfg, member, target, ch.ChannelID)
	if err != nil {
		log.Errorf("Error transferring channel %d: %v", ch.ChannelID, err)
		return
	}
	if rej != nil {
		b.respondRejection(s, i, rej)
		return
	}
	b.respondKey(s, i, "transfer:success", target.DisplayName)
}

func (b *Bot) runRename(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, cfg *models.GuildConfig, member service.Member, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	ch, err := b.engine.Channels().GetByOwner(ctx, cfg.GuildID, member.ID)
	if err != nil || ch == nil {
		b.respondKey(s, i, "transfer:not_owner_error")
		return
	}
	name := opts[0].StringValue()

	rej, err := b.engine.Rename(ctx, cfg, member, ch.ChannelID, name)
	if err != nil {
		log.Errorf("Error renaming channel %d: %v", ch.ChannelID, err)
		return
	}
	if rej != nil {
		b.respondRejection(s, i, rej)
		return
	}
	b.respondKey(s, i, "rename:success", strings.TrimSpace(name))
}

func (b *Bot) runLimit(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, cfg *models.GuildConfig, member service.Member, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	ch, err := b.engine.Channels().GetByOwner(ctx, cfg.GuildID, member.ID)
	if err != nil || ch == nil {
		b.respondKey(s, i, "transfer:not_owner_error")
		return
	}
	limit := int(opts[0].IntValue())

	rej, err := b.engine.SetLimit(ctx, cfg, member, ch.ChannelID, limit)
	if err != nil {
		log.Errorf("Error setting limit on channel %d: %v", ch.ChannelID, err)
		return
	}
	if rej != nil {
		b.respondRejection(s, i, rej)
		return
	}
	b.respondKey(s, i, "limit:success", limit)
}

func (b *Bot) runLocale(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, cfg *models.GuildConfig, member service.Member, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	ch, err := b.engine.Channels().GetByOwner(ctx, cfg.GuildID, member.ID)
	if err != nil || ch == nil {
		b.respondKey(s, i, "transfer:not_owner_error")
		return
	}
	tag := primarySubtag(opts[0].StringValue())

	rej, err := b.engine.SetLocale(ctx, cfg, member, ch.ChannelID, tag)
	if err != nil {
		log.Errorf("Error setting locale on channel %d: %v", ch.ChannelID, err)
		return
	}
	if rej != nil {
		b.respondRejection(s, i, rej)
		return
	}
	b.respondKey(s, i, "locale:success", tag)
}

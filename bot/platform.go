package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"lobbybot/automod"
	"lobbybot/service"
)

// ownerPermissions is the voice-management grant applied to channel owners
const ownerPermissions = discordgo.PermissionVoiceMoveMembers |
	discordgo.PermissionVoiceMuteMembers |
	discordgo.PermissionVoiceDeafenMembers |
	discordgo.PermissionVoicePrioritySpeaker |
	discordgo.PermissionVoiceUseVAD

// Platform adapts a discordgo session to the engine's platform interface.
// Discord's "unknown channel", "unknown message" and "target not connected
// to voice" REST errors are folded into service.ErrGone so the engine can
// treat an already-completed removal as success.
type Platform struct {
	session *discordgo.Session
}

// NewPlatform creates the Discord platform adapter
func NewPlatform(session *discordgo.Session) *Platform {
	return &Platform{session: session}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

// mapRESTError folds the "target already vanished" Discord error codes into
// service.ErrGone and leaves everything else untouched.
func mapRESTError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownMessage,
			discordgo.ErrCodeTargetIsNotConnectedToVoice:
			return fmt.Errorf("%w: %v", service.ErrGone, err)
		}
	}
	return err
}

func (p *Platform) CreateVoiceRoom(ctx context.Context, guildID int64, req service.CreateRoomRequest) (int64, error) {
	trigger, err := p.channel(formatID(req.TriggerChannelID))
	if err != nil {
		return 0, mapRESTError(err)
	}

	created, err := p.session.GuildChannelCreateComplex(formatID(guildID), discordgo.GuildChannelCreateData{
		Name:      req.Name,
		Type:      discordgo.ChannelTypeGuildVoice,
		UserLimit: req.UserLimit,
		// Inherit category permissions by parenting under the trigger
		// channel's category
		ParentID: trigger.ParentID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, mapRESTError(err)
	}

	channelID, err := parseID(created.ID)
	if err != nil {
		return 0, fmt.Errorf("discord returned a non-numeric channel id %q: %w", created.ID, err)
	}

	if err := p.GrantOwnerPermissions(ctx, channelID, req.OwnerID); err != nil {
		return channelID, err
	}
	return channelID, nil
}

func (p *Platform) DeleteRoom(ctx context.Context, channelID int64) error {
	_, err := p.session.ChannelDelete(formatID(channelID), discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) MoveUser(ctx context.Context, guildID, userID int64, channelID *int64) error {
	var target *string
	if channelID != nil {
		s := formatID(*channelID)
		target = &s
	}
	err := p.session.GuildMemberMove(formatID(guildID), formatID(userID), target, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) GrantOwnerPermissions(ctx context.Context, channelID, userID int64) error {
	err := p.session.ChannelPermissionSet(
		formatID(channelID),
		formatID(userID),
		discordgo.PermissionOverwriteTypeMember,
		ownerPermissions,
		0,
		discordgo.WithContext(ctx),
	)
	return mapRESTError(err)
}

func (p *Platform) RevokeOwnerPermissions(ctx context.Context, channelID, userID int64) error {
	err := p.session.ChannelPermissionDelete(formatID(channelID), formatID(userID), discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) RoomOccupants(ctx context.Context, guildID, channelID int64) ([]int64, error) {
	// Confirm the channel still exists; the voice state list alone cannot
	// distinguish "empty" from "deleted"
	if _, err := p.channel(formatID(channelID)); err != nil {
		return nil, mapRESTError(err)
	}

	guild, err := p.session.State.Guild(formatID(guildID))
	if err != nil {
		return nil, fmt.Errorf("guild %d not in state: %w", guildID, err)
	}

	target := formatID(channelID)
	occupants := make([]int64, 0, 4)
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != target {
			continue
		}
		userID, err := parseID(vs.UserID)
		if err != nil {
			continue
		}
		occupants = append(occupants, userID)
	}
	return occupants, nil
}

func (p *Platform) SendMessage(ctx context.Context, channelID int64, msg service.Message) (int64, error) {
	sent, err := p.session.ChannelMessageSendComplex(formatID(channelID), &discordgo.MessageSend{
		Content:    msg.Content,
		Components: buildComponents(msg.Buttons),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, mapRESTError(err)
	}
	return parseID(sent.ID)
}

func (p *Platform) ModifyMessage(ctx context.Context, channelID, messageID int64, msg service.Message) error {
	edit := discordgo.NewMessageEdit(formatID(channelID), formatID(messageID))
	edit.SetContent(msg.Content)
	components := buildComponents(msg.Buttons)
	edit.Components = &components
	_, err := p.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) RenameRoom(ctx context.Context, channelID int64, name string) error {
	_, err := p.session.ChannelEdit(formatID(channelID), &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) SetRoomUserLimit(ctx context.Context, channelID int64, limit int) error {
	_, err := p.session.ChannelEdit(formatID(channelID), &discordgo.ChannelEdit{UserLimit: limit}, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

func (p *Platform) AutoModRules(ctx context.Context, guildID int64) ([]automod.Rule, error) {
	rules, err := p.session.AutoModerationRules(formatID(guildID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapRESTError(err)
	}
	return convertAutoModRules(rules), nil
}

// convertAutoModRules maps Discord's automod rules to the filter's rule
// model. Rules without keyword triggers come through disabled so the filter
// skips them.
func convertAutoModRules(rules []*discordgo.AutoModerationRule) []automod.Rule {
	out := make([]automod.Rule, 0, len(rules))
	for _, r := range rules {
		id, err := parseID(r.ID)
		if err != nil {
			continue
		}
		rule := automod.Rule{
			ID:      id,
			Name:    r.Name,
			Enabled: r.Enabled != nil && *r.Enabled,
			Keyword: r.TriggerType == discordgo.AutoModerationEventTriggerKeyword,
		}
		if r.ExemptRoles != nil {
			for _, roleID := range *r.ExemptRoles {
				if parsed, err := parseID(roleID); err == nil {
					rule.ExemptRoleIDs = append(rule.ExemptRoleIDs, parsed)
				}
			}
		}
		if r.TriggerMetadata != nil {
			rule.Keywords = r.TriggerMetadata.KeywordFilter
			if r.TriggerMetadata.AllowList != nil {
				rule.AllowList = *r.TriggerMetadata.AllowList
			}
		}
		out = append(out, rule)
	}
	return out
}

func buildComponents(buttons []service.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return nil
	}
	row := discordgo.ActionsRow{}
	for _, btn := range buttons {
		style := discordgo.PrimaryButton
		if btn.Danger {
			style = discordgo.DangerButton
		}
		component := discordgo.Button{
			Label:    btn.Label,
			Style:    style,
			CustomID: btn.CustomID,
		}
		if btn.Emoji != "" {
			component.Emoji = &discordgo.ComponentEmoji{Name: btn.Emoji}
		}
		row.Components = append(row.Components, component)
	}
	return []discordgo.MessageComponent{row}
}

// channel resolves a channel from state, falling back to the REST API
func (p *Platform) channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := p.session.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return p.session.Channel(channelID)
}

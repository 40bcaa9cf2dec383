package service

import (
	"context"
	"errors"
	"strconv"

	log "github.com/sirupsen/logrus"

	"lobbybot/models"
)

// panelMessage builds the channel control panel: the owner mention plus the
// rename/limit/locale/transfer buttons the interaction layer routes by
// custom id.
func (e *Engine) panelMessage(tag string, ch *models.DynamicChannel) Message {
	suffix := strconv.FormatInt(ch.ChannelID, 10)
	return Message{
		Content: e.localizer.Get(tag, "panel:title") + "\n" + e.localizer.Get(tag, "panel:owner_field", ch.OwnerID),
		Buttons: []Button{
			{CustomID: "rename_button:" + suffix, Label: e.localizer.Get(tag, "panel:rename_button"), Emoji: "✏️"},
			{CustomID: "limit_button:" + suffix, Label: e.localizer.Get(tag, "panel:limit_button"), Emoji: "🔢"},
			{CustomID: "locale_button:" + suffix, Label: e.localizer.Get(tag, "panel:locale_button"), Emoji: "🌐"},
			{CustomID: "transfer_button:" + suffix, Label: e.localizer.Get(tag, "panel:transfer_button"), Emoji: "🤝", Danger: true},
		},
	}
}

// createPanel posts the control panel into a freshly provisioned channel and
// records the message id so it is only ever posted once.
func (e *Engine) createPanel(ctx context.Context, cfg *models.GuildConfig, ch *models.DynamicChannel) error {
	msg := e.panelMessage(ch.Locale(cfg.PreferredLocale), ch)
	messageID, err := e.platform.SendMessage(ctx, ch.ChannelID, msg)
	if err != nil {
		if errors.Is(err, ErrGone) {
			// Channel deleted between provisioning and the panel post
			return nil
		}
		return err
	}

	ch.PanelMessageID = &messageID
	if err := e.channels.Modify(ctx, ch); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"channelID": ch.ChannelID,
		"messageID": messageID,
	}).Debug("Posted control panel")
	return nil
}

// refreshPanel rewrites the panel after an ownership change. A panel that was
// never posted, or whose message was deleted by hand, is not an error.
func (e *Engine) refreshPanel(ctx context.Context, cfg *models.GuildConfig, ch *models.DynamicChannel) {
	if !ch.HasPanel() {
		return
	}
	msg := e.panelMessage(ch.Locale(cfg.PreferredLocale), ch)
	if err := e.platform.ModifyMessage(ctx, ch.ChannelID, *ch.PanelMessageID, msg); err != nil && !errors.Is(err, ErrGone) {
		log.WithError(err).WithField("channelID", ch.ChannelID).Warn("Failed to refresh control panel")
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"lobbybot/automod"
	"lobbybot/models"
)

// maxNameLength mirrors the platform's channel name cap
const maxNameLength = 100

// Rename changes a dynamic channel's name on the owner's request. The new
// name runs through the same keyword filter as provisioning; owners do not
// get to smuggle in a name the filter would have blocked at creation.
func (e *Engine) Rename(ctx context.Context, cfg *models.GuildConfig, caller Member, channelID int64, name string) (*Rejection, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return reject(RejectBlockedName, "rename:blocked"), nil
	}

	key := channelKey(channelID)
	e.keys.Lock(key)
	defer e.keys.Unlock(key)

	ch, err := e.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return reject(RejectUnknownChannel, "claim:unknown_channel_error"), nil
	}
	if ch.OwnerID != caller.ID {
		return reject(RejectNotOwner, "transfer:not_owner_error"), nil
	}

	if cfg.AutomodActive() {
		rules, err := e.platform.AutoModRules(ctx, cfg.GuildID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch automod rules for guild %d: %w", cfg.GuildID, err)
		}
		if match, blocked := automod.IsBlocked(name, caller.RoleIDs, cfg.AutomodRuleIDs, rules); blocked {
			log.WithFields(log.Fields{
				"channelID": channelID,
				"rule":      match.RuleName,
				"keyword":   match.Keyword,
			}).Info("Rename blocked by automod rule")
			e.reportBlockedName(ctx, cfg, caller, match)
			return reject(RejectBlockedName, "rename:blocked"), nil
		}
	}

	if err := e.platform.RenameRoom(ctx, channelID, name); err != nil {
		if errors.Is(err, ErrGone) {
			return reject(RejectUnknownChannel, "claim:unknown_channel_error"), nil
		}
		return nil, fmt.Errorf("failed to rename channel %d: %w", channelID, err)
	}
	return nil, nil
}

// SetLimit changes a dynamic channel's user limit on the owner's request.
// Zero means unlimited; anything above the guild's configured maximum is
// rejected.
func (e *Engine) SetLimit(ctx context.Context, cfg *models.GuildConfig, caller Member, channelID int64, limit int) (*Rejection, error) {
	max := cfg.LobbySize()
	if cfg.MaxLobbySize != nil && *cfg.MaxLobbySize > 0 {
		max = int(*cfg.MaxLobbySize)
	}
	if limit < 0 || limit > max {
		return reject(RejectChannelLimit, "limit:invalid", max), nil
	}

	key := channelKey(channelID)
	e.keys.Lock(key)
	defer e.keys.Unlock(key)

	ch, err := e.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return reject(RejectUnknownChannel, "claim:unknown_channel_error"), nil
	}
	if ch.OwnerID != caller.ID {
		return reject(RejectNotOwner, "transfer:not_owner_error"), nil
	}

	if err := e.platform.SetRoomUserLimit(ctx, channelID, limit); err != nil {
		if errors.Is(err, ErrGone) {
			return reject(RejectUnknownChannel, "claim:unknown_channel_error"), nil
		}
		return nil, fmt.Errorf("failed to set user limit on channel %d: %w", channelID, err)
	}
	return nil, nil
}

// SetLocale stores a per-channel language override and redraws the panel in
// the new language.
func (e *Engine) SetLocale(ctx context.Context, cfg *models.GuildConfig, caller Member, channelID int64, tag string) (*Rejection, error) {
	if !slices.Contains(e.localizer.Tags(), tag) {
		return reject(RejectInvalidLocale, "locale:invalid", tag), nil
	}

	key := channelKey(channelID)
	e.keys.Lock(key)
	defer e.keys.Unlock(key)

	ch, err := e.channels.Get(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return reject(RejectUnknownChannel, "claim:unknown_channel_error"), nil
	}
	if ch.OwnerID != caller.ID {
		return reject(RejectNotOwner, "transfer:not_owner_error"), nil
	}

	ch.PreferredLocale = &tag
	if err := e.channels.Modify(ctx, ch); err != nil {
		return nil, err
	}
	e.refreshPanel(ctx, cfg, ch)
	return nil, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"lobbybot/automod"
	"lobbybot/cache"
	"lobbybot/events"
	"lobbybot/gracetimer"
	"lobbybot/models"
	"lobbybot/repository"
)

// Engine orchestrates the dynamic channel lifecycle: provisioning on trigger
// channel joins, teardown on empty, abandonment grace timers, and ownership
// claims and transfers. It is the sole writer of both entity kinds and
// serializes all work per channel and per owner.
type Engine struct {
	platform  Platform
	configs   *cache.GuildConfigCache
	channels  *cache.ChannelCache
	timers    *gracetimer.Registry
	localizer Localizer
	bus       *events.Bus
	keys      *keyMutex
}

// NewEngine creates the lifecycle engine. The timer registry is owned by the
// caller; the engine only starts and stops timers on it.
func NewEngine(
	platform Platform,
	configs *cache.GuildConfigCache,
	channels *cache.ChannelCache,
	timers *gracetimer.Registry,
	localizer Localizer,
	bus *events.Bus,
) *Engine {
	return &Engine{
		platform:  platform,
		configs:   configs,
		channels:  channels,
		timers:    timers,
		localizer: localizer,
		bus:       bus,
		keys:      newKeyMutex(),
	}
}

// Configs exposes the guild config cache. Admin configuration commands read
// and write through the same cache the engine uses, so the engine always
// observes committed configuration.
func (e *Engine) Configs() *cache.GuildConfigCache { return e.configs }

// Channels exposes the dynamic channel cache for read-only consumers
func (e *Engine) Channels() *cache.ChannelCache { return e.channels }

func channelKey(channelID int64) string {
	return "channel:" + strconv.FormatInt(channelID, 10)
}

func ownerKey(guildID, ownerID int64) string {
	return "owner:" + strconv.FormatInt(guildID, 10) + ":" + strconv.FormatInt(ownerID, 10)
}

// HandleJoin processes a voice join. Joins to anything but the guild's
// trigger channel are ignored. Failing an eligibility gate disconnects the
// user from voice; otherwise their channel is provisioned (or found) and they
// are moved into it.
func (e *Engine) HandleJoin(ctx context.Context, cfg *models.GuildConfig, m Member, joinedChannelID int64) error {
	if !cfg.HasCreateChannel() || joinedChannelID != *cfg.CreateChannelID {
		return nil
	}

	opLog := log.WithFields(log.Fields{
		"op":      uuid.NewString(),
		"guildID": cfg.GuildID,
		"userID":  m.ID,
	})
	opLog.Info("User joined the create channel")

	key := ownerKey(cfg.GuildID, m.ID)
	e.keys.Lock(key)
	defer e.keys.Unlock(key)

	if rej := runGuards(ownershipGuards(cfg, m)...); rej != nil {
		opLog.WithField("reason", rej.Reason).Info("Join rejected, disconnecting user")
		return e.disconnect(ctx, cfg.GuildID, m.ID)
	}

	ch, err := e.channels.GetByOwner(ctx, cfg.GuildID, m.ID)
	if err != nil {
		return err
	}
	if ch != nil {
		if _, err := e.platform.RoomOccupants(ctx, cfg.GuildID, ch.ChannelID); err != nil {
			if !errors.Is(err, ErrGone) {
				return err
			}
			// Record points at a room that no longer exists
			opLog.WithField("channelID", ch.ChannelID).Debug("Evicting stale record for a missing room")
			if err := e.channels.Delete(ctx, ch.ChannelID); err != nil {
				return err
			}
			ch = nil
		}
	}

	if ch == nil {
		ch, err = e.provision(ctx, cfg, m, opLog)
		if err != nil || ch == nil {
			return err
		}
	}

	if err := e.platform.MoveUser(ctx, cfg.GuildID, m.ID, &ch.ChannelID); err != nil {
		if errors.Is(err, ErrGone) {
			opLog.Debug("User left voice before they could be moved")
			return nil
		}
		return fmt.Errorf("failed to move user %d to channel %d: %w", m.ID, ch.ChannelID, err)
	}

	// The owner is back, their channel is no longer abandoned
	e.timers.StopTimer(ch.ChannelID)

	if !ch.HasPanel() {
		if err := e.createPanel(ctx, cfg, ch); err != nil {
			return err
		}
	}
	return nil
}

// provision runs the pre-create gates and creates the room plus its record.
// Returns (nil, nil) when a gate rejected the join and the user was
// disconnected.
func (e *Engine) provision(ctx context.Context, cfg *models.GuildConfig, m Member, opLog *log.Entry) (*models.DynamicChannel, error) {
	name := e.localizer.Get(cfg.PreferredLocale, "channel:default_name", m.DisplayName)

	if cfg.AutomodActive() {
		rules, err := e.platform.AutoModRules(ctx, cfg.GuildID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch automod rules for guild %d: %w", cfg.GuildID, err)
		}
		if match, blocked := automod.IsBlocked(name, m.RoleIDs, cfg.AutomodRuleIDs, rules); blocked {
			opLog.WithFields(log.Fields{
				"rule":    match.RuleName,
				"keyword": match.Keyword,
			}).Info("Channel name blocked by automod rule")
			e.reportBlockedName(ctx, cfg, m, match)
			return nil, e.disconnect(ctx, cfg.GuildID, m.ID)
		}
	}

	if cfg.MaxChannels != nil {
		count, err := e.channels.CountByGuild(ctx, cfg.GuildID)
		if err != nil {
			return nil, err
		}
		if count >= int(*cfg.MaxChannels) {
			opLog.WithField("maxChannels", *cfg.MaxChannels).Info("Guild reached its dynamic channel limit")
			return nil, e.disconnect(ctx, cfg.GuildID, m.ID)
		}
	}

	roomID, err := e.platform.CreateVoiceRoom(ctx, cfg.GuildID, CreateRoomRequest{
		TriggerChannelID: *cfg.CreateChannelID,
		Name:             name,
		OwnerID:          m.ID,
		UserLimit:        cfg.LobbySize(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create voice channel for user %d: %w", m.ID, err)
	}

	ch := &models.DynamicChannel{
		ChannelID: roomID,
		GuildID:   cfg.GuildID,
		CreatorID: m.ID,
		OwnerID:   m.ID,
	}
	created, err := e.channels.TryCreate(ctx, ch)
	if err != nil || !created {
		// Never leave an unrecorded room behind
		if derr := e.platform.DeleteRoom(ctx, roomID); derr != nil && !errors.Is(derr, ErrGone) {
			opLog.WithError(derr).Error("Failed to delete unrecorded voice channel")
		}
		if err != nil {
			return nil, err
		}
		opLog.Debug("Lost a provisioning race, reusing the existing record")
		return e.channels.GetByOwner(ctx, cfg.GuildID, m.ID)
	}

	opLog.WithField("channelID", roomID).Info("Provisioned dynamic channel")
	e.bus.Emit(ctx, events.ChannelCreatedEvent{ChannelID: roomID, GuildID: cfg.GuildID, OwnerID: m.ID})
	return ch, nil
}

// HandleLeave processes a voice leave. Leaves of unknown channels are
// ignored. An emptied channel is torn down immediately regardless of grace
// state; a channel whose owner left while others remain gets a grace timer.
func (e *Engine) HandleLeave(ctx context.Context, cfg *models.GuildConfig, m Member, leftChannelID int64) error {
	known, err := e.channels.Exists(ctx, leftChannelID)
	if err != nil {
		return err
	}
	if !known {
		return nil
	}

	key := channelKey(leftChannelID)
	e.keys.Lock(key)
	defer e.keys.Unlock(key)

	ch, err := e.channels.Get(ctx, leftChannelID)
	if err != nil {
		return err
	}
	if ch == nil {
		// Deleted while waiting for the lock
		return nil
	}

	occupants, err := e.platform.RoomOccupants(ctx, cfg.GuildID, leftChannelID)
	if err != nil && !errors.Is(err, ErrGone) {
		return err
	}

	if len(occupants) == 0 {
		log.WithFields(log.Fields{
			"guildID":   cfg.GuildID,
			"channelID": leftChannelID,
		}).Info("Dynamic channel emptied, deleting")
		return e.teardown(ctx, ch)
	}

	if ch.OwnerID == m.ID {
		payload := gracetimer.Payload{
			ChannelID: ch.ChannelID,
			GuildID:   ch.GuildID,
			OwnerID:   ch.OwnerID,
			Locale:    ch.Locale(cfg.PreferredLocale),
		}
		if e.timers.StartTimer(ch.ChannelID, payload, cfg.GracePeriod(), e.postClaimPrompt) {
			log.WithFields(log.Fields{
				"channelID": ch.ChannelID,
				"ownerID":   ch.OwnerID,
			}).Info("Owner left an occupied channel, grace timer started")
			e.bus.Emit(ctx, events.ChannelAbandonedEvent{ChannelID: ch.ChannelID, GuildID: ch.GuildID, OwnerID: ch.OwnerID})
		}
	}
	return nil
}

// teardown removes a channel from the platform and the store, in that order,
// after cancelling any grace timer. "Already gone" from the platform counts
// as success; another path may have raced ahead.
func (e *Engine) teardown(ctx context.Context, ch *models.DynamicChannel) error {
	e.timers.StopTimer(ch.ChannelID)

	if err := e.platform.DeleteRoom(ctx, ch.ChannelID); err != nil {
		if !errors.Is(err, ErrGone) {
			return fmt.Errorf("failed to delete voice channel %d: %w", ch.ChannelID, err)
		}
		log.WithField("channelID", ch.ChannelID).Debug("Voice channel already deleted")
	}

	if err := e.channels.Delete(ctx, ch.ChannelID); err != nil {
		return err
	}

	e.bus.Emit(ctx, events.ChannelDeletedEvent{ChannelID: ch.ChannelID, GuildID: ch.GuildID})
	return nil
}

// postClaimPrompt runs on the timer goroutine when a grace period expires
// without the owner returning. It posts a message with a claim button unless
// the channel was deleted or claimed in the meantime.
func (e *Engine) postClaimPrompt(p gracetimer.Payload) {
	ctx := context.Background()

	key := channelKey(p.ChannelID)
	e.keys.Lock(key)
	defer e.keys.Unlock(key)

	ch, err := e.channels.Get(ctx, p.ChannelID)
	if err != nil {
		log.WithError(err).WithField("channelID", p.ChannelID).Error("Failed to load channel for claim prompt")
		return
	}
	if ch == nil || ch.OwnerID != p.OwnerID {
		// Deleted or already claimed while the timer was pending
		return
	}

	msg := Message{
		Content: e.localizer.Get(p.Locale, "claim:prompt", p.OwnerID),
		Buttons: []Button{{
			CustomID: "claim_button:" + strconv.FormatInt(p.ChannelID, 10),
			Label:    e.localizer.Get(p.Locale, "claim:button"),
			Emoji:    "❗",
		}},
	}
	if _, err := e.platform.SendMessage(ctx, p.ChannelID, msg); err != nil && !errors.Is(err, ErrGone) {
		log.WithError(err).WithField("channelID", p.ChannelID).Error("Failed to post claim prompt")
	}
}

// Claim makes an eligible, present user the owner of an abandoned channel.
// Exactly one of two concurrent claims can win; the loser receives a
// rejection. A nil rejection and nil error means the claim succeeded.
func (e *Engine) Claim(ctx context.Context, cfg *models.GuildConfig, claimant Member, channelID int64) (*Rejection, error) {
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

	if rej := runGuards(ownershipGuards(cfg, claimant)...); rej != nil {
		return rej, nil
	}

	occupants, err := e.platform.RoomOccupants(ctx, cfg.GuildID, channelID)
	if err != nil {
		if errors.Is(err, ErrGone) {
			// The room vanished; heal the record and reject
			if derr := e.channels.Delete(ctx, channelID); derr != nil {
				return nil, derr
			}
			return reject(RejectUnknownChannel, "claim:unknown_channel_error"), nil
		}
		return nil, err
	}

	if rej := runGuards(
		presentGuard(occupants, claimant.ID, RejectNotInChannel, "claim:not_in_channel_error"),
	); rej != nil {
		return rej, nil
	}

	owned, err := e.channels.GetByOwner(ctx, cfg.GuildID, claimant.ID)
	if err != nil {
		return nil, err
	}
	if owned != nil {
		return reject(RejectAlreadyOwner, "claim:already_owner_error", owned.ChannelID), nil
	}

	if slices.Contains(occupants, ch.OwnerID) {
		return reject(RejectNotAbandoned, "claim:not_abandoned_error"), nil
	}

	previousOwner := ch.OwnerID
	swapped, err := e.channels.SwapOwner(ctx, channelID, previousOwner, claimant.ID)
	if err != nil {
		if errors.Is(err, repository.ErrChannelExists) {
			return reject(RejectAlreadyOwner, "claim:already_owner_error", channelID), nil
		}
		return nil, err
	}
	if !swapped {
		return reject(RejectLostRace, "claim:lost_race_error"), nil
	}

	e.timers.StopTimer(channelID)

	if err := e.moveOwnerGrants(ctx, channelID, previousOwner, claimant.ID); err != nil {
		return nil, err
	}

	ch.OwnerID = claimant.ID
	e.refreshPanel(ctx, cfg, ch)

	log.WithFields(log.Fields{
		"channelID": channelID,
		"oldOwner":  previousOwner,
		"newOwner":  claimant.ID,
	}).Info("Channel claimed")
	e.bus.Emit(ctx, events.OwnerChangedEvent{
		ChannelID: channelID,
		GuildID:   cfg.GuildID,
		OldOwner:  previousOwner,
		NewOwner:  claimant.ID,
		Claimed:   true,
	})
	return nil, nil
}

// Transfer is the owner-initiated variant of the ownership swap. The caller
// must currently own the channel and be present in it, and the target must be
// present and pass the same eligibility gates as a claimant.
func (e *Engine) Transfer(ctx context.Context, cfg *models.GuildConfig, owner Member, target Member, channelID int64) (*Rejection, error) {
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
	if ch.OwnerID != owner.ID {
		return reject(RejectNotOwner, "transfer:not_owner_error"), nil
	}

	occupants, err := e.platform.RoomOccupants(ctx, cfg.GuildID, channelID)
	if err != nil && !errors.Is(err, ErrGone) {
		return nil, err
	}

	if rej := runGuards(
		presentGuard(occupants, owner.ID, RejectNotInChannel, "transfer:not_in_voice_error"),
		presentGuard(occupants, target.ID, RejectTargetAbsent, "transfer:target_not_present_error"),
	); rej != nil {
		return rej, nil
	}

	if rej := runGuards(ownershipGuards(cfg, target)...); rej != nil {
		return rej, nil
	}

	owned, err := e.channels.GetByOwner(ctx, cfg.GuildID, target.ID)
	if err != nil {
		return nil, err
	}
	if owned != nil {
		return reject(RejectAlreadyOwner, "claim:already_owner_error", owned.ChannelID), nil
	}

	swapped, err := e.channels.SwapOwner(ctx, channelID, owner.ID, target.ID)
	if err != nil {
		if errors.Is(err, repository.ErrChannelExists) {
			return reject(RejectAlreadyOwner, "claim:already_owner_error", channelID), nil
		}
		return nil, err
	}
	if !swapped {
		return reject(RejectLostRace, "claim:lost_race_error"), nil
	}

	e.timers.StopTimer(channelID)

	if err := e.moveOwnerGrants(ctx, channelID, owner.ID, target.ID); err != nil {
		return nil, err
	}

	ch.OwnerID = target.ID
	e.refreshPanel(ctx, cfg, ch)

	log.WithFields(log.Fields{
		"channelID": channelID,
		"oldOwner":  owner.ID,
		"newOwner":  target.ID,
	}).Info("Channel ownership transferred")
	e.bus.Emit(ctx, events.OwnerChangedEvent{
		ChannelID: channelID,
		GuildID:   cfg.GuildID,
		OldOwner:  owner.ID,
		NewOwner:  target.ID,
		Claimed:   false,
	})
	return nil, nil
}

// ReapOrphan deletes a persisted channel whose platform room is missing or
// empty. Called by the reconciliation sweep; serialized per channel against
// the event path. Returns true when the channel was removed.
func (e *Engine) ReapOrphan(ctx context.Context, channelID int64) (bool, error) {
	key := channelKey(channelID)
	e.keys.Lock(key)
	defer e.keys.Unlock(key)

	ch, err := e.channels.Get(ctx, channelID)
	if err != nil {
		return false, err
	}
	if ch == nil {
		return false, nil
	}

	occupants, err := e.platform.RoomOccupants(ctx, ch.GuildID, channelID)
	if err != nil && !errors.Is(err, ErrGone) {
		return false, err
	}
	if err == nil && len(occupants) > 0 {
		return false, nil
	}

	if err := e.teardown(ctx, ch); err != nil {
		return false, err
	}
	e.bus.Emit(ctx, events.SweepReapEvent{ChannelID: channelID, GuildID: ch.GuildID})
	return true, nil
}

// PurgeGuild drops all persisted state for a guild the bot was removed from:
// every channel record and its grace timer, then the guild config. No platform
// calls are made; the bot has no access to the guild's channels anymore.
func (e *Engine) PurgeGuild(ctx context.Context, guildID int64) error {
	channels, err := e.channels.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list channels for guild purge: %w", err)
	}

	for _, ch := range channels {
		if ch.GuildID != guildID {
			continue
		}
		key := channelKey(ch.ChannelID)
		e.keys.Lock(key)
		e.timers.StopTimer(ch.ChannelID)
		err := e.channels.Delete(ctx, ch.ChannelID)
		e.keys.Unlock(key)
		if err != nil {
			return fmt.Errorf("failed to delete channel %d during guild purge: %w", ch.ChannelID, err)
		}
		e.bus.Emit(ctx, events.ChannelDeletedEvent{ChannelID: ch.ChannelID, GuildID: guildID})
	}

	if err := e.configs.Delete(ctx, guildID); err != nil {
		return fmt.Errorf("failed to delete config during guild purge: %w", err)
	}
	log.WithField("guildID", guildID).Info("Purged guild state")
	return nil
}

// disconnect moves a user out of voice entirely. A user who already left is
// not an error.
func (e *Engine) disconnect(ctx context.Context, guildID, userID int64) error {
	if err := e.platform.MoveUser(ctx, guildID, userID, nil); err != nil && !errors.Is(err, ErrGone) {
		return fmt.Errorf("failed to disconnect user %d: %w", userID, err)
	}
	return nil
}

// moveOwnerGrants revokes the previous owner's permission overwrite and
// grants the new owner's. Both tolerate targets that already vanished.
func (e *Engine) moveOwnerGrants(ctx context.Context, channelID, oldOwner, newOwner int64) error {
	if err := e.platform.RevokeOwnerPermissions(ctx, channelID, oldOwner); err != nil && !errors.Is(err, ErrGone) {
		return fmt.Errorf("failed to revoke owner permissions from %d: %w", oldOwner, err)
	}
	if err := e.platform.GrantOwnerPermissions(ctx, channelID, newOwner); err != nil && !errors.Is(err, ErrGone) {
		return fmt.Errorf("failed to grant owner permissions to %d: %w", newOwner, err)
	}
	return nil
}

func (e *Engine) reportBlockedName(ctx context.Context, cfg *models.GuildConfig, m Member, match automod.Match) {
	if cfg.AutomodLogChannelID == nil {
		return
	}
	report := Message{
		Content: e.localizer.Get(cfg.PreferredLocale, "automod:blocked_report", m.ID, match.RuleName, match.Keyword),
	}
	if _, err := e.platform.SendMessage(ctx, *cfg.AutomodLogChannelID, report); err != nil && !errors.Is(err, ErrGone) {
		log.WithError(err).Warn("Failed to report blocked channel name")
	}
}

package service

import (
	"context"
	"errors"

	"lobbybot/automod"
)

// ErrGone is the idempotent-success signal for platform calls: the target
// channel, message or voice member no longer exists. Adapters map the
// platform's "unknown channel" / "not connected to voice" errors to this
// sentinel so callers can treat an already-completed removal as success.
var ErrGone = errors.New("platform target no longer exists")

// Member is the caller-facing view of a guild member, captured at the moment
// an event or command arrives.
type Member struct {
	ID          int64
	DisplayName string
	RoleIDs     []int64
	Deafened    bool // server-deafened
	Muted       bool // server-muted
}

// CreateRoomRequest describes a new voice channel to provision. The new
// channel inherits permissions from the trigger channel's category, plus a
// voice-management grant for the owner.
type CreateRoomRequest struct {
	TriggerChannelID int64
	Name             string
	OwnerID          int64
	UserLimit        int
}

// Button is a message component the interaction layer knows how to render
// and route back by its custom id.
type Button struct {
	CustomID string
	Label    string
	Emoji    string
	Danger   bool
}

// Message is platform-agnostic message content with optional buttons
type Message struct {
	Content string
	Buttons []Button
}

// Platform is the chat service surface the engine drives. Implementations
// must return ErrGone (possibly wrapped) for targets that already vanished.
type Platform interface {
	// CreateVoiceRoom provisions a voice channel and returns its id
	CreateVoiceRoom(ctx context.Context, guildID int64, req CreateRoomRequest) (int64, error)

	// DeleteRoom removes a voice channel
	DeleteRoom(ctx context.Context, channelID int64) error

	// MoveUser moves a user to a voice channel, or disconnects them when
	// channelID is nil
	MoveUser(ctx context.Context, guildID, userID int64, channelID *int64) error

	// GrantOwnerPermissions applies the owner's voice-management permission
	// overwrite to a channel
	GrantOwnerPermissions(ctx context.Context, channelID, userID int64) error

	// RevokeOwnerPermissions removes a user's permission overwrite from a channel
	RevokeOwnerPermissions(ctx context.Context, channelID, userID int64) error

	// RoomOccupants returns the user ids currently connected to a voice
	// channel. Returns ErrGone if the channel does not exist.
	RoomOccupants(ctx context.Context, guildID, channelID int64) ([]int64, error)

	// SendMessage posts a message into a channel and returns the message id
	SendMessage(ctx context.Context, channelID int64, msg Message) (int64, error)

	// ModifyMessage replaces the content of an existing message
	ModifyMessage(ctx context.Context, channelID, messageID int64, msg Message) error

	// RenameRoom changes a voice channel's name
	RenameRoom(ctx context.Context, channelID int64, name string) error

	// SetRoomUserLimit changes a voice channel's occupancy limit
	SetRoomUserLimit(ctx context.Context, channelID int64, limit int) error

	// AutoModRules returns the guild's moderation rules
	AutoModRules(ctx context.Context, guildID int64) ([]automod.Rule, error)
}

// Localizer renders user-facing strings for a language tag
type Localizer interface {
	Get(tag, key string, args ...any) string

	// Tags lists the language tags translations exist for
	Tags() []string
}

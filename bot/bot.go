package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"lobbybot/models"
	"lobbybot/service"
)

// Config holds bot configuration
type Config struct {
	Token string
}

// Bot manages the Discord session and routes gateway events into the
// lifecycle engine.
type Bot struct {
	config    Config
	session   *discordgo.Session
	engine    *service.Engine
	localizer service.Localizer

	mu     sync.RWMutex
	guilds map[int64]struct{}
}

// New creates the bot, opens the gateway connection and registers the slash
// commands. The engine must already be wired to a Platform created from the
// same session via NewPlatform.
func New(config Config, session *discordgo.Session, engine *service.Engine, localizer service.Localizer) (*Bot, error) {
	b := &Bot{
		config:    config,
		session:   session,
		engine:    engine,
		localizer: localizer,
		guilds:    make(map[int64]struct{}),
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers

	session.AddHandler(b.handleVoiceStateUpdate)
	session.AddHandler(b.handleGuildCreate)
	session.AddHandler(b.handleGuildDelete)
	session.AddHandler(b.handleInteraction)

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	if err := b.registerCommands(); err != nil {
		session.Close()
		return nil, fmt.Errorf("error registering commands: %w", err)
	}

	log.Info("Bot connected and commands registered")
	return b, nil
}

// NewSession creates a configured Discord session without opening it
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	return dg, nil
}

// InGuild reports whether the bot currently sees the guild. Used by the
// reconciliation sweeper to leave records of unavailable guilds alone.
func (b *Bot) InGuild(guildID int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.guilds[guildID]
	return ok
}

func (b *Bot) trackGuild(guildID int64) {
	b.mu.Lock()
	b.guilds[guildID] = struct{}{}
	b.mu.Unlock()
}

func (b *Bot) untrackGuild(guildID int64) {
	b.mu.Lock()
	delete(b.guilds, guildID)
	b.mu.Unlock()
}

// Close gracefully shuts down the bot
func (b *Bot) Close() error {
	return b.session.Close()
}

// guildConfig loads the guild's configuration, or nil when none exists or
// the guild is banned.
func (b *Bot) guildConfig(ctx context.Context, guildID int64) (*models.GuildConfig, error) {
	cfg, err := b.engine.Configs().Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if cfg == nil || cfg.Banned() {
		return nil, nil
	}
	return cfg, nil
}

package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"lobbybot/bot"
	"lobbybot/cache"
	"lobbybot/config"
	"lobbybot/database"
	"lobbybot/events"
	"lobbybot/gracetimer"
	"lobbybot/locale"
	"lobbybot/observability"
	"lobbybot/repository"
	"lobbybot/service"
	"lobbybot/sweeper"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting lobbybot...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()

	// Initialize metrics
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics.SubscribeToEvents(eventBus)

	// Initialize translations
	localizer, err := locale.NewProvider()
	if err != nil {
		return fmt.Errorf("failed to load translations: %w", err)
	}

	// Initialize repositories and caches
	configCache := cache.NewGuildConfigCache(repository.NewGuildConfigRepository(db), metrics)
	channelCache := cache.NewChannelCache(repository.NewDynamicChannelRepository(db), metrics)

	// Initialize grace timers
	timers := gracetimer.New()

	// Initialize Discord session and the lifecycle engine
	log.Println("Initializing Discord bot...")
	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}

	engine := service.NewEngine(
		bot.NewPlatform(session),
		configCache,
		channelCache,
		timers,
		localizer,
		eventBus,
	)

	discordBot, err := bot.New(bot.Config{Token: cfg.DiscordToken}, session, engine, localizer)
	if err != nil {
		return fmt.Errorf("failed to initialize Discord bot: %w", err)
	}
	log.Println("Discord bot initialized successfully")

	// Start the reconciliation sweeper
	stopSweeper := sweeper.New(engine, channelCache, discordBot, cfg.CleanupInterval).Start(ctx)

	// Wait for context cancellation
	log.Printf("Bot is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Println("Shutting down bot...")
	stopSweeper()
	timers.Close()

	if err := discordBot.Close(); err != nil {
		log.Printf("Error closing Discord bot: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down metrics: %v", err)
	}

	log.Println("Closing database connection...")
	db.Close()

	log.Println("Shutdown completed")
	return nil
}

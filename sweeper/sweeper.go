// Package sweeper runs the periodic reconciliation pass that repairs drift
// between persisted channel records and the live platform state. Events can
// be missed across restarts or outages; the sweep guarantees convergence.
package sweeper

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"lobbybot/models"
)

// Reaper removes a single orphaned channel. Implemented by the lifecycle
// engine, which serializes the reap against its event handling per channel.
type Reaper interface {
	ReapOrphan(ctx context.Context, channelID int64) (bool, error)
}

// Lister enumerates all persisted dynamic channel records
type Lister interface {
	List(ctx context.Context) ([]*models.DynamicChannel, error)
}

// GuildChecker reports whether the bot is currently a member of a guild.
// Records for guilds the bot cannot see are left alone; their state is
// unknowable, not orphaned.
type GuildChecker interface {
	InGuild(guildID int64) bool
}

// Sweeper is the reconciliation worker
type Sweeper struct {
	reaper   Reaper
	channels Lister
	guilds   GuildChecker
	interval time.Duration
}

// New creates a sweeper that runs every interval
func New(reaper Reaper, channels Lister, guilds GuildChecker, interval time.Duration) *Sweeper {
	return &Sweeper{
		reaper:   reaper,
		channels: channels,
		guilds:   guilds,
		interval: interval,
	}
}

// Start runs the sweep loop on its own goroutine, sweeping once immediately
// and then on every tick. Returns a cleanup function to stop the worker
// gracefully.
func (s *Sweeper) Start(ctx context.Context) func() {
	ticker := time.NewTicker(s.interval)
	stopChan := make(chan struct{})

	go func() {
		log.WithField("interval", s.interval).Info("Reconciliation sweeper started")

		// Run immediately on startup
		s.Sweep(ctx)

		for {
			select {
			case <-ctx.Done():
				log.Info("Reconciliation sweeper shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Reconciliation sweeper shutting down (stop requested)...")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()

	return func() {
		ticker.Stop()
		close(stopChan)
	}
}

// Sweep runs a single reconciliation pass. A failure on one channel never
// stops the rest of the pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	channels, err := s.channels.List(ctx)
	if err != nil {
		log.Errorf("Error listing channels for reconciliation sweep: %v", err)
		return
	}

	reaped := 0
	for _, ch := range channels {
		if !s.guilds.InGuild(ch.GuildID) {
			log.WithFields(log.Fields{
				"channelID": ch.ChannelID,
				"guildID":   ch.GuildID,
			}).Debug("Skipping channel in unavailable guild")
			continue
		}

		removed, err := s.reaper.ReapOrphan(ctx, ch.ChannelID)
		if err != nil {
			log.Errorf("Error reaping channel %d during sweep: %v", ch.ChannelID, err)
			continue
		}
		if removed {
			reaped++
		}
	}

	if reaped > 0 {
		log.WithFields(log.Fields{
			"checked": len(channels),
			"reaped":  reaped,
		}).Info("Reconciliation sweep removed orphaned channels")
	}
}

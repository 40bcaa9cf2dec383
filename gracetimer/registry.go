// Package gracetimer implements the per-channel abandonment timer registry.
// Each timer is a one-shot delayed callback keyed by channel id, used to post
// a claim prompt after a channel owner has been absent for the grace period.
package gracetimer

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Payload carries enough state for the expiry callback to post a claim prompt
// without consulting any shared state.
type Payload struct {
	ChannelID int64
	GuildID   int64
	OwnerID   int64
	Locale    string
}

// FireFunc is invoked once when a timer expires without being stopped
type FireFunc func(payload Payload)

type entry struct {
	timer   *time.Timer
	payload Payload
	fire    FireFunc
}

// Registry is a concurrent one-shot timer registry keyed by channel id.
// It is explicitly constructed and owned by the caller; Close cancels every
// outstanding timer.
type Registry struct {
	mu     sync.Mutex
	timers map[int64]*entry
	closed bool
}

// New creates an empty timer registry
func New() *Registry {
	return &Registry{timers: make(map[int64]*entry)}
}

// StartTimer registers a one-shot timer for a channel. Returns false without
// replacing anything if a timer for that channel is already registered, or if
// the registry has been closed. First writer wins.
func (r *Registry) StartTimer(channelID int64, payload Payload, d time.Duration, fire FireFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, exists := r.timers[channelID]; exists {
		log.WithField("channelID", channelID).Debug("Grace timer already running, not replacing")
		return false
	}

	e := &entry{payload: payload, fire: fire}
	e.timer = time.AfterFunc(d, func() { r.expire(channelID) })
	r.timers[channelID] = e

	log.WithFields(log.Fields{
		"channelID": channelID,
		"ownerID":   payload.OwnerID,
		"duration":  d,
	}).Debug("Grace timer started")
	return true
}

// StopTimer atomically removes and cancels the timer for a channel. Returns
// false if no timer is registered, including when the callback has already
// begun executing. Once StopTimer returns true the callback will not run.
func (r *Registry) StopTimer(channelID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.timers[channelID]
	if !ok {
		return false
	}
	delete(r.timers, channelID)
	e.timer.Stop()

	log.WithField("channelID", channelID).Debug("Grace timer stopped")
	return true
}

// Close cancels all outstanding timers. The registry accepts no new timers
// afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.timers {
		e.timer.Stop()
		delete(r.timers, id)
	}
	r.closed = true
}

// expire runs on the timer's own goroutine. The entry is removed before any
// side effect executes, so a fired timer cannot be double-stopped or
// double-fired: a StopTimer racing the expiry either wins the lock first and
// prevents the callback, or loses and returns false.
func (r *Registry) expire(channelID int64) {
	r.mu.Lock()
	e, ok := r.timers[channelID]
	if !ok {
		// Stopped between the tick and acquiring the lock
		r.mu.Unlock()
		return
	}
	delete(r.timers, channelID)
	r.mu.Unlock()

	log.WithFields(log.Fields{
		"channelID": channelID,
		"ownerID":   e.payload.OwnerID,
	}).Debug("Grace timer expired")
	e.fire(e.payload)
}

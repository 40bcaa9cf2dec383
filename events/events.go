package events

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeChannelCreated   EventType = "channel_created"
	EventTypeChannelDeleted   EventType = "channel_deleted"
	EventTypeChannelAbandoned EventType = "channel_abandoned"
	EventTypeOwnerChanged     EventType = "owner_changed"
	EventTypeSweepReap        EventType = "sweep_reap"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// ChannelCreatedEvent fires after a dynamic channel is provisioned and persisted
type ChannelCreatedEvent struct {
	ChannelID int64
	GuildID   int64
	OwnerID   int64
}

func (e ChannelCreatedEvent) Type() EventType { return EventTypeChannelCreated }

// ChannelDeletedEvent fires after a dynamic channel and its record are removed
type ChannelDeletedEvent struct {
	ChannelID int64
	GuildID   int64
}

func (e ChannelDeletedEvent) Type() EventType { return EventTypeChannelDeleted }

// ChannelAbandonedEvent fires when a grace timer is started for a channel
type ChannelAbandonedEvent struct {
	ChannelID int64
	GuildID   int64
	OwnerID   int64
}

func (e ChannelAbandonedEvent) Type() EventType { return EventTypeChannelAbandoned }

// OwnerChangedEvent fires after a successful claim or transfer
type OwnerChangedEvent struct {
	ChannelID int64
	GuildID   int64
	OldOwner  int64
	NewOwner  int64
	Claimed   bool // true for claim, false for owner-initiated transfer
}

func (e OwnerChangedEvent) Type() EventType { return EventTypeOwnerChanged }

// SweepReapEvent fires when the reconciliation sweep removes an orphaned channel
type SweepReapEvent struct {
	ChannelID int64
	GuildID   int64
}

func (e SweepReapEvent) Type() EventType { return EventTypeSweepReap }

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Subscription is a handle to a registered handler. Cancelling it removes the
// handler from the bus; cancelling twice is a no-op.
type Subscription struct {
	bus       *Bus
	eventType EventType
	id        uint64
}

// Cancel removes the subscribed handler from the bus
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if handlers, ok := s.bus.handlers[s.eventType]; ok {
		delete(handlers, s.id)
	}
	s.bus = nil
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventType]map[uint64]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType]map[uint64]Handler)}
}

// Subscribe adds a handler for a specific event type and returns a
// subscription the caller must cancel when it no longer wants events.
func (b *Bus) Subscribe(eventType EventType, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[uint64]Handler)
	}
	b.nextID++
	b.handlers[eventType][b.nextID] = handler

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")

	return &Subscription{bus: b, eventType: eventType, id: b.nextID}
}

// Emit publishes an event to all registered handlers. Handlers run on their
// own goroutines so emitters are never blocked.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.Type()]))
	for _, h := range b.handlers[event.Type()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType": event.Type(),
						"panic":     r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

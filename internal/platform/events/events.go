// Package events carries domain events (registrations, new requests and
// orders, status transitions) to the configured sinks.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	UserRegistered       = "user.registered"
	ProfileCompleted     = "user.profile_completed"
	RequestCreated       = "request.created"
	RequestStatusChanged = "request.status_changed"
	OrderCreated         = "order.created"
	OrderStatusChanged   = "order.status_changed"
	PrescriptionAttached = "order.prescription_attached"
	SessionStarted       = "session.started"
	SessionEnded         = "session.ended"
)

type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	EntityID   string            `json:"entityId"`
	UserID     string            `json:"userId,omitempty"`
	Actor      string            `json:"actor,omitempty"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
	Data       map[string]string `json:"data,omitempty"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType, entityID string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// LogPublisher writes each event as a structured log line.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, e Event) error {
	evt := p.logger.Info().
		Str("event_id", e.ID).
		Str("type", e.Type).
		Str("entity_id", e.EntityID)
	if e.UserID != "" {
		evt = evt.Str("user_id", e.UserID)
	}
	if e.Actor != "" {
		evt = evt.Str("actor", e.Actor)
	}
	if e.From != "" || e.To != "" {
		evt = evt.Str("from", e.From).Str("to", e.To)
	}
	evt.Msg("domain event")
	return nil
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logged wraps a publisher so that failures are logged and swallowed. Events
// are published after the store write has been committed.
func Logged(p Publisher, logger zerolog.Logger) Publisher {
	return loggedPublisher{next: p, logger: logger}
}

type loggedPublisher struct {
	next   Publisher
	logger zerolog.Logger
}

func (l loggedPublisher) Publish(ctx context.Context, e Event) error {
	if err := l.next.Publish(ctx, e); err != nil {
		l.logger.Error().Err(err).Str("type", e.Type).Str("entity_id", e.EntityID).Msg("publish event failed")
	}
	return nil
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of what has been recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters recorded events by type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

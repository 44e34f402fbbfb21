// Package events carries committed timeslot transitions over NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

type Kind string

const (
	KindCreated    Kind = "created"
	KindBooked     Kind = "booked"
	KindReassigned Kind = "reassigned"
	KindCancelled  Kind = "cancelled"
	KindCompleted  Kind = "completed"
	KindResized    Kind = "resized"
	KindDeleted    Kind = "deleted"
	KindSwept      Kind = "swept"
)

const subjectPrefix = "bookspot.timeslot"

// TimeslotEvent describes one committed transition.
type TimeslotEvent struct {
	Kind       Kind       `json:"kind"`
	TimeslotID uuid.UUID  `json:"timeslot_id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	ClientID   *uuid.UUID `json:"client_id,omitempty"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Status     string     `json:"status"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Subject is bookspot.timeslot.<kind>.<timeslot id>.
func (e TimeslotEvent) Subject() string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, e.Kind, e.TimeslotID)
}

// AllSubjects matches every timeslot event.
func AllSubjects() string {
	return subjectPrefix + ".>"
}

// KindFromSubject extracts the kind segment of a timeslot subject.
func KindFromSubject(subject string) (Kind, bool) {
	rest, ok := strings.CutPrefix(subject, subjectPrefix+".")
	if !ok {
		return "", false
	}
	kind, _, _ := strings.Cut(rest, ".")
	return Kind(kind), kind != ""
}

type Publisher interface {
	Publish(ctx context.Context, e TimeslotEvent) error
}

// ---------------------------------------------------------------------------
// NATS
// ---------------------------------------------------------------------------

type natsPublisher struct {
	nc *nats.Conn
}

// NewPublisher returns a NATS-backed publisher, or a no-op one when nc is nil.
func NewPublisher(nc *nats.Conn) Publisher {
	if nc == nil {
		return NopPublisher{}
	}
	return &natsPublisher{nc: nc}
}

func (p *natsPublisher) Publish(_ context.Context, e TimeslotEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(e.Subject(), data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Subject(), err)
	}
	return nil
}

// Subscribe decodes every timeslot event and hands it to fn. Malformed
// messages are logged and dropped.
func Subscribe(nc *nats.Conn, queue string, fn func(context.Context, TimeslotEvent)) (*nats.Subscription, error) {
	handler := func(msg *nats.Msg) {
		var e TimeslotEvent
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			slog.Warn("events: dropping malformed message", "subject", msg.Subject, "err", err)
			return
		}
		fn(context.Background(), e)
	}
	if queue == "" {
		return nc.Subscribe(AllSubjects(), handler)
	}
	return nc.QueueSubscribe(AllSubjects(), queue, handler)
}

// ---------------------------------------------------------------------------
// In-process
// ---------------------------------------------------------------------------

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, TimeslotEvent) error { return nil }

// Recorder keeps published events in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []TimeslotEvent
}

func (r *Recorder) Publish(_ context.Context, e TimeslotEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []TimeslotEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TimeslotEvent(nil), r.events...)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	evs := r.Events()
	out := make([]Kind, len(evs))
	for i, e := range evs {
		out[i] = e.Kind
	}
	return out
}

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/logging"
)

// Handler reacts to one event.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	name    string
	types   map[Type]bool // nil means every type
	handler Handler
}

// Bus is a synchronous publish/subscribe hub.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
	now  func() time.Time
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers a handler under a name used in logs. With no types
// the handler receives every event.
func (b *Bus) Subscribe(name string, h Handler, types ...Type) {
	sub := subscription{name: name, handler: h}
	if len(types) > 0 {
		sub.types = make(map[Type]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
}

// Publish delivers e to every matching handler in subscription order.
// A failing handler does not stop delivery; all failures are joined into
// the returned error.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = b.now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if s.types != nil && !s.types[e.Type] {
			continue
		}
		if err := s.handler(ctx, e); err != nil {
			logging.Error("Events", err, "handler %s failed on %s for %s", s.name, e.Type, e.Entity)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// PublishAll publishes events in order and joins any failures.
func (b *Bus) PublishAll(ctx context.Context, evs ...Event) error {
	var errs []error
	for _, e := range evs {
		if err := b.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

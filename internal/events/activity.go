package events

import (
	"context"
	"fmt"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
)

// ActivitySink persists audit records. The core emits; the sink stores.
type ActivitySink interface {
	RecordActivity(ctx context.Context, a domain.Activity) error
}

// ActivityRecorder turns every event into an Activity for the sink.
type ActivityRecorder struct {
	sink ActivitySink
}

// NewActivityRecorder creates a recorder writing to sink. A nil sink only
// logs.
func NewActivityRecorder(sink ActivitySink) *ActivityRecorder {
	return &ActivityRecorder{sink: sink}
}

// Attach subscribes the recorder to every event on the bus.
func (r *ActivityRecorder) Attach(b *Bus) {
	b.Subscribe("activity", r.Handle)
}

// Handle records one event.
func (r *ActivityRecorder) Handle(ctx context.Context, e Event) error {
	summary := e.Summary()
	logging.Debug("Activity", "%s %s: %s", e.ProjectID, e.Entity, summary)
	if r.sink == nil {
		return nil
	}
	err := r.sink.RecordActivity(ctx, domain.Activity{
		ProjectID: e.ProjectID,
		Entity:    e.Entity,
		Action:    string(e.Type),
		Detail:    summary,
		CreatedAt: e.At,
	})
	if err != nil {
		return fmt.Errorf("recording %s activity: %w", e.Type, err)
	}
	return nil
}

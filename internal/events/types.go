// Package events carries domain events between the core's components.
//
// Cascades are expressed as events instead of inline call chains: removing
// a Task publishes TaskRemoved, and the dependency service (drop the node
// and its edges), the aggregator (recompute the former parent) and the
// activity recorder (audit) each react on their own.
//
// Delivery is synchronous and in subscription order, inside the request
// that published the event.
package events

import (
	"fmt"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

// Type identifies what happened.
type Type string

const (
	// TaskCreated is published after a Task row exists. Task is set.
	TaskCreated Type = "TaskCreated"

	// TaskRemoved is published after a Task row is gone. Task holds the
	// removed Task, including its former FunctionID. Edges holds the
	// dependency rows deleted with it.
	TaskRemoved Type = "TaskRemoved"

	// StatusChanged is published after a Task status write and roll-up.
	StatusChanged Type = "StatusChanged"

	// DependencyAdded and DependencyRemoved carry Edge.
	DependencyAdded   Type = "DependencyAdded"
	DependencyRemoved Type = "DependencyRemoved"

	// FeatureLinked and FeatureUnlinked carry MilestoneID and FeatureID.
	FeatureLinked   Type = "FeatureLinked"
	FeatureUnlinked Type = "FeatureUnlinked"

	// MilestoneRemoved carries MilestoneID and the FeatureIDs it was
	// linked to.
	MilestoneRemoved Type = "MilestoneRemoved"

	// DatesShifted carries Entity and DeltaDays.
	DatesShifted Type = "DatesShifted"
)

// Event is a single domain event. Only the fields relevant to Type are set.
type Event struct {
	Type      Type
	ProjectID domain.ProjectID
	Entity    domain.EntityRef
	At        time.Time

	Task        *domain.Task
	Edge        *domain.Edge
	MilestoneID domain.MilestoneID
	FeatureID   domain.FeatureID
	FeatureIDs  []domain.FeatureID
	OldStatus   domain.Status
	NewStatus   domain.Status
	DeltaDays   int

	// GraphVersion is the Project's graph_version after a TaskCreated or
	// TaskRemoved write. Edges lists the edges a TaskRemoved cascaded away.
	GraphVersion int64
	Edges        []domain.Edge
}

// Summary renders the event as one line for the activity log.
func (e Event) Summary() string {
	switch e.Type {
	case TaskCreated:
		return fmt.Sprintf("task %q created", e.Entity.ID)
	case TaskRemoved:
		return fmt.Sprintf("task %q removed", e.Entity.ID)
	case StatusChanged:
		return fmt.Sprintf("status changed from %q to %q", e.OldStatus, e.NewStatus)
	case DependencyAdded:
		if e.Edge != nil {
			return fmt.Sprintf("dependency added: %s → %s", e.Edge.From, e.Edge.To)
		}
	case DependencyRemoved:
		if e.Edge != nil {
			return fmt.Sprintf("dependency removed: %s → %s", e.Edge.From, e.Edge.To)
		}
	case FeatureLinked:
		return fmt.Sprintf("feature %q linked to milestone %q", e.FeatureID, e.MilestoneID)
	case FeatureUnlinked:
		return fmt.Sprintf("feature %q unlinked from milestone %q", e.FeatureID, e.MilestoneID)
	case MilestoneRemoved:
		return fmt.Sprintf("milestone %q removed (%d feature links dropped)", e.MilestoneID, len(e.FeatureIDs))
	case DatesShifted:
		return fmt.Sprintf("dates shifted by %d day(s)", e.DeltaDays)
	}
	return string(e.Type)
}

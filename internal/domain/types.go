// Package domain holds the shared vocabulary of the tracker core: typed
// identifiers, the four-level hierarchy entities, dependency edges, the
// status policy table and the error taxonomy.
//
// It has no dependencies on storage or transport. Every other package
// speaks in these types:
// - graph and dependency: TaskID, Edge
// - progress: Status, Phase, Policy, Progress
// - gantt: Milestone, Feature, Function, Task
package domain

import (
	"fmt"
	"time"
)

// --- Identifiers ---

type (
	ProjectID   string
	MilestoneID string
	FeatureID   string
	FunctionID  string
	TaskID      string
	EdgeID      string
)

// EntityKind names the level of the hierarchy an EntityRef points at.
type EntityKind string

const (
	KindProject   EntityKind = "project"
	KindMilestone EntityKind = "milestone"
	KindFeature   EntityKind = "feature"
	KindFunction  EntityKind = "function"
	KindTask      EntityKind = "task"

	// KindDependency labels edges in errors and activity records; it is
	// not a hierarchy level.
	KindDependency EntityKind = "dependency"
)

var validKinds = map[EntityKind]bool{
	KindProject:   true,
	KindMilestone: true,
	KindFeature:   true,
	KindFunction:  true,
	KindTask:      true,
}

// ValidateKind returns an error if the kind is not recognized.
func ValidateKind(k EntityKind) error {
	if !validKinds[k] {
		return Invalid(fmt.Sprintf("invalid entity kind %q: must be one of: project, milestone, feature, function, task", k))
	}
	return nil
}

// EntityRef addresses one entity of any kind. It is comparable and is used
// as the ProgressCache key.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

func FunctionRef(id FunctionID) EntityRef   { return EntityRef{Kind: KindFunction, ID: string(id)} }
func FeatureRef(id FeatureID) EntityRef     { return EntityRef{Kind: KindFeature, ID: string(id)} }
func MilestoneRef(id MilestoneID) EntityRef { return EntityRef{Kind: KindMilestone, ID: string(id)} }
func TaskRef(id TaskID) EntityRef           { return EntityRef{Kind: KindTask, ID: string(id)} }

// --- Entities ---

// Project is the partition boundary for every graph and hierarchy operation.
type Project struct {
	ID           ProjectID `json:"_id"`
	Name         string    `json:"name"`
	GraphVersion int64     `json:"graphVersion"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Milestone is a timeline checkpoint linked to zero or more Features.
type Milestone struct {
	ID         MilestoneID `json:"_id"`
	ProjectID  ProjectID   `json:"projectId"`
	Title      string      `json:"title"`
	StartDate  *time.Time  `json:"startDate,omitempty"`
	Deadline   *time.Time  `json:"deadline,omitempty"`
	Percentage int         `json:"progress"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Feature groups Functions. Status and Percentage are derived.
type Feature struct {
	ID         FeatureID `json:"_id"`
	ProjectID  ProjectID `json:"projectId"`
	Title      string    `json:"title"`
	Status     Status    `json:"status"`
	Percentage int       `json:"progress"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Function groups Tasks under exactly one Feature. Status is derived.
type Function struct {
	ID         FunctionID `json:"_id"`
	ProjectID  ProjectID  `json:"projectId"`
	FeatureID  FeatureID  `json:"featureId"`
	Title      string     `json:"title"`
	Status     Status     `json:"status"`
	Percentage int        `json:"progress"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Task is the only entity whose status is set by a human.
type Task struct {
	ID         TaskID     `json:"_id"`
	ProjectID  ProjectID  `json:"projectId"`
	FunctionID FunctionID `json:"functionId"`
	Title      string     `json:"title"`
	Status     Status     `json:"status"`
	StartDate  *time.Time `json:"startDate,omitempty"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Edge is a directed "From must complete before To starts" relationship.
// A task X that depends on Y is stored as Edge{From: Y, To: X}.
type Edge struct {
	ID        EdgeID    `json:"_id"`
	ProjectID ProjectID `json:"projectId"`
	From      TaskID    `json:"from"`
	To        TaskID    `json:"to"`
	CreatedAt time.Time `json:"createdAt"`
}

// --- Derived values ---

// Progress is the roll-up of one Function or Feature.
type Progress struct {
	Ref        EntityRef `json:"ref"`
	Status     Status    `json:"status"`
	Phase      Phase     `json:"phase"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
}

// FeatureBreakdown is one Feature's contribution to a Milestone.
type FeatureBreakdown struct {
	FeatureID  FeatureID `json:"featureId"`
	Title      string    `json:"title"`
	Completed  int       `json:"completed"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
}

// MilestoneProgress is the roll-up of one Milestone over its linked Features.
type MilestoneProgress struct {
	MilestoneID MilestoneID        `json:"milestoneId"`
	Basis       CountBasis         `json:"basis"`
	Completed   int                `json:"completed"`
	Total       int                `json:"total"`
	Percentage  int                `json:"percentage"`
	ByFeature   []FeatureBreakdown `json:"byFeature"`
}

// CountBasis selects what a Milestone counts across its Features.
type CountBasis string

const (
	BasisFunctions CountBasis = "functions"
	BasisTasks     CountBasis = "tasks"
)

// ValidateBasis returns an error if the basis is not recognized.
func ValidateBasis(b CountBasis) error {
	if b != BasisFunctions && b != BasisTasks {
		return Invalid(fmt.Sprintf("invalid milestone basis %q: must be one of: functions, tasks", b))
	}
	return nil
}

// Percent returns round(completed/total*100), clamped to [0,100].
// It is 0 when total is 0.
func Percent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	// Half-up integer rounding.
	return (completed*200 + total) / (total * 2)
}

// Activity is one audit record handed to the activity log collaborator.
type Activity struct {
	ID        int64     `json:"id"`
	ProjectID ProjectID `json:"projectId"`
	Entity    EntityRef `json:"entity"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

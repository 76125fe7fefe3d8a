package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Status is a status label as stored on an entity ("To Do", "Doing", ...).
// Labels are configuration: the core only knows their Phase.
type Status string

// Phase is the policy-level meaning of a status.
type Phase string

const (
	PhaseNotStarted Phase = "not_started"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
)

var validPhases = map[Phase]bool{
	PhaseNotStarted: true,
	PhaseInProgress: true,
	PhaseCompleted:  true,
}

// ValidatePhase returns an error if the phase is not recognized.
func ValidatePhase(p Phase) error {
	if !validPhases[p] {
		return Invalid(fmt.Sprintf("invalid phase %q: must be one of: not_started, in_progress, completed", p))
	}
	return nil
}

// Default taxonomy.
const (
	StatusToDo  Status = "To Do"
	StatusDoing Status = "Doing"
	StatusDone  Status = "Done"
)

// Policy is the status policy table. TaskPhases says what each settable
// Task status means; Derived says which label a Function or Feature gets
// for each phase.
type Policy struct {
	TaskPhases map[Status]Phase
	Derived    map[Phase]Status
}

// DefaultPolicy returns the To Do / Doing / Done taxonomy.
func DefaultPolicy() Policy {
	return Policy{
		TaskPhases: map[Status]Phase{
			StatusToDo:  PhaseNotStarted,
			StatusDoing: PhaseInProgress,
			StatusDone:  PhaseCompleted,
		},
		Derived: map[Phase]Status{
			PhaseNotStarted: StatusToDo,
			PhaseInProgress: StatusDoing,
			PhaseCompleted:  StatusDone,
		},
	}
}

// Validate checks that every phase has a derived label and that at least
// one task status maps to each of not_started and completed.
func (p Policy) Validate() error {
	seen := map[Phase]bool{}
	for s, ph := range p.TaskPhases {
		if strings.TrimSpace(string(s)) == "" {
			return Invalid("status policy: empty task status label")
		}
		if err := ValidatePhase(ph); err != nil {
			return fmt.Errorf("status policy: task status %q: %w", s, err)
		}
		seen[ph] = true
	}
	for _, ph := range []Phase{PhaseNotStarted, PhaseCompleted} {
		if !seen[ph] {
			return Invalid(fmt.Sprintf("status policy: no task status maps to %s", ph))
		}
	}
	for ph := range validPhases {
		if strings.TrimSpace(string(p.Derived[ph])) == "" {
			return Invalid(fmt.Sprintf("status policy: no derived label for %s", ph))
		}
	}
	return nil
}

// PhaseOf returns the phase of a task status.
func (p Policy) PhaseOf(s Status) (Phase, error) {
	ph, ok := p.TaskPhases[s]
	if !ok {
		return "", Invalid(fmt.Sprintf("unknown task status %q: must be one of: %s", s, strings.Join(p.statusNames(), ", ")))
	}
	return ph, nil
}

// Label returns the derived status label for a phase.
func (p Policy) Label(ph Phase) Status {
	return p.Derived[ph]
}

// InitialStatus is the label given to a new Task: the first not_started
// status in sorted order.
func (p Policy) InitialStatus() Status {
	for _, name := range p.statusNames() {
		if p.TaskPhases[Status(name)] == PhaseNotStarted {
			return Status(name)
		}
	}
	return p.Derived[PhaseNotStarted]
}

// Derive folds child phases into the parent's phase:
// no children or all not started → not_started, all completed → completed,
// anything else → in_progress.
func Derive(children []Phase) Phase {
	if len(children) == 0 {
		return PhaseNotStarted
	}
	allDone := true
	anyStarted := false
	for _, ph := range children {
		if ph != PhaseCompleted {
			allDone = false
		}
		if ph != PhaseNotStarted {
			anyStarted = true
		}
	}
	switch {
	case allDone:
		return PhaseCompleted
	case anyStarted:
		return PhaseInProgress
	default:
		return PhaseNotStarted
	}
}

func (p Policy) statusNames() []string {
	names := make([]string, 0, len(p.TaskPhases))
	for s := range p.TaskPhases {
		names = append(names, string(s))
	}
	sort.Strings(names)
	return names
}

// Statuses returns the settable task statuses in sorted order.
func (p Policy) Statuses() []Status {
	names := p.statusNames()
	out := make([]Status, len(names))
	for i, n := range names {
		out[i] = Status(n)
	}
	return out
}

// Package seed loads a project plan from YAML into the store.
//
// A plan names every entity by a caller-chosen ID so dependencies and
// milestone links can refer to them:
//
//	project: { id: capstone, name: Capstone }
//	milestones:
//	  - { id: beta, title: Beta, startDate: 2026-03-01, deadline: 2026-04-01, features: [auth] }
//	features:
//	  - id: auth
//	    title: Auth
//	    functions:
//	      - id: login
//	        title: Login
//	        tasks:
//	          - { id: form, title: Login form }
//	          - { id: api, title: Login API, dependsOn: [form] }
package seed

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

// Plan is the YAML document.
type Plan struct {
	Project    ProjectPlan     `yaml:"project"`
	Milestones []MilestonePlan `yaml:"milestones"`
	Features   []FeaturePlan   `yaml:"features"`
}

type ProjectPlan struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type MilestonePlan struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	StartDate string   `yaml:"startDate"`
	Deadline  string   `yaml:"deadline"`
	Features  []string `yaml:"features"`
}

type FeaturePlan struct {
	ID        string         `yaml:"id"`
	Title     string         `yaml:"title"`
	Functions []FunctionPlan `yaml:"functions"`
}

type FunctionPlan struct {
	ID    string     `yaml:"id"`
	Title string     `yaml:"title"`
	Tasks []TaskPlan `yaml:"tasks"`
}

type TaskPlan struct {
	ID        string   `yaml:"id"`
	Title     string   `yaml:"title"`
	Status    string   `yaml:"status"`
	StartDate string   `yaml:"startDate"`
	Deadline  string   `yaml:"deadline"`
	DependsOn []string `yaml:"dependsOn"`
}

// Decode reads a plan and checks that the project is named.
func Decode(r io.Reader) (Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Plan{}, fmt.Errorf("decoding plan: %w", err)
	}
	if p.Project.ID == "" {
		return Plan{}, domain.Invalid("plan: project.id is required")
	}
	return p, nil
}

// Hierarchy is the store surface for entities that have no lifecycle
// events.
type Hierarchy interface {
	CreateProject(ctx context.Context, id domain.ProjectID, name string) (domain.Project, error)
	CreateMilestone(ctx context.Context, params store.MilestoneParams) (domain.Milestone, error)
	CreateFeature(ctx context.Context, params store.FeatureParams) (domain.Feature, error)
	CreateFunction(ctx context.Context, params store.FunctionParams) (domain.Function, error)
}

// Lifecycle creates tasks and milestone links so caches and subscribers
// see them.
type Lifecycle interface {
	CreateTask(ctx context.Context, params store.TaskParams) (domain.Task, error)
	LinkFeature(ctx context.Context, milestone domain.MilestoneID, feature domain.FeatureID) error
}

// Dependencies adds cycle-checked edges.
type Dependencies interface {
	Add(ctx context.Context, project domain.ProjectID, from, to domain.TaskID) (domain.Edge, error)
}

// Summary counts what Apply created.
type Summary struct {
	Milestones   int
	Features     int
	Functions    int
	Tasks        int
	Dependencies int
	Links        int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d milestones, %d features, %d functions, %d tasks, %d dependencies, %d links",
		s.Milestones, s.Features, s.Functions, s.Tasks, s.Dependencies, s.Links)
}

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, domain.Invalid(fmt.Sprintf("%s: expected YYYY-MM-DD, got %q", field, s))
	}
	return &t, nil
}

// Apply creates everything in the plan. Dependencies are added after all
// tasks exist, so a task may depend on one declared later. Apply stops at
// the first error; entities created before it are kept.
func Apply(ctx context.Context, p Plan, hier Hierarchy, life Lifecycle, deps Dependencies, initial domain.Status) (Summary, error) {
	var sum Summary
	project := domain.ProjectID(p.Project.ID)
	name := p.Project.Name
	if name == "" {
		name = p.Project.ID
	}
	if _, err := hier.CreateProject(ctx, project, name); err != nil {
		return sum, fmt.Errorf("project %s: %w", project, err)
	}

	type pending struct {
		task      domain.TaskID
		dependsOn []string
	}
	var edges []pending

	for _, fp := range p.Features {
		if _, err := hier.CreateFeature(ctx, store.FeatureParams{
			ID: domain.FeatureID(fp.ID), ProjectID: project, Title: fp.Title, Status: initial,
		}); err != nil {
			return sum, fmt.Errorf("feature %s: %w", fp.ID, err)
		}
		sum.Features++

		for _, fnp := range fp.Functions {
			if _, err := hier.CreateFunction(ctx, store.FunctionParams{
				ID: domain.FunctionID(fnp.ID), FeatureID: domain.FeatureID(fp.ID), Title: fnp.Title, Status: initial,
			}); err != nil {
				return sum, fmt.Errorf("function %s: %w", fnp.ID, err)
			}
			sum.Functions++

			for _, tp := range fnp.Tasks {
				start, err := parseDate("task "+tp.ID+" startDate", tp.StartDate)
				if err != nil {
					return sum, err
				}
				deadline, err := parseDate("task "+tp.ID+" deadline", tp.Deadline)
				if err != nil {
					return sum, err
				}
				t, err := life.CreateTask(ctx, store.TaskParams{
					ID:         domain.TaskID(tp.ID),
					FunctionID: domain.FunctionID(fnp.ID),
					Title:      tp.Title,
					Status:     domain.Status(tp.Status),
					StartDate:  start,
					Deadline:   deadline,
				})
				if err != nil {
					return sum, fmt.Errorf("task %s: %w", tp.ID, err)
				}
				sum.Tasks++
				if len(tp.DependsOn) > 0 {
					edges = append(edges, pending{task: t.ID, dependsOn: tp.DependsOn})
				}
			}
		}
	}

	for _, e := range edges {
		for _, dep := range e.dependsOn {
			if _, err := deps.Add(ctx, project, domain.TaskID(dep), e.task); err != nil {
				return sum, fmt.Errorf("dependency %s → %s: %w", dep, e.task, err)
			}
			sum.Dependencies++
		}
	}

	for _, mp := range p.Milestones {
		start, err := parseDate("milestone "+mp.ID+" startDate", mp.StartDate)
		if err != nil {
			return sum, err
		}
		deadline, err := parseDate("milestone "+mp.ID+" deadline", mp.Deadline)
		if err != nil {
			return sum, err
		}
		if _, err := hier.CreateMilestone(ctx, store.MilestoneParams{
			ID: domain.MilestoneID(mp.ID), ProjectID: project, Title: mp.Title, StartDate: start, Deadline: deadline,
		}); err != nil {
			return sum, fmt.Errorf("milestone %s: %w", mp.ID, err)
		}
		sum.Milestones++
		for _, f := range mp.Features {
			if err := life.LinkFeature(ctx, domain.MilestoneID(mp.ID), domain.FeatureID(f)); err != nil {
				return sum, fmt.Errorf("milestone %s feature %s: %w", mp.ID, f, err)
			}
			sum.Links++
		}
	}

	logging.Info("Seed", "project %s: %s", project, sum)
	return sum, nil
}

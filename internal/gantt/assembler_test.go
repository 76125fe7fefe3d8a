package gantt_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/capstone-tracker/internal/dependency"
	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/gantt"
	"github.com/HendryAvila/capstone-tracker/internal/progress"
	"github.com/HendryAvila/capstone-tracker/internal/projectlock"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

type fixture struct {
	store *store.Store
	deps  *dependency.Service
	agg   *progress.Aggregator
	asm   *gantt.Assembler
	bus   *events.Bus
}

func day(d int) *time.Time {
	t := time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.New(store.Config{DataDir: t.TempDir(), BusyTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	_, err = s.CreateProject(ctx, "p1", "Capstone")
	require.NoError(t, err)

	locks := projectlock.New()
	bus := events.NewBus()
	deps := dependency.NewService(s, locks, bus)
	deps.Attach(bus)
	agg, err := progress.NewAggregator(progress.DefaultConfig(), s, s, locks, bus)
	require.NoError(t, err)
	agg.Attach(bus)

	return &fixture{
		store: s,
		deps:  deps,
		agg:   agg,
		asm:   gantt.NewAssembler(s, deps, agg.Cache(), locks, bus),
		bus:   bus,
	}
}

func (f *fixture) seedTree(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.CreateFeature(ctx, store.FeatureParams{ID: "A", ProjectID: "p1", Title: "Auth", Status: domain.StatusToDo})
	require.NoError(t, err)
	_, err = f.store.CreateFunction(ctx, store.FunctionParams{ID: "A1", FeatureID: "A", Title: "Login", Status: domain.StatusToDo})
	require.NoError(t, err)
}

func (f *fixture) task(t *testing.T, id domain.TaskID, title string, start, deadline *time.Time) {
	t.Helper()
	_, err := f.agg.CreateTask(context.Background(), store.TaskParams{
		ID: id, FunctionID: "A1", Title: title, StartDate: start, Deadline: deadline,
	})
	require.NoError(t, err)
}

func TestSortMilestones(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ms := []domain.Milestone{
		{ID: "no-dates-old", CreatedAt: base},
		{ID: "no-dates-new", CreatedAt: base.Add(time.Hour)},
		{ID: "late", StartDate: day(20)},
		{ID: "early-b", StartDate: day(1), Deadline: day(10)},
		{ID: "early-a", StartDate: day(1), Deadline: day(5)},
		{ID: "early-nodeadline", StartDate: day(1)},
		{ID: "deadline-only", Deadline: day(2)},
	}
	gantt.SortMilestones(ms)

	var got []domain.MilestoneID
	for _, m := range ms {
		got = append(got, m.ID)
	}
	assert.Equal(t, []domain.MilestoneID{
		"early-a", "early-b", "early-nodeadline", "late", "deadline-only", "no-dates-new", "no-dates-old",
	}, got)
}

func TestHierarchyFor(t *testing.T) {
	f := newFixture(t)
	f.seedTree(t)
	ctx := context.Background()

	_, err := f.store.CreateMilestone(ctx, store.MilestoneParams{ID: "M2", ProjectID: "p1", Title: "Launch", StartDate: day(15)})
	require.NoError(t, err)
	_, err = f.store.CreateMilestone(ctx, store.MilestoneParams{ID: "M1", ProjectID: "p1", Title: "Beta", StartDate: day(1)})
	require.NoError(t, err)
	require.NoError(t, f.agg.LinkFeature(ctx, "M1", "A"))

	f.task(t, "t1", "Design", nil, nil)
	_, err = f.agg.OnTaskStatusChanged(ctx, "t1", domain.StatusDone)
	require.NoError(t, err)

	tree, err := f.asm.HierarchyFor(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.Equal(t, domain.MilestoneID("M1"), tree[0].ID)
	assert.Equal(t, domain.MilestoneID("M2"), tree[1].ID)
	assert.Empty(t, tree[1].Features)

	require.Len(t, tree[0].Features, 1)
	feat := tree[0].Features[0]
	assert.Equal(t, domain.FeatureID("A"), feat.ID)
	require.Len(t, feat.Functions, 1)
	assert.Equal(t, domain.FunctionID("A1"), feat.Functions[0].ID)

	require.NotNil(t, tree[0].Progress)
	assert.Equal(t, 100, *tree[0].Progress)
	require.NotNil(t, feat.Functions[0].Progress)
	assert.Equal(t, 100, *feat.Functions[0].Progress)

	_, err = f.asm.HierarchyFor(ctx, "ghost")
	assert.True(t, domain.IsNotFound(err))
}

func TestTasksWithDependencies_TopologicalOrder(t *testing.T) {
	f := newFixture(t)
	f.seedTree(t)
	ctx := context.Background()

	// "Deploy" starts first but depends on "Build", which depends on "Code".
	f.task(t, "deploy", "Deploy", day(1), nil)
	f.task(t, "build", "Build", day(5), nil)
	f.task(t, "code", "Code", day(9), nil)
	f.task(t, "docs", "Docs", nil, nil)
	f.task(t, "alpha", "Alpha", day(9), nil)

	_, err := f.deps.Add(ctx, "p1", "code", "build")
	require.NoError(t, err)
	_, err = f.deps.Add(ctx, "p1", "build", "deploy")
	require.NoError(t, err)

	chart, err := f.asm.TasksWithDependencies(ctx, "p1")
	require.NoError(t, err)

	var order []domain.TaskID
	for _, bar := range chart.Tasks {
		order = append(order, bar.ID)
	}
	// Ready first: alpha and code share a start date, title breaks the tie;
	// docs has no start date and goes last.
	assert.Equal(t, []domain.TaskID{"alpha", "code", "build", "deploy", "docs"}, order)
	assert.Len(t, chart.Edges, 2)

	bars := map[domain.TaskID]gantt.TaskBar{}
	for _, bar := range chart.Tasks {
		bars[bar.ID] = bar
	}
	assert.Equal(t, []domain.TaskID{"code"}, bars["build"].Dependencies)
	assert.Equal(t, []domain.TaskID{"deploy"}, bars["build"].Dependents)
	assert.Empty(t, bars["docs"].Dependencies)
}

func TestShiftDates_MovesOnlyTheDraggedTask(t *testing.T) {
	f := newFixture(t)
	f.seedTree(t)
	ctx := context.Background()

	f.task(t, "t1", "First", day(1), day(3))
	f.task(t, "t2", "Second", day(4), day(6))
	_, err := f.deps.Add(ctx, "p1", "t1", "t2")
	require.NoError(t, err)

	var shifted []events.Event
	f.bus.Subscribe("test", func(ctx context.Context, e events.Event) error {
		shifted = append(shifted, e)
		return nil
	}, events.DatesShifted)

	res, err := f.asm.ShiftDates(ctx, domain.TaskRef("t1"), 2)
	require.NoError(t, err)
	assert.True(t, res.StartDate.Equal(*day(3)))
	assert.True(t, res.Deadline.Equal(*day(5)))

	t2, err := f.store.GetTask(ctx, "t2")
	require.NoError(t, err)
	assert.True(t, t2.StartDate.Equal(*day(4)), "dependent keeps its dates")

	require.Len(t, shifted, 1)
	assert.Equal(t, 2, shifted[0].DeltaDays)
	assert.Equal(t, domain.ProjectID("p1"), shifted[0].ProjectID)
}

func TestShiftDates_Milestone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.store.CreateMilestone(ctx, store.MilestoneParams{ID: "M1", ProjectID: "p1", Title: "Beta", Deadline: day(10)})
	require.NoError(t, err)

	res, err := f.asm.ShiftDates(ctx, domain.MilestoneRef("M1"), -3)
	require.NoError(t, err)
	assert.Nil(t, res.StartDate)
	assert.True(t, res.Deadline.Equal(*day(7)))
}

func TestShiftDates_Rejects(t *testing.T) {
	f := newFixture(t)
	f.seedTree(t)
	ctx := context.Background()

	_, err := f.asm.ShiftDates(ctx, domain.FeatureRef("A"), 1)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))

	_, err = f.asm.ShiftDates(ctx, domain.TaskRef("ghost"), 1)
	assert.True(t, domain.IsNotFound(err))

	_, err = f.asm.ShiftDates(ctx, domain.MilestoneRef("M1"), 0)
	assert.True(t, domain.IsNotFound(err), "a zero delta still requires the entity")
}

func TestShiftDates_ZeroDeltaIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.seedTree(t)
	ctx := context.Background()
	f.task(t, "t1", "First", day(1), day(3))

	var published int
	f.bus.Subscribe("test", func(ctx context.Context, e events.Event) error {
		published++
		return nil
	}, events.DatesShifted)

	res, err := f.asm.ShiftDates(ctx, domain.TaskRef("t1"), 0)
	require.NoError(t, err)
	require.NotNil(t, res.StartDate)
	assert.True(t, res.StartDate.Equal(*day(1)))
	assert.True(t, res.Deadline.Equal(*day(3)))
	assert.Zero(t, published)
}

func TestHierarchyFor_ProgressSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	f.seedTree(t)
	ctx := context.Background()

	_, err := f.store.CreateMilestone(ctx, store.MilestoneParams{ID: "M1", ProjectID: "p1", Title: "Beta"})
	require.NoError(t, err)
	require.NoError(t, f.agg.LinkFeature(ctx, "M1", "A"))
	f.task(t, "t1", "Design", nil, nil)
	_, err = f.agg.OnTaskStatusChanged(ctx, "t1", domain.StatusDone)
	require.NoError(t, err)

	// A new process over the same database starts with an empty cache.
	locks := projectlock.New()
	bus := events.NewBus()
	deps := dependency.NewService(f.store, locks, bus)
	agg, err := progress.NewAggregator(progress.DefaultConfig(), f.store, f.store, locks, bus)
	require.NoError(t, err)
	_, cached := agg.Cache().Peek(domain.MilestoneRef("M1"))
	require.False(t, cached)

	tree, err := gantt.NewAssembler(f.store, deps, agg.Cache(), locks, bus).HierarchyFor(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.NotNil(t, tree[0].Progress)
	assert.Equal(t, 100, *tree[0].Progress)
	require.Len(t, tree[0].Features, 1)
	require.NotNil(t, tree[0].Features[0].Progress)
	assert.Equal(t, 100, *tree[0].Features[0].Progress)
	require.NotNil(t, tree[0].Features[0].Functions[0].Progress)
	assert.Equal(t, 100, *tree[0].Features[0].Functions[0].Progress)
}

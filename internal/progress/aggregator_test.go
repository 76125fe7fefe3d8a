package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/progress"
	"github.com/HendryAvila/capstone-tracker/internal/projectlock"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

type fixture struct {
	t     *testing.T
	store *store.Store
	bus   *events.Bus
	agg   *progress.Aggregator
}

func newFixture(t *testing.T, cfg progress.Config) *fixture {
	t.Helper()
	s, err := store.New(store.Config{DataDir: t.TempDir(), BusyTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.CreateProject(context.Background(), "p1", "Capstone")
	require.NoError(t, err)

	bus := events.NewBus()
	agg, err := progress.NewAggregator(cfg, s, s, projectlock.New(), bus)
	require.NoError(t, err)
	agg.Attach(bus)
	return &fixture{t: t, store: s, bus: bus, agg: agg}
}

func (f *fixture) feature(id domain.FeatureID) {
	f.t.Helper()
	_, err := f.store.CreateFeature(context.Background(), store.FeatureParams{ID: id, ProjectID: "p1", Title: string(id), Status: domain.StatusToDo})
	require.NoError(f.t, err)
}

func (f *fixture) function(id domain.FunctionID, feature domain.FeatureID) {
	f.t.Helper()
	_, err := f.store.CreateFunction(context.Background(), store.FunctionParams{ID: id, FeatureID: feature, Title: string(id), Status: domain.StatusToDo})
	require.NoError(f.t, err)
}

func (f *fixture) task(id domain.TaskID, function domain.FunctionID, status domain.Status) {
	f.t.Helper()
	_, err := f.agg.CreateTask(context.Background(), store.TaskParams{ID: id, FunctionID: function, Title: string(id), Status: status})
	require.NoError(f.t, err)
}

func (f *fixture) milestone(id domain.MilestoneID, features ...domain.FeatureID) {
	f.t.Helper()
	ctx := context.Background()
	_, err := f.store.CreateMilestone(ctx, store.MilestoneParams{ID: id, ProjectID: "p1", Title: string(id)})
	require.NoError(f.t, err)
	for _, feat := range features {
		require.NoError(f.t, f.agg.LinkFeature(ctx, id, feat))
	}
}

func TestScenarioB_NewTaskReopensFunction(t *testing.T) {
	f := newFixture(t, progress.DefaultConfig())
	ctx := context.Background()
	f.feature("A")
	f.function("F", "A")
	f.task("T1", "F", domain.StatusDone)
	f.task("T2", "F", domain.StatusDone)

	fn, err := f.store.GetFunction(ctx, "F")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, fn.Status)
	assert.Equal(t, 100, fn.Percentage)

	f.task("T3", "F", domain.StatusToDo)

	fn, err = f.store.GetFunction(ctx, "F")
	require.NoError(t, err)
	assert.NotEqual(t, domain.StatusDone, fn.Status)
	assert.Equal(t, domain.StatusDoing, fn.Status)
	assert.Equal(t, 67, fn.Percentage)
}

func TestScenarioC_MilestoneCountsFunctions(t *testing.T) {
	f := newFixture(t, progress.DefaultConfig())
	ctx := context.Background()
	f.feature("A")
	f.feature("B")
	f.function("A1", "A")
	f.function("A2", "A")
	f.function("B1", "B")
	f.function("B2", "B")
	f.milestone("M", "A", "B")

	f.task("a1", "A1", domain.StatusDone)
	f.task("a2", "A2", domain.StatusDone)
	f.task("b1", "B1", domain.StatusDone)
	f.task("b2", "B2", domain.StatusToDo)

	m, err := f.store.GetMilestone(ctx, "M")
	require.NoError(t, err)
	assert.Equal(t, 75, m.Percentage)

	mp, err := f.agg.RecomputeMilestone(ctx, "M")
	require.NoError(t, err)
	assert.Equal(t, 3, mp.Completed)
	assert.Equal(t, 4, mp.Total)
	require.Len(t, mp.ByFeature, 2)
	assert.Equal(t, 100, mp.ByFeature[0].Percentage)
	assert.Equal(t, 50, mp.ByFeature[1].Percentage)
}

func TestMilestone_TasksBasis(t *testing.T) {
	cfg := progress.DefaultConfig()
	cfg.MilestoneBasis = domain.BasisTasks
	f := newFixture(t, cfg)
	ctx := context.Background()
	f.feature("A")
	f.function("A1", "A")
	f.function("A2", "A")
	f.milestone("M", "A")

	f.task("t1", "A1", domain.StatusDone)
	f.task("t2", "A2", domain.StatusToDo)
	f.task("t3", "A2", domain.StatusToDo)
	f.task("t4", "A2", domain.StatusDone)

	mp, err := f.agg.RecomputeMilestone(ctx, "M")
	require.NoError(t, err)
	assert.Equal(t, domain.BasisTasks, mp.Basis)
	assert.Equal(t, 2, mp.Completed)
	assert.Equal(t, 4, mp.Total)
	assert.Equal(t, 50, mp.Percentage)
}

func TestMilestone_NoFeaturesIsZero(t *testing.T) {
	f := newFixture(t, progress.DefaultConfig())
	f.milestone("M")

	mp, err := f.agg.RecomputeMilestone(context.Background(), "M")
	require.NoError(t, err)
	assert.Equal(t, 0, mp.Percentage)
	assert.Equal(t, 0, mp.Total)
}

func TestStatusChange_PropagatesThreeLevels(t *testing.T) {
	f := newFixture(t, progress.DefaultConfig())
	ctx := context.Background()
	f.feature("A")
	f.function("A1", "A")
	f.milestone("M", "A")
	f.task("t1", "A1", domain.StatusToDo)

	var published []events.Event
	f.bus.Subscribe("test", func(ctx context.Context, e events.Event) error {
		published = append(published, e)
		return nil
	}, events.StatusChanged)

	res, err := f.agg.OnTaskStatusChanged(ctx, "t1", domain.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusToDo, res.OldStatus)
	assert.Equal(t, domain.StatusDone, res.Function.Status)
	assert.Equal(t, domain.StatusDone, res.Feature.Status)
	require.Len(t, res.Milestones, 1)
	assert.Equal(t, 100, res.Milestones[0].Percentage)

	fn, _ := f.store.GetFunction(ctx, "A1")
	feat, _ := f.store.GetFeature(ctx, "A")
	m, _ := f.store.GetMilestone(ctx, "M")
	assert.Equal(t, domain.StatusDone, fn.Status)
	assert.Equal(t, domain.StatusDone, feat.Status)
	assert.Equal(t, 100, m.Percentage)

	require.Len(t, published, 1)
	assert.Equal(t, domain.StatusDone, published[0].NewStatus)

	// Same status again: roll-up unchanged, no second event.
	_, err = f.agg.OnTaskStatusChanged(ctx, "t1", domain.StatusDone)
	require.NoError(t, err)
	assert.Len(t, published, 1)
}

func TestStatusChange_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, progress.DefaultConfig())
	f.feature("A")
	f.function("A1", "A")
	f.task("t1", "A1", domain.StatusToDo)

	_, err := f.agg.OnTaskStatusChanged(context.Background(), "t1", "Blocked")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidInput, domain.KindOf(err))

	_, err = f.agg.OnTaskStatusChanged(context.Background(), "ghost", domain.StatusDone)
	assert.True(t, domain.IsNotFound(err))
}

func TestRecompute_Idempotent(t *testing.T) {
	f := newFixture(t, progress.DefaultConfig())
	ctx := context.Background()
	f.feature("A")
	f.function("A1", "A")
	f.function("A2", "A")
	f.task("t1", "A1", domain.StatusDone)
	f.task("t2", "A2", domain.StatusDoing)

	first, err := f.agg.RecomputeFeature(ctx, "A")
	require.NoError(t, err)
	second, err := f.agg.RecomputeFeature(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, domain.StatusDoing, first.Status)
	assert.Equal(t, 50, first.Percentage)

	fn1, err := f.agg.RecomputeFunction(ctx, "A1")
	require.NoError(t, err)
	fn1again, err := f.agg.RecomputeFunction(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, fn1, fn1again)
}

func TestRemoveTask_RecomputesFormerFunction(t *testing.T) {
	f := newFixture(t, progress.DefaultConfig())
	ctx := context.Background()
	f.feature("A")
	f.function("A1", "A")
	f.task("t1", "A1", domain.StatusDone)
	f.task("t2", "A1", domain.StatusToDo)

	fn, _ := f.store.GetFunction(ctx, "A1")
	assert.Equal(t, 50, fn.Percentage)

	_, err := f.agg.RemoveTask(ctx, "t2")
	require.NoError(t, err)

	fn, _ = f.store.GetFunction(ctx, "A1")
	assert.Equal(t, 100, fn.Percentage)
	assert.Equal(t, domain.StatusDone, fn.Status)
}

func TestUnlinkAndRemoveMilestone(t *testing.T) {
	f := newFixture(t, progress.DefaultConfig())
	ctx := context.Background()
	f.feature("A")
	f.feature("B")
	f.function("A1", "A")
	f.function("B1", "B")
	f.task("a", "A1", domain.StatusDone)
	f.task("b", "B1", domain.StatusToDo)
	f.milestone("M", "A", "B")

	m, _ := f.store.GetMilestone(ctx, "M")
	assert.Equal(t, 50, m.Percentage)

	require.NoError(t, f.agg.UnlinkFeature(ctx, "M", "B"))
	m, _ = f.store.GetMilestone(ctx, "M")
	assert.Equal(t, 100, m.Percentage)

	_, ok := f.agg.Cache().Peek(domain.MilestoneRef("M"))
	assert.True(t, ok)

	require.NoError(t, f.agg.RemoveMilestone(ctx, "M"))
	_, ok = f.agg.Cache().Peek(domain.MilestoneRef("M"))
	assert.False(t, ok)
	_, err := f.store.GetFeature(ctx, "A")
	assert.NoError(t, err, "features survive milestone removal")
}

func TestCustomPolicy(t *testing.T) {
	policy := domain.Policy{
		TaskPhases: map[domain.Status]domain.Phase{
			"Backlog":   domain.PhaseNotStarted,
			"In Review": domain.PhaseInProgress,
			"Shipped":   domain.PhaseCompleted,
		},
		Derived: map[domain.Phase]domain.Status{
			domain.PhaseNotStarted: "Backlog",
			domain.PhaseInProgress: "Active",
			domain.PhaseCompleted:  "Shipped",
		},
	}
	f := newFixture(t, progress.Config{Policy: policy})
	ctx := context.Background()
	f.feature("A")
	f.function("A1", "A")
	f.task("t1", "A1", "")

	task, err := f.store.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.Status("Backlog"), task.Status)

	res, err := f.agg.OnTaskStatusChanged(ctx, "t1", "In Review")
	require.NoError(t, err)
	assert.Equal(t, domain.Status("Active"), res.Function.Status)
}

func TestNewAggregator_RejectsBadConfig(t *testing.T) {
	_, err := progress.NewAggregator(progress.Config{Policy: domain.Policy{}}, nil, nil, projectlock.New(), nil)
	assert.Error(t, err)

	cfg := progress.DefaultConfig()
	cfg.MilestoneBasis = "hours"
	_, err = progress.NewAggregator(cfg, nil, nil, projectlock.New(), nil)
	assert.Error(t, err)
}

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

// newTestStore creates a Store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(store.Config{DataDir: t.TempDir(), BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seed creates p1 with feature f1, function fn1 and tasks t1..tn.
func seed(t *testing.T, s *store.Store, tasks ...domain.TaskID) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.CreateProject(ctx, "p1", "Capstone"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := s.CreateFeature(ctx, store.FeatureParams{ID: "f1", ProjectID: "p1", Title: "Auth", Status: domain.StatusToDo}); err != nil {
		t.Fatalf("create feature: %v", err)
	}
	if _, err := s.CreateFunction(ctx, store.FunctionParams{ID: "fn1", FeatureID: "f1", Title: "Login", Status: domain.StatusToDo}); err != nil {
		t.Fatalf("create function: %v", err)
	}
	for _, id := range tasks {
		if _, _, err := s.CreateTask(ctx, store.TaskParams{ID: id, FunctionID: "fn1", Title: "task " + string(id), Status: domain.StatusToDo}); err != nil {
			t.Fatalf("create task %s: %v", id, err)
		}
	}
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// ─── New / Initialization ───────────────────────────────────────────────────

func TestNew_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := store.Config{DataDir: dir}

	s1, err := store.New(cfg)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s1.CreateProject(context.Background(), "p1", "Capstone"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	s1.Close()

	s2, err := store.New(cfg)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	p, err := s2.GetProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("project not found after reopen: %v", err)
	}
	if p.Name != "Capstone" {
		t.Errorf("name = %q, want %q", p.Name, "Capstone")
	}
}

// ─── Hierarchy ──────────────────────────────────────────────────────────────

func TestHierarchy_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "t1")
	ctx := context.Background()

	fn, err := s.GetFunction(ctx, "fn1")
	if err != nil {
		t.Fatalf("GetFunction: %v", err)
	}
	if fn.ProjectID != "p1" || fn.FeatureID != "f1" {
		t.Errorf("function parents = %q/%q, want p1/f1", fn.ProjectID, fn.FeatureID)
	}

	task, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.ProjectID != "p1" || task.FunctionID != "fn1" {
		t.Errorf("task parents = %q/%q, want p1/fn1", task.ProjectID, task.FunctionID)
	}
	if task.StartDate != nil {
		t.Errorf("start date = %v, want nil", task.StartDate)
	}
}

func TestHierarchy_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetTask(ctx, "ghost"); !domain.IsNotFound(err) {
		t.Errorf("GetTask error = %v, want NotFound", err)
	}
	if _, err := s.GetMilestone(ctx, "ghost"); !domain.IsNotFound(err) {
		t.Errorf("GetMilestone error = %v, want NotFound", err)
	}
	if _, err := s.CreateFunction(ctx, store.FunctionParams{FeatureID: "ghost", Title: "x", Status: domain.StatusToDo}); !domain.IsNotFound(err) {
		t.Errorf("CreateFunction error = %v, want NotFound", err)
	}
}

func TestHierarchy_RejectsEmptyTitle(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)

	_, _, err := s.CreateTask(context.Background(), store.TaskParams{FunctionID: "fn1", Title: "  ", Status: domain.StatusToDo})
	if domain.KindOf(err) != domain.KindInvalidInput {
		t.Errorf("error = %v, want InvalidInput", err)
	}
}

func TestProgressWriteBack(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if err := s.SetFunctionProgress(ctx, "fn1", domain.StatusDoing, 50); err != nil {
		t.Fatalf("SetFunctionProgress: %v", err)
	}
	if err := s.SetFeatureProgress(ctx, "f1", domain.StatusDoing, 50); err != nil {
		t.Fatalf("SetFeatureProgress: %v", err)
	}
	fn, _ := s.GetFunction(ctx, "fn1")
	f, _ := s.GetFeature(ctx, "f1")
	if fn.Status != domain.StatusDoing || fn.Percentage != 50 {
		t.Errorf("function = %q/%d, want Doing/50", fn.Status, fn.Percentage)
	}
	if f.Status != domain.StatusDoing || f.Percentage != 50 {
		t.Errorf("feature = %q/%d, want Doing/50", f.Status, f.Percentage)
	}

	if err := s.SetFunctionProgress(ctx, "ghost", domain.StatusDone, 100); !domain.IsNotFound(err) {
		t.Errorf("ghost write-back error = %v, want NotFound", err)
	}
}

func TestSetTaskStatus_ReturnsPrevious(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "t1")
	ctx := context.Background()

	old, err := s.SetTaskStatus(ctx, "t1", domain.StatusDone)
	if err != nil {
		t.Fatalf("SetTaskStatus: %v", err)
	}
	if old != domain.StatusToDo {
		t.Errorf("old = %q, want %q", old, domain.StatusToDo)
	}
	task, _ := s.GetTask(ctx, "t1")
	if task.Status != domain.StatusDone {
		t.Errorf("status = %q, want Done", task.Status)
	}

	if _, err := s.SetTaskStatus(ctx, "ghost", domain.StatusDone); !domain.IsNotFound(err) {
		t.Errorf("error = %v, want NotFound", err)
	}
}

// ─── Links ──────────────────────────────────────────────────────────────────

func TestLinkFeature(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if _, err := s.CreateMilestone(ctx, store.MilestoneParams{ID: "m1", ProjectID: "p1", Title: "Beta"}); err != nil {
		t.Fatalf("CreateMilestone: %v", err)
	}

	linked, err := s.LinkFeature(ctx, "m1", "f1")
	if err != nil || !linked {
		t.Fatalf("LinkFeature = %v, %v; want true, nil", linked, err)
	}
	linked, err = s.LinkFeature(ctx, "m1", "f1")
	if err != nil || linked {
		t.Fatalf("second LinkFeature = %v, %v; want false, nil", linked, err)
	}

	ms, err := s.FeatureMilestones(ctx, "f1")
	if err != nil {
		t.Fatalf("FeatureMilestones: %v", err)
	}
	if len(ms) != 1 || ms[0] != "m1" {
		t.Errorf("milestones = %v, want [m1]", ms)
	}

	if err := s.UnlinkFeature(ctx, "m1", "f1"); err != nil {
		t.Fatalf("UnlinkFeature: %v", err)
	}
	if err := s.UnlinkFeature(ctx, "m1", "f1"); !domain.IsNotFound(err) {
		t.Errorf("second unlink error = %v, want NotFound", err)
	}
}

func TestLinkFeature_CrossProjectRejected(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if _, err := s.CreateProject(ctx, "p2", "Other"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateMilestone(ctx, store.MilestoneParams{ID: "m2", ProjectID: "p2", Title: "Other"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LinkFeature(ctx, "m2", "f1"); domain.KindOf(err) != domain.KindInvalidInput {
		t.Errorf("error = %v, want InvalidInput", err)
	}
}

func TestDeleteMilestone_ReturnsLinkedFeatures(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if _, err := s.CreateMilestone(ctx, store.MilestoneParams{ID: "m1", ProjectID: "p1", Title: "Beta"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LinkFeature(ctx, "m1", "f1"); err != nil {
		t.Fatal(err)
	}

	_, features, err := s.DeleteMilestone(ctx, "m1")
	if err != nil {
		t.Fatalf("DeleteMilestone: %v", err)
	}
	if len(features) != 1 || features[0] != "f1" {
		t.Errorf("features = %v, want [f1]", features)
	}
	if ms, _ := s.FeatureMilestones(ctx, "f1"); len(ms) != 0 {
		t.Errorf("links left behind: %v", ms)
	}
}

// ─── Dependencies ───────────────────────────────────────────────────────────

func TestDependencies_VersionedWrites(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "t1", "t2")
	ctx := context.Background()

	v, err := s.GraphVersion(ctx, "p1")
	if err != nil {
		t.Fatalf("GraphVersion: %v", err)
	}
	if v != 2 {
		t.Fatalf("version after two task creations = %d, want 2", v)
	}

	e := domain.Edge{ID: "e1", ProjectID: "p1", From: "t1", To: "t2", CreatedAt: time.Now()}
	v2, err := s.InsertDependency(ctx, e, v)
	if err != nil {
		t.Fatalf("InsertDependency: %v", err)
	}
	if v2 != v+1 {
		t.Errorf("new version = %d, want %d", v2, v+1)
	}

	// Stale version.
	stale := domain.Edge{ID: "e2", ProjectID: "p1", From: "t2", To: "t1", CreatedAt: time.Now()}
	if _, err := s.InsertDependency(ctx, stale, v); !domain.IsConflict(err) {
		t.Errorf("stale insert error = %v, want Conflict", err)
	}

	// Duplicate pair.
	dup := domain.Edge{ID: "e3", ProjectID: "p1", From: "t1", To: "t2", CreatedAt: time.Now()}
	if _, err := s.InsertDependency(ctx, dup, v2); domain.KindOf(err) != domain.KindInvalidEdge {
		t.Errorf("duplicate insert error = %v, want InvalidEdge", err)
	}

	// The failed inserts must not have moved the version.
	if cur, _ := s.GraphVersion(ctx, "p1"); cur != v2 {
		t.Errorf("version after failed writes = %d, want %d", cur, v2)
	}

	snap, err := s.LoadGraph(ctx, "p1")
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	if len(snap.Nodes) != 2 || len(snap.Edges) != 1 || snap.Version != v2 {
		t.Errorf("snapshot = %d nodes, %d edges, v%d", len(snap.Nodes), len(snap.Edges), snap.Version)
	}

	v3, err := s.DeleteDependency(ctx, "p1", "e1", v2)
	if err != nil {
		t.Fatalf("DeleteDependency: %v", err)
	}
	if _, err := s.DeleteDependency(ctx, "p1", "e1", v3); !domain.IsNotFound(err) {
		t.Errorf("second delete error = %v, want NotFound", err)
	}
}

func TestDependencies_SelfLoopRejected(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "t1")
	ctx := context.Background()

	v, _ := s.GraphVersion(ctx, "p1")
	e := domain.Edge{ID: "e1", ProjectID: "p1", From: "t1", To: "t1", CreatedAt: time.Now()}
	if _, err := s.InsertDependency(ctx, e, v); domain.KindOf(err) != domain.KindInvalidEdge {
		t.Errorf("error = %v, want InvalidEdge", err)
	}
}

func TestDeleteTask_CascadesEdges(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "t1", "t2", "t3")
	ctx := context.Background()

	v, _ := s.GraphVersion(ctx, "p1")
	for i, pair := range [][2]domain.TaskID{{"t1", "t2"}, {"t2", "t3"}} {
		e := domain.Edge{ID: domain.EdgeID("e" + string(rune('1'+i))), ProjectID: "p1", From: pair[0], To: pair[1], CreatedAt: time.Now()}
		var err error
		if v, err = s.InsertDependency(ctx, e, v); err != nil {
			t.Fatalf("insert %v: %v", pair, err)
		}
	}

	task, removed, v2, err := s.DeleteTask(ctx, "t2")
	if err != nil {
		t.Fatalf("DeleteTask: %v", err)
	}
	if task.FunctionID != "fn1" {
		t.Errorf("removed task function = %q, want fn1", task.FunctionID)
	}
	if len(removed) != 2 {
		t.Errorf("removed edges = %d, want 2", len(removed))
	}
	if v2 != v+1 {
		t.Errorf("version = %d, want %d", v2, v+1)
	}
	left, _ := s.ListDependencies(ctx, "p1")
	if len(left) != 0 {
		t.Errorf("edges left = %v, want none", left)
	}

	if _, _, _, err := s.DeleteTask(ctx, "t2"); !domain.IsNotFound(err) {
		t.Errorf("second delete error = %v, want NotFound", err)
	}
}

// ─── Dates ──────────────────────────────────────────────────────────────────

func TestShiftDates(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	if _, _, err := s.CreateTask(ctx, store.TaskParams{
		ID: "t1", FunctionID: "fn1", Title: "Write", Status: domain.StatusToDo,
		StartDate: date(2026, 3, 1), Deadline: date(2026, 3, 5),
	}); err != nil {
		t.Fatal(err)
	}
	task, err := s.ShiftTaskDates(ctx, "t1", 3)
	if err != nil {
		t.Fatalf("ShiftTaskDates: %v", err)
	}
	if !task.StartDate.Equal(*date(2026, 3, 4)) || !task.Deadline.Equal(*date(2026, 3, 8)) {
		t.Errorf("dates = %v..%v", task.StartDate, task.Deadline)
	}

	if _, err := s.CreateMilestone(ctx, store.MilestoneParams{ID: "m1", ProjectID: "p1", Title: "Beta", Deadline: date(2026, 4, 1)}); err != nil {
		t.Fatal(err)
	}
	m, err := s.ShiftMilestoneDates(ctx, "m1", -2)
	if err != nil {
		t.Fatalf("ShiftMilestoneDates: %v", err)
	}
	if m.StartDate != nil {
		t.Errorf("unset start date became %v", m.StartDate)
	}
	reloaded, _ := s.GetMilestone(ctx, "m1")
	if !reloaded.Deadline.Equal(*date(2026, 3, 30)) {
		t.Errorf("deadline = %v, want 2026-03-30", reloaded.Deadline)
	}
}

// ─── Activity ───────────────────────────────────────────────────────────────

func TestActivity_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, action := range []string{"TaskCreated", "StatusChanged", "DependencyAdded"} {
		if err := s.RecordActivity(ctx, domain.Activity{
			ProjectID: "p1",
			Entity:    domain.TaskRef("t1"),
			Action:    action,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("RecordActivity: %v", err)
		}
	}

	got, err := s.ListActivity(ctx, "p1", 2)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Action != "DependencyAdded" || got[1].Action != "StatusChanged" {
		t.Errorf("order = %s, %s", got[0].Action, got[1].Action)
	}
	if got[0].Entity != domain.TaskRef("t1") {
		t.Errorf("entity = %v", got[0].Entity)
	}
}

func TestGraphVersion_UnknownProject(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GraphVersion(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

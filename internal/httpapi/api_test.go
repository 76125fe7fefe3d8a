package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/capstone-tracker/internal/dependency"
	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/gantt"
	"github.com/HendryAvila/capstone-tracker/internal/httpapi"
	"github.com/HendryAvila/capstone-tracker/internal/progress"
	"github.com/HendryAvila/capstone-tracker/internal/projectlock"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

type harness struct {
	t     *testing.T
	store *store.Store
	agg   *progress.Aggregator
	srv   *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	s, err := store.New(store.Config{DataDir: t.TempDir(), BusyTimeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	locks := projectlock.New()
	bus := events.NewBus()
	events.NewActivityRecorder(s).Attach(bus)
	deps := dependency.NewService(s, locks, bus)
	deps.Attach(bus)
	agg, err := progress.NewAggregator(progress.DefaultConfig(), s, s, locks, bus)
	require.NoError(t, err)
	agg.Attach(bus)
	asm := gantt.NewAssembler(s, deps, agg.Cache(), locks, bus)

	srv := httptest.NewServer(httpapi.New(s, deps, agg, asm).Handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	_, err = s.CreateProject(ctx, "p1", "Capstone")
	require.NoError(t, err)
	_, err = s.CreateFeature(ctx, store.FeatureParams{ID: "A", ProjectID: "p1", Title: "Auth", Status: domain.StatusToDo})
	require.NoError(t, err)
	_, err = s.CreateFunction(ctx, store.FunctionParams{ID: "A1", FeatureID: "A", Title: "Login", Status: domain.StatusToDo})
	require.NoError(t, err)
	_, err = s.CreateMilestone(ctx, store.MilestoneParams{ID: "M1", ProjectID: "p1", Title: "Beta"})
	require.NoError(t, err)

	return &harness{t: t, store: s, agg: agg, srv: srv}
}

// do sends a JSON request and decodes the JSON response into out.
func (h *harness) do(method, path string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (h *harness) task(id string) {
	h.t.Helper()
	code := h.do(http.MethodPost, "/functions/A1/tasks", map[string]string{"_id": id, "title": "task " + id}, nil)
	require.Equal(h.t, http.StatusCreated, code)
}

type errorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"reason"`
}

func TestDependencies_AddValidateListRemove(t *testing.T) {
	h := newHarness(t)
	h.task("T1")
	h.task("T2")

	// T2 depends on T1.
	var edge domain.Edge
	code := h.do(http.MethodPost, "/tasks/T2/dependencies", map[string]string{"dependsOnTaskId": "T1"}, &edge)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.TaskID("T1"), edge.From)
	assert.Equal(t, domain.TaskID("T2"), edge.To)
	assert.Equal(t, domain.ProjectID("p1"), edge.ProjectID)
	assert.NotEmpty(t, edge.ID)

	// Scenario A over HTTP: T2 → T1 would close a cycle.
	var v dependency.Validation
	code = h.do(http.MethodPost, "/tasks/T2/dependencies/validate", map[string]string{"targetTaskId": "T1"}, &v)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.KindCircularDependency, v.Reason)

	var listing dependency.Listing
	code = h.do(http.MethodGet, "/tasks/T1/dependencies", nil, &listing)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, listing.Dependents, 1)
	assert.Equal(t, domain.TaskID("T2"), listing.Dependents[0].Task.ID)
	assert.Empty(t, listing.Dependencies)

	// The edge T1 → T2 cannot be removed through an unrelated task.
	h.task("T9")
	var e errorResponse
	code = h.do(http.MethodDelete, "/tasks/T9/dependencies/"+string(edge.ID), nil, &e)
	assert.Equal(t, http.StatusNotFound, code)

	code = h.do(http.MethodDelete, "/tasks/T2/dependencies/"+string(edge.ID), nil, nil)
	assert.Equal(t, http.StatusOK, code)

	code = h.do(http.MethodDelete, "/tasks/T2/dependencies/"+string(edge.ID), nil, &e)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NotFound", e.Reason)
}

func TestDependencies_ErrorStatuses(t *testing.T) {
	h := newHarness(t)
	h.task("T1")
	h.task("T2")
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/tasks/T2/dependencies", map[string]string{"dependsOnTaskId": "T1"}, nil))

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		reason string
	}{
		{"cycle", "/tasks/T1/dependencies", map[string]string{"dependsOnTaskId": "T2"}, http.StatusConflict, "CircularDependency"},
		{"duplicate", "/tasks/T2/dependencies", map[string]string{"dependsOnTaskId": "T1"}, http.StatusBadRequest, "InvalidEdge"},
		{"self", "/tasks/T1/dependencies", map[string]string{"targetTaskId": "T1"}, http.StatusBadRequest, "InvalidEdge"},
		{"missing other", "/tasks/T1/dependencies", map[string]string{"targetTaskId": "ghost"}, http.StatusNotFound, "NotFound"},
		{"missing route task", "/tasks/ghost/dependencies", map[string]string{"targetTaskId": "T1"}, http.StatusNotFound, "NotFound"},
		{"empty body", "/tasks/T1/dependencies", map[string]string{}, http.StatusBadRequest, "InvalidInput"},
		{"both fields", "/tasks/T1/dependencies", map[string]string{"targetTaskId": "T2", "dependsOnTaskId": "T2"}, http.StatusBadRequest, "InvalidInput"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorResponse
			code := h.do(http.MethodPost, tt.path, tt.body, &e)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.reason, e.Reason)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestValidate_MissingOtherTaskIsInvalidNotError(t *testing.T) {
	h := newHarness(t)
	h.task("T1")

	var v dependency.Validation
	code := h.do(http.MethodPost, "/tasks/T1/dependencies/validate", map[string]string{"targetTaskId": "ghost"}, &v)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, v.Valid)
	assert.Equal(t, domain.KindNotFound, v.Reason)
}

func TestStatusAndProgress(t *testing.T) {
	h := newHarness(t)
	h.task("T1")
	h.task("T2")
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/milestones/M1/features", map[string]string{"featureId": "A"}, nil))

	var change progress.StatusChange
	code := h.do(http.MethodPatch, "/tasks/T1/status", map[string]string{"status": "Done"}, &change)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 50, change.Function.Percentage)
	assert.Equal(t, domain.StatusDoing, change.Function.Status)

	var cached progress.CachedProgress
	code = h.do(http.MethodGet, "/functions/A1/progress", nil, &cached)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 50, cached.Percentage())

	code = h.do(http.MethodGet, "/milestones/M1/progress", nil, &cached)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, cached.Milestone)
	assert.Equal(t, 0, cached.Milestone.Percentage, "no function is complete yet")

	var e errorResponse
	code = h.do(http.MethodPatch, "/tasks/T1/status", map[string]string{"status": "Blocked"}, &e)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidInput", e.Reason)

	code = h.do(http.MethodGet, "/features/ghost/progress", nil, &e)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRemoveTask_ScenarioD(t *testing.T) {
	h := newHarness(t)
	h.task("T0")
	h.task("T1")
	h.task("T2")
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/tasks/T1/dependencies", map[string]string{"dependsOnTaskId": "T0"}, nil))
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/tasks/T2/dependencies", map[string]string{"dependsOnTaskId": "T1"}, nil))

	require.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/tasks/T1", nil, nil))

	var listing dependency.Listing
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/tasks/T2/dependencies", nil, &listing))
	assert.Empty(t, listing.Dependencies)

	var activity struct {
		Activity []domain.Activity `json:"activity"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/projects/p1/activity?limit=50", nil, &activity))
	actions := map[string]int{}
	for _, a := range activity.Activity {
		actions[a.Action]++
	}
	assert.Equal(t, 1, actions["TaskRemoved"])
	assert.Equal(t, 2, actions["DependencyRemoved"])
}

func TestGanttRoutes(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/functions/A1/tasks",
		map[string]string{"_id": "T1", "title": "Build", "startDate": "2026-03-01", "deadline": "2026-03-04"}, nil))
	h.task("T2")
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/tasks/T2/dependencies", map[string]string{"dependsOnTaskId": "T1"}, nil))
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/milestones/M1/features", map[string]string{"featureId": "A"}, nil))

	var chart gantt.TaskChart
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/projects/p1/tasks/gantt", nil, &chart))
	require.Len(t, chart.Tasks, 2)
	assert.Equal(t, domain.TaskID("T1"), chart.Tasks[0].ID)
	assert.Equal(t, []domain.TaskID{"T1"}, chart.Tasks[1].Dependencies)

	var tree struct {
		Milestones []gantt.MilestoneNode `json:"milestones"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/projects/p1/gantt/hierarchy", nil, &tree))
	require.Len(t, tree.Milestones, 1)
	require.Len(t, tree.Milestones[0].Features, 1)

	var shift gantt.Shift
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/tasks/T1/dates", map[string]int{"deltaDays": 2}, &shift))
	require.NotNil(t, shift.StartDate)
	assert.Equal(t, "2026-03-03", shift.StartDate.Format(time.DateOnly))

	var e errorResponse
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/projects/ghost/tasks/gantt", nil, &e))
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPatch, "/milestones/M1/dates", map[string]int{}, &e))

	// A zero-day drag answers with the current dates.
	var same gantt.Shift
	require.Equal(t, http.StatusOK, h.do(http.MethodPatch, "/tasks/T1/dates", map[string]int{"deltaDays": 0}, &same))
	require.NotNil(t, same.StartDate)
	assert.Equal(t, "2026-03-03", same.StartDate.Format(time.DateOnly))
}

func TestMilestoneLinkLifecycle(t *testing.T) {
	h := newHarness(t)
	var e errorResponse

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/milestones/M1/features", map[string]string{}, &e))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodPost, "/milestones/M1/features", map[string]string{"featureId": "ghost"}, &e))
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/milestones/M1/features", map[string]string{"featureId": "A"}, nil))
	assert.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/milestones/M1/features/A", nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/milestones/M1/features/A", nil, &e))
	assert.Equal(t, http.StatusOK, h.do(http.MethodDelete, "/milestones/M1", nil, nil))
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/milestones/M1", nil, &e))
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	var body map[string]string
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/store"
)

// ─── Dependencies ────────────────────────────────────────────────────────────

// edgeRequest names the other end of an edge relative to the route task.
// dependsOnTaskId: the route task waits for it (edge other → task).
// targetTaskId: it waits for the route task (edge task → other).
type edgeRequest struct {
	DependsOnTaskID domain.TaskID `json:"dependsOnTaskId,omitempty"`
	TargetTaskID    domain.TaskID `json:"targetTaskId,omitempty"`
}

func (req edgeRequest) endpoints(task domain.TaskID) (from, to domain.TaskID, err error) {
	switch {
	case req.DependsOnTaskID != "" && req.TargetTaskID != "":
		return "", "", domain.Invalid("set either dependsOnTaskId or targetTaskId, not both")
	case req.DependsOnTaskID != "":
		return req.DependsOnTaskID, task, nil
	case req.TargetTaskID != "":
		return task, req.TargetTaskID, nil
	}
	return "", "", domain.Invalid("dependsOnTaskId or targetTaskId is required")
}

// routeEdge loads the route task and resolves the edge named by the body.
func (a *API) routeEdge(w http.ResponseWriter, r *http.Request) (domain.Task, domain.TaskID, domain.TaskID, error) {
	task, err := a.store.GetTask(r.Context(), domain.TaskID(r.PathValue("taskId")))
	if err != nil {
		return domain.Task{}, "", "", err
	}
	var req edgeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return domain.Task{}, "", "", err
	}
	from, to, err := req.endpoints(task.ID)
	if err != nil {
		return domain.Task{}, "", "", err
	}
	return task, from, to, nil
}

func (a *API) listDependencies(w http.ResponseWriter, r *http.Request) {
	listing, err := a.deps.List(r.Context(), domain.TaskID(r.PathValue("taskId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (a *API) validateDependency(w http.ResponseWriter, r *http.Request) {
	task, from, to, err := a.routeEdge(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := a.deps.Validate(r.Context(), task.ProjectID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) addDependency(w http.ResponseWriter, r *http.Request) {
	task, from, to, err := a.routeEdge(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := a.deps.Add(r.Context(), task.ProjectID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *API) removeDependency(w http.ResponseWriter, r *http.Request) {
	task, err := a.store.GetTask(r.Context(), domain.TaskID(r.PathValue("taskId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := a.deps.RemoveForTask(r.Context(), task.ProjectID, task.ID, domain.EdgeID(r.PathValue("dependencyId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "dependency removed", "dependency": e})
}

// ─── Gantt ───────────────────────────────────────────────────────────────────

func (a *API) ganttTasks(w http.ResponseWriter, r *http.Request) {
	chart, err := a.gantt.TasksWithDependencies(r.Context(), domain.ProjectID(r.PathValue("projectId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (a *API) ganttHierarchy(w http.ResponseWriter, r *http.Request) {
	tree, err := a.gantt.HierarchyFor(r.Context(), domain.ProjectID(r.PathValue("projectId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"milestones": tree})
}

type shiftRequest struct {
	DeltaDays *int `json:"deltaDays"`
}

func (a *API) shift(w http.ResponseWriter, r *http.Request, ref domain.EntityRef) {
	var req shiftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.DeltaDays == nil {
		writeError(w, r, domain.Invalid("deltaDays is required"))
		return
	}
	res, err := a.gantt.ShiftDates(r.Context(), ref, *req.DeltaDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) shiftTaskDates(w http.ResponseWriter, r *http.Request) {
	a.shift(w, r, domain.TaskRef(domain.TaskID(r.PathValue("taskId"))))
}

func (a *API) shiftMilestoneDates(w http.ResponseWriter, r *http.Request) {
	a.shift(w, r, domain.MilestoneRef(domain.MilestoneID(r.PathValue("milestoneId"))))
}

// ─── Tasks and progress ──────────────────────────────────────────────────────

type createTaskRequest struct {
	ID        domain.TaskID `json:"_id,omitempty"`
	Title     string        `json:"title"`
	Status    domain.Status `json:"status,omitempty"`
	StartDate string        `json:"startDate,omitempty"`
	Deadline  string        `json:"deadline,omitempty"`
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, domain.Invalid(field + ": expected YYYY-MM-DD or an RFC 3339 timestamp")
}

func (a *API) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	deadline, err := parseDate("deadline", req.Deadline)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if start != nil && deadline != nil && deadline.Before(*start) {
		writeError(w, r, domain.Invalid("deadline is before startDate"))
		return
	}

	t, err := a.progress.CreateTask(r.Context(), store.TaskParams{
		ID:         req.ID,
		FunctionID: domain.FunctionID(r.PathValue("functionId")),
		Title:      req.Title,
		Status:     req.Status,
		StartDate:  start,
		Deadline:   deadline,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

type statusRequest struct {
	Status domain.Status `json:"status"`
}

func (a *API) setTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.progress.OnTaskStatusChanged(r.Context(), domain.TaskID(r.PathValue("taskId")), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) removeTask(w http.ResponseWriter, r *http.Request) {
	t, err := a.progress.RemoveTask(r.Context(), domain.TaskID(r.PathValue("taskId")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "task removed", "task": t})
}

func (a *API) progressOf(kind domain.EntityKind, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := domain.EntityRef{Kind: kind, ID: r.PathValue(param)}
		c, err := a.progress.Cache().Get(r.Context(), ref)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// ─── Milestones ──────────────────────────────────────────────────────────────

type linkRequest struct {
	FeatureID domain.FeatureID `json:"featureId"`
}

func (a *API) linkFeature(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.FeatureID == "" {
		writeError(w, r, domain.Invalid("featureId is required"))
		return
	}
	milestone := domain.MilestoneID(r.PathValue("milestoneId"))
	if err := a.progress.LinkFeature(r.Context(), milestone, req.FeatureID); err != nil {
		writeError(w, r, err)
		return
	}
	a.milestoneProgress(w, r, milestone)
}

func (a *API) unlinkFeature(w http.ResponseWriter, r *http.Request) {
	milestone := domain.MilestoneID(r.PathValue("milestoneId"))
	feature := domain.FeatureID(r.PathValue("featureId"))
	if err := a.progress.UnlinkFeature(r.Context(), milestone, feature); err != nil {
		writeError(w, r, err)
		return
	}
	a.milestoneProgress(w, r, milestone)
}

func (a *API) milestoneProgress(w http.ResponseWriter, r *http.Request, id domain.MilestoneID) {
	c, err := a.progress.Cache().Get(r.Context(), domain.MilestoneRef(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) removeMilestone(w http.ResponseWriter, r *http.Request) {
	if err := a.progress.RemoveMilestone(r.Context(), domain.MilestoneID(r.PathValue("milestoneId"))); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "milestone removed"})
}

func (a *API) listActivity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, domain.Invalid("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	acts, err := a.store.ListActivity(r.Context(), domain.ProjectID(r.PathValue("projectId")), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if acts == nil {
		acts = []domain.Activity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": acts})
}

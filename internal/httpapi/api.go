// Package httpapi exposes the tracker core over HTTP/JSON.
//
// Handlers only translate: they decode the request, call one core
// operation, and encode the result or map the error to a status code.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/HendryAvila/capstone-tracker/internal/dependency"
	"github.com/HendryAvila/capstone-tracker/internal/domain"
	"github.com/HendryAvila/capstone-tracker/internal/gantt"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
	"github.com/HendryAvila/capstone-tracker/internal/progress"
)

// Store is the direct store access the API needs.
type Store interface {
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
	ListActivity(ctx context.Context, project domain.ProjectID, limit int) ([]domain.Activity, error)
	Ping(ctx context.Context) error
}

// API holds the core services behind the HTTP routes.
type API struct {
	store    Store
	deps     *dependency.Service
	progress *progress.Aggregator
	gantt    *gantt.Assembler
}

// New creates an API.
func New(store Store, deps *dependency.Service, agg *progress.Aggregator, asm *gantt.Assembler) *API {
	return &API{store: store, deps: deps, progress: agg, gantt: asm}
}

// Handler returns the routed, instrumented HTTP handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	// Dependencies
	mux.HandleFunc("GET /tasks/{taskId}/dependencies", a.listDependencies)
	mux.HandleFunc("POST /tasks/{taskId}/dependencies/validate", a.validateDependency)
	mux.HandleFunc("POST /tasks/{taskId}/dependencies", a.addDependency)
	mux.HandleFunc("DELETE /tasks/{taskId}/dependencies/{dependencyId}", a.removeDependency)

	// Gantt
	mux.HandleFunc("GET /projects/{projectId}/tasks/gantt", a.ganttTasks)
	mux.HandleFunc("GET /projects/{projectId}/gantt/hierarchy", a.ganttHierarchy)
	mux.HandleFunc("PATCH /tasks/{taskId}/dates", a.shiftTaskDates)
	mux.HandleFunc("PATCH /milestones/{milestoneId}/dates", a.shiftMilestoneDates)

	// Tasks and progress
	mux.HandleFunc("POST /functions/{functionId}/tasks", a.createTask)
	mux.HandleFunc("PATCH /tasks/{taskId}/status", a.setTaskStatus)
	mux.HandleFunc("DELETE /tasks/{taskId}", a.removeTask)
	mux.HandleFunc("GET /functions/{functionId}/progress", a.progressOf(domain.KindFunction, "functionId"))
	mux.HandleFunc("GET /features/{featureId}/progress", a.progressOf(domain.KindFeature, "featureId"))
	mux.HandleFunc("GET /milestones/{milestoneId}/progress", a.progressOf(domain.KindMilestone, "milestoneId"))

	// Milestones
	mux.HandleFunc("POST /milestones/{milestoneId}/features", a.linkFeature)
	mux.HandleFunc("DELETE /milestones/{milestoneId}/features/{featureId}", a.unlinkFeature)
	mux.HandleFunc("DELETE /milestones/{milestoneId}", a.removeMilestone)

	mux.HandleFunc("GET /projects/{projectId}/activity", a.listActivity)
	mux.HandleFunc("GET /healthz", a.healthz)

	return recoverer(logRequests(mux))
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Debug("HTTP", "%s %s → %d in %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logging.Warn("HTTP", "panic serving %s %s: %v", r.Method, r.URL.Path, v)
				writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		logging.Error("HTTP", err, "health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

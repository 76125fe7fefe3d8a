// Package server wires the tracker core and exposes it over MCP and HTTP.
//
// This is the composition root: it creates the store, the event bus and
// the core services, subscribes the services to the bus, and injects them
// into the MCP tools and the HTTP API. No business logic lives here.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/HendryAvila/capstone-tracker/internal/config"
	"github.com/HendryAvila/capstone-tracker/internal/dependency"
	"github.com/HendryAvila/capstone-tracker/internal/events"
	"github.com/HendryAvila/capstone-tracker/internal/gantt"
	"github.com/HendryAvila/capstone-tracker/internal/httpapi"
	"github.com/HendryAvila/capstone-tracker/internal/logging"
	"github.com/HendryAvila/capstone-tracker/internal/progress"
	"github.com/HendryAvila/capstone-tracker/internal/projectlock"
	"github.com/HendryAvila/capstone-tracker/internal/prompts"
	"github.com/HendryAvila/capstone-tracker/internal/resources"
	"github.com/HendryAvila/capstone-tracker/internal/store"
	"github.com/HendryAvila/capstone-tracker/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// App holds the wired core. Both front ends share one App so they see
// the same caches and lock arena.
type App struct {
	Config   config.Config
	Store    *store.Store
	Bus      *events.Bus
	Deps     *dependency.Service
	Progress *progress.Aggregator
	Gantt    *gantt.Assembler
}

// NewApp opens the store and wires every core service. Close releases it.
func NewApp(cfg config.Config) (*App, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, fmt.Errorf("status policy: %w", err)
	}

	st, err := store.New(store.Config{
		DataDir:     cfg.Database.DataDir,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	locks := projectlock.New()
	bus := events.NewBus()

	// Subscription order is delivery order: the dependency graph is
	// patched before progress is recomputed, and activity is recorded last.
	deps := dependency.NewService(st, locks, bus)
	deps.Attach(bus)

	agg, err := progress.NewAggregator(progress.Config{Policy: policy, MilestoneBasis: cfg.Basis()}, st, st, locks, bus)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating aggregator: %w", err)
	}
	agg.Attach(bus)

	events.NewActivityRecorder(st).Attach(bus)

	return &App{
		Config:   cfg,
		Store:    st,
		Bus:      bus,
		Deps:     deps,
		Progress: agg,
		Gantt:    gantt.NewAssembler(st, deps, agg.Cache(), locks, bus),
	}, nil
}

// Close closes the store.
func (a *App) Close() error {
	return a.Store.Close()
}

// MCPServer creates an MCP server with every tool, prompt and resource
// registered against this App.
func (a *App) MCPServer() *server.MCPServer {
	s := server.NewMCPServer(
		"capstone",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Dependencies ---

	depList := tools.NewDependencyListTool(a.Deps)
	s.AddTool(depList.Definition(), depList.Handle)

	depValidate := tools.NewDependencyValidateTool(a.Store, a.Deps)
	s.AddTool(depValidate.Definition(), depValidate.Handle)

	depAdd := tools.NewDependencyAddTool(a.Store, a.Deps)
	s.AddTool(depAdd.Definition(), depAdd.Handle)

	depRemove := tools.NewDependencyRemoveTool(a.Store, a.Deps)
	s.AddTool(depRemove.Definition(), depRemove.Handle)

	// --- Tasks and progress ---

	taskCreate := tools.NewTaskCreateTool(a.Progress)
	s.AddTool(taskCreate.Definition(), taskCreate.Handle)

	taskStatus := tools.NewTaskStatusTool(a.Progress)
	s.AddTool(taskStatus.Definition(), taskStatus.Handle)

	taskRemove := tools.NewTaskRemoveTool(a.Progress)
	s.AddTool(taskRemove.Definition(), taskRemove.Handle)

	progressTool := tools.NewProgressTool(a.Progress)
	s.AddTool(progressTool.Definition(), progressTool.Handle)

	link := tools.NewMilestoneLinkTool(a.Progress)
	s.AddTool(link.Definition(), link.Handle)

	unlink := tools.NewMilestoneUnlinkTool(a.Progress)
	s.AddTool(unlink.Definition(), unlink.Handle)

	// --- Gantt ---

	ganttTasks := tools.NewGanttTasksTool(a.Gantt)
	s.AddTool(ganttTasks.Definition(), ganttTasks.Handle)

	ganttHierarchy := tools.NewGanttHierarchyTool(a.Gantt)
	s.AddTool(ganttHierarchy.Definition(), ganttHierarchy.Handle)

	ganttShift := tools.NewGanttShiftTool(a.Gantt)
	s.AddTool(ganttShift.Definition(), ganttShift.Handle)

	activity := tools.NewActivityTool(a.Store)
	s.AddTool(activity.Definition(), activity.Handle)

	// --- Prompts ---

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	planPrompt := prompts.NewPlanPrompt()
	s.AddPrompt(planPrompt.Definition(), planPrompt.Handle)

	// --- Resources ---

	resourceHandler := resources.NewHandler(a.Gantt)
	s.AddResourceTemplate(resourceHandler.GanttTemplate(), resourceHandler.HandleGantt)

	return s
}

// HTTPServer creates the HTTP server for the JSON API.
func (a *App) HTTPServer() *http.Server {
	api := httpapi.New(a.Store, a.Deps, a.Progress, a.Gantt)
	return &http.Server{
		Addr:         a.Config.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}
}

// ServeHTTP serves the JSON API on ln until ctx is cancelled, then shuts
// down gracefully within the configured timeout.
func (a *App) ServeHTTP(ctx context.Context, ln net.Listener) error {
	srv := a.HTTPServer()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("HTTP", "listening on http://%s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
		defer cancel()
		logging.Info("HTTP", "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// New creates the MCP server over a fresh App. The returned cleanup
// function closes the store and must be called on shutdown.
func New(cfg config.Config) (*server.MCPServer, func(), error) {
	app, err := NewApp(cfg)
	if err != nil {
		return nil, noop, err
	}
	cleanup := func() {
		if err := app.Close(); err != nil {
			logging.Warn("Server", "closing store: %v", err)
		}
	}
	return app.MCPServer(), cleanup, nil
}

// noop is the cleanup returned when nothing was opened.
func noop() {}

// serverInstructions tells the AI how the tracker is organized.
func serverInstructions() string {
	return `You have access to a capstone project tracker.

## MODEL

Projects contain Milestones, Features, Functions and Tasks.
- A Feature groups Functions; a Function groups Tasks.
- A Milestone is linked to any number of Features of the same project.
- Only Task status is set by hand. Function, Feature and Milestone progress
  is derived and recomputed automatically after every change.

## DEPENDENCIES

A dependency "A before B" means B cannot start until A is finished.
Dependencies never form a cycle: adding one that would is rejected with
the offending path. Use capstone_dependency_validate to check first.

## TOOLS

- capstone_gantt_tasks: every task in dependency order
- capstone_gantt_hierarchy: milestone → feature → function tree
- capstone_task_set_status: the main write; returns new percentages
- capstone_dependency_add / _remove / _list / _validate
- capstone_progress_get, capstone_activity

Read project state with the gantt tools before proposing changes.`
}

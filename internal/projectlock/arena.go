// Package projectlock serializes writers per Project.
//
// Every Project gets its own RWMutex, created on first use and kept for the
// life of the process. Writers (dependency add/remove, task status change,
// task create/remove, link changes, date shifts) hold the write lock around
// "mutate, then recompute"; readers hold the read lock so they never see a
// half-applied mutation. Unrelated Projects never contend.
package projectlock

import (
	"sync"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

// Arena maps Project IDs to their locks.
type Arena struct {
	mu    sync.Mutex
	locks map[domain.ProjectID]*sync.RWMutex
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{locks: make(map[domain.ProjectID]*sync.RWMutex)}
}

func (a *Arena) get(id domain.ProjectID) *sync.RWMutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	l, ok := a.locks[id]
	if !ok {
		l = &sync.RWMutex{}
		a.locks[id] = l
	}
	return l
}

// Lock takes the Project's write lock and returns its release func.
func (a *Arena) Lock(id domain.ProjectID) func() {
	l := a.get(id)
	l.Lock()
	return l.Unlock
}

// RLock takes the Project's read lock and returns its release func.
func (a *Arena) RLock(id domain.ProjectID) func() {
	l := a.get(id)
	l.RLock()
	return l.RUnlock
}

// Len returns the number of Projects that have been locked at least once.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}

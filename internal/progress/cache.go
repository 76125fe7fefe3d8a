package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/HendryAvila/capstone-tracker/internal/domain"
)

// CachedProgress is one cached aggregate. Exactly one of Progress and
// Milestone is set, depending on Ref.Kind.
type CachedProgress struct {
	Ref        domain.EntityRef          `json:"ref"`
	Progress   *domain.Progress          `json:"progress,omitempty"`
	Milestone  *domain.MilestoneProgress `json:"milestone,omitempty"`
	ComputedAt time.Time                 `json:"computedAt"`
}

// Percentage returns the cached percentage regardless of kind.
func (c CachedProgress) Percentage() int {
	switch {
	case c.Progress != nil:
		return c.Progress.Percentage
	case c.Milestone != nil:
		return c.Milestone.Percentage
	}
	return 0
}

// Resolver finds the entities whose aggregates depend on ref: a Task's
// Function, a Function's Feature, a Feature's Milestones.
type Resolver interface {
	Parents(ctx context.Context, ref domain.EntityRef) ([]domain.EntityRef, error)
}

// ComputeFunc recomputes the aggregate of one entity.
type ComputeFunc func(ctx context.Context, ref domain.EntityRef) (CachedProgress, error)

type cacheEntry struct {
	value CachedProgress
	fresh bool
	gen   uint64
}

// Cache holds the latest aggregate per entity. Concurrent misses for the
// same entity share one recompute.
type Cache struct {
	mu      sync.Mutex
	entries map[domain.EntityRef]*cacheEntry
	group   singleflight.Group

	resolver Resolver
	compute  ComputeFunc
	now      func() time.Time
}

// NewCache creates a Cache. compute is used on misses; resolver drives
// upward invalidation.
func NewCache(resolver Resolver, compute ComputeFunc) *Cache {
	return &Cache{
		entries:  make(map[domain.EntityRef]*cacheEntry),
		resolver: resolver,
		compute:  compute,
		now:      time.Now,
	}
}

func (c *Cache) entry(ref domain.EntityRef) *cacheEntry {
	e, ok := c.entries[ref]
	if !ok {
		e = &cacheEntry{}
		c.entries[ref] = e
	}
	return e
}

// Peek returns a fresh entry without recomputing.
func (c *Cache) Peek(ref domain.EntityRef) (CachedProgress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ref]
	if !ok || !e.fresh {
		return CachedProgress{}, false
	}
	return e.value, true
}

// Get returns the fresh entry for ref, recomputing it on a miss. Nothing
// is stored when the recompute fails. The recompute is shared by every
// caller waiting on ref, so it does not inherit the first caller's
// cancellation.
func (c *Cache) Get(ctx context.Context, ref domain.EntityRef) (CachedProgress, error) {
	c.mu.Lock()
	var gen uint64
	if e, ok := c.entries[ref]; ok {
		if e.fresh {
			v := e.value
			c.mu.Unlock()
			return v, nil
		}
		gen = e.gen
	}
	c.mu.Unlock()

	if c.compute == nil {
		return CachedProgress{}, fmt.Errorf("no progress computed for %s", ref)
	}

	shared := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(ref.String(), func() (any, error) {
		return c.compute(shared, ref)
	})
	if err != nil {
		return CachedProgress{}, err
	}
	value := v.(CachedProgress)

	c.mu.Lock()
	// An invalidation that raced with the recompute wins. Invalidation
	// always leaves an entry behind, so a missing entry means none ran.
	e, ok := c.entries[ref]
	switch {
	case !ok:
		c.entries[ref] = &cacheEntry{value: value, fresh: true, gen: gen}
	case e.gen == gen:
		e.value = value
		e.fresh = true
	}
	c.mu.Unlock()
	return value, nil
}

// Put stores a freshly computed aggregate.
func (c *Cache) Put(value CachedProgress) {
	if value.ComputedAt.IsZero() {
		value.ComputedAt = c.now()
	}
	c.mu.Lock()
	e := c.entry(value.Ref)
	e.value = value
	e.fresh = true
	c.mu.Unlock()
}

// Invalidate marks ref stale and propagates upward through the resolver.
func (c *Cache) Invalidate(ctx context.Context, ref domain.EntityRef) error {
	seen := map[domain.EntityRef]bool{}
	queue := []domain.EntityRef{ref}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true

		c.markStale(cur)

		if c.resolver == nil {
			continue
		}
		parents, err := c.resolver.Parents(ctx, cur)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return fmt.Errorf("invalidating parents of %s: %w", cur, err)
		}
		queue = append(queue, parents...)
	}
	return nil
}

func (c *Cache) markStale(ref domain.EntityRef) {
	if ref.Kind == domain.KindTask {
		return
	}
	c.mu.Lock()
	e := c.entry(ref)
	e.fresh = false
	e.gen++
	c.mu.Unlock()
}

// Forget drops the cached value of a deleted entity. The entry itself is
// kept so that an in-flight recompute cannot repopulate it.
func (c *Cache) Forget(ref domain.EntityRef) {
	c.mu.Lock()
	if e, ok := c.entries[ref]; ok {
		e.value = CachedProgress{}
		e.fresh = false
		e.gen++
	}
	c.mu.Unlock()
}

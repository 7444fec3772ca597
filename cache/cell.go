package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Cell is a single keyed, lockable, schedulable value slot. A cell is
// created once by its Store and lives until process teardown. All field
// mutation happens while the cell lock is held, by exactly one refresh
// task or by an explicit Update.
//
// Readers may observe a stale value without holding the lock; that is the
// intended stale-while-revalidate behavior, bounded by the refresh
// interval. Any read that also arms the trigger or waits for population
// must hold the lock.
type Cell struct {
	key   string
	store *Store

	mu        sync.Mutex
	populated *sync.Cond // bound to mu, broadcast on value change

	value       any
	raw         []byte // serialized value loaded from the snapshot, decoded lazily
	lastRefresh time.Time     // zero until the first successful refresh
	interval    time.Duration // zero until the cell is scheduled

	trigger chan struct{} // cap 1, doubles as the pending-trigger flag
}

func newCell(key string, store *Store) *Cell {
	c := &Cell{
		key:     key,
		store:   store,
		trigger: make(chan struct{}, 1),
	}
	c.populated = sync.NewCond(&c.mu)
	return c
}

// Key returns the cell's resource key.
func (c *Cell) Key() string { return c.key }

// Lock acquires the cell's exclusive lock.
func (c *Cell) Lock() { c.mu.Lock() }

// Unlock releases the cell's exclusive lock.
func (c *Cell) Unlock() { c.mu.Unlock() }

// Value returns the current value, which may be nil if the cell has never
// been refreshed and no snapshot was loaded.
func (c *Cell) Value() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Cell) populatedLocked() bool {
	return c.value != nil || c.raw != nil
}

// Populated reports whether the cell holds a value (live or loaded from
// the snapshot).
func (c *Cell) Populated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.populatedLocked()
}

func (c *Cell) expiredLocked(now time.Time) bool {
	if c.lastRefresh.IsZero() {
		return true
	}
	if c.interval <= 0 {
		return false
	}
	return !now.Before(c.lastRefresh.Add(c.interval))
}

// Expired reports whether the cell is due for a refresh: either it has
// never refreshed, or its interval has elapsed since the last refresh.
func (c *Cell) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiredLocked(time.Now())
}

func (c *Cell) nextDueLocked(now time.Time) (time.Time, bool) {
	if c.lastRefresh.IsZero() {
		return now, true
	}
	if c.interval <= 0 {
		return time.Time{}, false
	}
	return c.lastRefresh.Add(c.interval), true
}

// NextDue returns the next wall-clock time the cell becomes due, or
// ok=false if the cell has a value but no interval assigned yet.
func (c *Cell) NextDue() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextDueLocked(time.Now())
}

// Interval returns the assigned refresh interval, zero if unscheduled.
func (c *Cell) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// LastRefresh returns the time of the last successful refresh, zero if
// the cell has never refreshed.
func (c *Cell) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// SetInterval assigns the refresh interval if one is not already set.
// Once assigned, an interval never reverts to unset. The caller must
// hold the cell lock.
func (c *Cell) SetInterval(interval time.Duration) {
	if c.interval <= 0 && interval > 0 {
		c.interval = interval
	}
}

// Trigger sets the pending-trigger flag and wakes a task blocked in
// WaitForDue. Non-blocking; safe without the lock.
func (c *Cell) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

func (c *Cell) clearTrigger() {
	select {
	case <-c.trigger:
	default:
	}
}

// WaitForDue blocks until the cell's next due time elapses, an external
// Trigger arrives, or ctx is canceled, whichever happens first. The
// pending-trigger flag is cleared on wake. Must not be called with the
// cell lock held.
func (c *Cell) WaitForDue(ctx context.Context) error {
	c.mu.Lock()
	due, ok := c.nextDueLocked(time.Now())
	c.mu.Unlock()

	var fire <-chan time.Time
	if ok {
		d := time.Until(due)
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		fire = timer.C
	}

	defer c.clearTrigger()
	select {
	case <-fire:
	case <-c.trigger:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// AwaitPopulation atomically releases the cell lock and blocks until
// another owner broadcasts a value change, then reacquires the lock.
// The caller must hold the lock and should only call this while the
// cell has no value.
func (c *Cell) AwaitPopulation() {
	for !c.populatedLocked() {
		c.populated.Wait()
	}
}

// Broadcast wakes everything blocked in AwaitPopulation. The caller must
// hold the cell lock.
func (c *Cell) Broadcast() {
	c.populated.Broadcast()
}

// Update applies the given value, refresh time and interval to the cell
// and persists the entire store snapshot. The caller must hold the cell
// lock. A zero interval leaves the current interval in place. Persistence
// failures are returned marked with ErrPersist.
func (c *Cell) Update(value any, refreshedAt time.Time, interval time.Duration) error {
	blob, err := msgpack.Marshal(value)
	if err != nil {
		return markPersist(err, c.key)
	}
	c.value = value
	c.raw = nil
	c.lastRefresh = refreshedAt
	if interval > 0 {
		c.interval = interval
	}
	return c.store.saveCell(c.key, cellState{
		Value:       blob,
		LastRefresh: refreshedAt,
		Interval:    c.interval,
	})
}

// Hydrate returns the cell's value as T. A value loaded from the snapshot
// is decoded on first access and retained. The caller must hold the cell
// lock.
func Hydrate[T any](c *Cell) (T, bool, error) {
	var zero T
	if c.value != nil {
		if typed, ok := c.value.(T); ok {
			return typed, true, nil
		}
		return zero, false, errValueType(c.key, c.value, zero)
	}
	if c.raw == nil {
		return zero, false, nil
	}
	var result T
	if err := msgpack.Unmarshal(c.raw, &result); err != nil {
		// A stale or incompatible snapshot is not fatal; treat the cell
		// as unpopulated and let the next refresh rebuild it.
		c.raw = nil
		return zero, false, nil
	}
	c.value = result
	c.raw = nil
	return result, true, nil
}

// Demand is the foreground read path: it schedules the cell with interval
// if unscheduled, triggers a refresh when the cell is empty or expired,
// and blocks until a value exists. A stale value is returned immediately
// while the refresh proceeds in the background.
func Demand[T any](c *Cell, interval time.Duration) (T, error) {
	c.Lock()
	defer c.Unlock()
	c.SetInterval(interval)
	if !c.populatedLocked() || c.expiredLocked(time.Now()) {
		c.Trigger()
	}
	for {
		if !c.populatedLocked() {
			c.AwaitPopulation()
		}
		val, ok, err := Hydrate[T](c)
		if err != nil || ok {
			return val, err
		}
		// The snapshot value could not be hydrated; force a refresh and
		// wait for a live value.
		c.Trigger()
	}
}

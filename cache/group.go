package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/signview/signview/logger"
)

// Group owns the set of refresh tasks and binds their lifecycle to the
// host process: Start on boot, Stop on shutdown, so no background work
// survives teardown.
type Group struct {
	log logger.Logger

	mu      sync.Mutex
	tasks   map[string]*Task
	running bool
	cancel  context.CancelFunc
	ctx     context.Context
	eg      *errgroup.Group
}

// NewGroup returns an empty, stopped Group.
func NewGroup(log logger.Logger) *Group {
	return &Group{
		log:   log.WithPrefix("[refresh]"),
		tasks: make(map[string]*Task),
	}
}

// AddTask registers a refresh task for cell keyed by cell.Key. A key that
// is already registered is rejected with a log message. If the group is
// currently running, the new task starts immediately.
func (g *Group) AddTask(cell *Cell, callback Callback, opts ...TaskOption) {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := cell.Key()
	if _, ok := g.tasks[key]; ok {
		g.log.Warn("task for %q already registered, ignoring", key)
		return
	}
	task := NewTask(cell, callback, g.log, opts...)
	g.tasks[key] = task
	if g.running {
		g.log.Debug("starting task for %q on running group", key)
		g.launchLocked(task)
	}
}

// Running reports whether the group has been started and not yet stopped.
func (g *Group) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Group) launchLocked(t *Task) {
	g.eg.Go(func() error {
		return t.run(g.ctx)
	})
}

// Start launches all registered tasks concurrently. Returns
// ErrAlreadyRunning if the group was already started.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return ErrAlreadyRunning
	}
	ctx, g.cancel = context.WithCancel(ctx)
	// A fatal task error cancels the derived context so every sibling
	// unblocks and Wait can return it.
	g.eg, g.ctx = errgroup.WithContext(ctx)
	g.running = true
	for _, task := range g.tasks {
		g.launchLocked(task)
	}
	g.log.Debug("started %d refresh tasks", len(g.tasks))
	return nil
}

// Stop stops all tasks concurrently and waits for them to finish. An
// in-flight refresh is allowed to complete. The returned error is the
// first fatal task error, if any (a persist failure).
func (g *Group) Stop() error {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return nil
	}
	g.running = false
	g.cancel()
	tasks := make([]*Task, 0, len(g.tasks))
	for _, task := range g.tasks {
		tasks = append(tasks, task)
	}
	eg := g.eg
	g.mu.Unlock()

	for _, task := range tasks {
		task.cell.Trigger()
	}
	err := eg.Wait()
	g.log.Debug("all refresh tasks stopped")
	return err
}

// Wait blocks until all tasks exit and returns the first fatal task
// error. It is intended for callers that want a persist failure to
// surface without waiting for shutdown.
func (g *Group) Wait() error {
	g.mu.Lock()
	eg := g.eg
	g.mu.Unlock()
	if eg == nil {
		return nil
	}
	return eg.Wait()
}

package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/signview/signview/logger"
)

// TaskState is the lifecycle state of a refresh task.
type TaskState int32

const (
	TaskIdle TaskState = iota
	TaskWaiting
	TaskRefreshing
	TaskStopped
)

func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "idle"
	case TaskWaiting:
		return "waiting"
	case TaskRefreshing:
		return "refreshing"
	}
	return "stopped"
}

// Callback performs one refresh of a cell. It is invoked with the cell
// lock already held and is responsible for any I/O, constructing or
// merging the payload, and writing it back via Cell.Update.
type Callback func(ctx context.Context, cell *Cell) error

// DefaultCooldown is the fixed delay before retrying a failed refresh.
const DefaultCooldown = 10 * time.Second

// TaskOption configures a Task.
type TaskOption func(*Task)

// WithCooldown overrides the fixed retry delay after a failed refresh.
func WithCooldown(d time.Duration) TaskOption {
	return func(t *Task) { t.cooldown = d }
}

// Task is the background refresh loop for one cell. It waits until the
// cell is due or triggered, runs the callback under the cell lock, and
// notifies waiters on success. A failed refresh is logged and retried
// after a fixed cooldown without advancing lastRefresh, so the cell
// remains due and keeps serving its last good value.
type Task struct {
	cell     *Cell
	callback Callback
	log      logger.Logger
	cooldown time.Duration

	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTask returns an unstarted Task for cell.
func NewTask(cell *Cell, callback Callback, log logger.Logger, opts ...TaskOption) *Task {
	t := &Task{
		cell:     cell,
		callback: callback,
		log:      log.With(map[string]interface{}{"key": cell.Key()}),
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Key returns the key of the cell this task refreshes.
func (t *Task) Key() string { return t.cell.Key() }

// State returns the task's current lifecycle state.
func (t *Task) State() TaskState { return TaskState(t.state.Load()) }

// Start launches the task loop in its own goroutine. No-op if already
// started.
func (t *Task) Start(parent context.Context) {
	if t.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		_ = t.run(ctx)
	}()
}

// Stop cancels the loop, triggers the cell once to unblock a pending
// wait, and joins the loop. An in-flight refresh is allowed to finish;
// the cell lock is always released before Stop returns.
func (t *Task) Stop() {
	if t.done == nil {
		t.state.Store(int32(TaskStopped))
		return
	}
	t.cancel()
	t.cell.Trigger()
	<-t.done
}

func (t *Task) run(ctx context.Context) error {
	defer t.state.Store(int32(TaskStopped))
	for {
		t.state.Store(int32(TaskWaiting))
		if err := t.cell.WaitForDue(ctx); err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		t.state.Store(int32(TaskRefreshing))
		t.cell.Lock()
		// Triggers armed before this point are satisfied by this refresh.
		t.cell.clearTrigger()
		err := t.callback(ctx, t.cell)
		if err == nil {
			t.cell.Broadcast()
			t.cell.Unlock()
			continue
		}
		t.cell.Unlock()

		if errors.Is(err, ErrPersist) {
			t.log.Error("refresh persist failure: %v", err)
			return err
		}
		t.log.Error("refresh failed, retrying in %s: %v", t.cooldown, err)
		select {
		case <-time.After(t.cooldown):
		case <-ctx.Done():
			return nil
		}
	}
}

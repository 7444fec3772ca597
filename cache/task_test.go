package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signview/signview/logger"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestTaskRefreshesOnStart(t *testing.T) {
	cell := newTestCell(t, "sample")
	var calls atomic.Int32
	task := NewTask(cell, func(ctx context.Context, c *Cell) error {
		calls.Add(1)
		return c.Update("refreshed", time.Now(), time.Hour)
	}, logger.NewTestLogger())

	task.Start(context.Background())
	defer task.Stop()

	waitFor(t, cell.Populated, "cell never populated")
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "refreshed", cell.Value())
	assert.False(t, cell.Expired())
}

func TestTaskRetriesAfterFailure(t *testing.T) {
	cell := newTestCell(t, "sample")
	log := logger.NewTestLogger()
	var calls atomic.Int32
	task := NewTask(cell, func(ctx context.Context, c *Cell) error {
		if calls.Add(1) < 3 {
			return errors.New("upstream down")
		}
		return c.Update("recovered", time.Now(), time.Hour)
	}, log, WithCooldown(5*time.Millisecond))

	task.Start(context.Background())
	defer task.Stop()

	waitFor(t, cell.Populated, "cell never recovered")
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
	assert.Equal(t, "recovered", cell.Value())

	var logged int
	for _, entry := range log.Entries() {
		if entry.Severity == "ERROR" {
			logged++
		}
	}
	assert.Equal(t, 2, logged)
}

func TestTaskTriggerForcesRefresh(t *testing.T) {
	cell := newTestCell(t, "sample")
	var calls atomic.Int32
	task := NewTask(cell, func(ctx context.Context, c *Cell) error {
		calls.Add(1)
		return c.Update("value", time.Now(), time.Hour)
	}, logger.NewTestLogger())

	task.Start(context.Background())
	defer task.Stop()
	waitFor(t, cell.Populated, "cell never populated")
	require.Equal(t, int32(1), calls.Load())

	// The cell is fresh for another hour; only the trigger wakes it.
	cell.Trigger()
	waitFor(t, func() bool { return calls.Load() == 2 }, "trigger did not force a refresh")
}

func TestTaskFailureKeepsCellDue(t *testing.T) {
	cell := newTestCell(t, "sample")
	failed := make(chan struct{})
	var once atomic.Bool
	task := NewTask(cell, func(ctx context.Context, c *Cell) error {
		if once.CompareAndSwap(false, true) {
			close(failed)
		}
		return errors.New("upstream down")
	}, logger.NewTestLogger(), WithCooldown(time.Hour))

	task.Start(context.Background())
	defer task.Stop()

	select {
	case <-failed:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never ran")
	}
	assert.True(t, cell.LastRefresh().IsZero())
	assert.True(t, cell.Expired())
	assert.False(t, cell.Populated())
}

func TestTaskPersistFailureIsFatal(t *testing.T) {
	backend := &memBackend{saveErr: errors.New("disk full")}
	store := NewStore(backend, logger.NewTestLogger())
	cell, err := store.GetOrCreate("sample")
	require.NoError(t, err)

	task := NewTask(cell, func(ctx context.Context, c *Cell) error {
		return c.Update("value", time.Now(), time.Hour)
	}, logger.NewTestLogger())

	err = task.run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersist))
	assert.Equal(t, TaskStopped, task.State())
}

func TestTaskStop(t *testing.T) {
	cell := newTestCell(t, "sample")
	task := NewTask(cell, func(ctx context.Context, c *Cell) error {
		return c.Update("value", time.Now(), time.Hour)
	}, logger.NewTestLogger())

	task.Start(context.Background())
	waitFor(t, cell.Populated, "cell never populated")
	task.Stop()
	assert.Equal(t, TaskStopped, task.State())

	// The cell lock is free after Stop.
	cell.Lock()
	cell.Unlock()
}

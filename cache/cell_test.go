package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signview/signview/logger"
)

func newTestCell(t *testing.T, key string) *Cell {
	t.Helper()
	store := NewStore(&memBackend{}, logger.NewTestLogger())
	cell, err := store.GetOrCreate(key)
	require.NoError(t, err)
	return cell
}

func TestCellExpiredBeforeFirstRefresh(t *testing.T) {
	cell := newTestCell(t, "fresh")
	assert.True(t, cell.Expired(), "a never-refreshed cell is always due")
	assert.False(t, cell.Populated())

	due, ok := cell.NextDue()
	require.True(t, ok)
	assert.False(t, due.After(time.Now()))
}

func TestCellExpiredAfterUpdate(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("value", time.Now(), time.Hour))
	cell.Unlock()
	assert.False(t, cell.Expired())

	cell.Lock()
	require.NoError(t, cell.Update("value", time.Now().Add(-2*time.Hour), 0))
	cell.Unlock()
	assert.True(t, cell.Expired())
}

func TestCellNoIntervalNeverExpires(t *testing.T) {
	cell := newTestCell(t, "unscheduled")
	cell.Lock()
	require.NoError(t, cell.Update("value", time.Now().Add(-24*time.Hour), 0))
	cell.Unlock()
	assert.False(t, cell.Expired())

	_, ok := cell.NextDue()
	assert.False(t, ok)
}

func TestSetIntervalOnlyOnce(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	cell.SetInterval(time.Minute)
	cell.SetInterval(time.Hour)
	cell.Unlock()
	assert.Equal(t, time.Minute, cell.Interval())
}

func TestUpdateZeroIntervalKeepsExisting(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("a", time.Now(), time.Minute))
	require.NoError(t, cell.Update("b", time.Now(), 0))
	cell.Unlock()
	assert.Equal(t, time.Minute, cell.Interval())
	assert.Equal(t, "b", cell.Value())
}

func TestHydrateTypeMismatch(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("a string", time.Now(), time.Hour))
	_, ok, err := Hydrate[int](cell)
	cell.Unlock()
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestHydrateBadSnapshotValue(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	cell.raw = []byte{0xc1} // never a valid msgpack payload
	val, ok, err := Hydrate[*samplePayload](cell)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
	// The bad blob is discarded so the cell reads as unpopulated.
	assert.False(t, cell.populatedLocked())
	cell.Unlock()
}

func TestWaitForDueTrigger(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("value", time.Now(), time.Hour))
	cell.Unlock()

	done := make(chan error, 1)
	go func() { done <- cell.WaitForDue(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitForDue returned before the trigger")
	case <-time.After(20 * time.Millisecond):
	}

	cell.Trigger()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDue did not wake on trigger")
	}
}

func TestWaitForDueContextCancel(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("value", time.Now(), time.Hour))
	cell.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cell.WaitForDue(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("WaitForDue did not wake on cancel")
	}
}

func TestWaitForDueTimerFires(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("value", time.Now(), 10*time.Millisecond))
	cell.Unlock()

	start := time.Now()
	require.NoError(t, cell.WaitForDue(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestTriggerCoalesces(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("value", time.Now(), time.Hour))
	cell.Unlock()

	cell.Trigger()
	cell.Trigger()
	cell.Trigger()

	require.NoError(t, cell.WaitForDue(context.Background()))

	// The extra triggers collapsed into the first wake.
	done := make(chan error, 1)
	go func() { done <- cell.WaitForDue(context.Background()) }()
	select {
	case <-done:
		t.Fatal("coalesced trigger caused a second wake")
	case <-time.After(20 * time.Millisecond):
	}
	cell.Trigger()
	<-done
}

func TestDemandReturnsStaleValue(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("stale", time.Now().Add(-2*time.Hour), time.Hour))
	cell.Unlock()

	val, err := Demand[string](cell, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "stale", val)

	// The expired read armed the trigger for the background task.
	select {
	case <-cell.trigger:
	default:
		t.Fatal("expected a pending trigger after an expired read")
	}
}

func TestDemandFreshValueDoesNotTrigger(t *testing.T) {
	cell := newTestCell(t, "sample")
	cell.Lock()
	require.NoError(t, cell.Update("fresh", time.Now(), time.Hour))
	cell.Unlock()

	val, err := Demand[string](cell, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "fresh", val)

	select {
	case <-cell.trigger:
		t.Fatal("a fresh read must not arm the trigger")
	default:
	}
}

func TestDemandBlocksUntilPopulated(t *testing.T) {
	cell := newTestCell(t, "sample")

	done := make(chan string, 1)
	go func() {
		val, _ := Demand[string](cell, time.Hour)
		done <- val
	}()

	select {
	case <-done:
		t.Fatal("Demand returned before the cell was populated")
	case <-time.After(20 * time.Millisecond):
	}

	cell.Lock()
	require.NoError(t, cell.Update("ready", time.Now(), 0))
	cell.Broadcast()
	cell.Unlock()

	select {
	case val := <-done:
		assert.Equal(t, "ready", val)
	case <-time.After(time.Second):
		t.Fatal("Demand did not wake on population")
	}
}

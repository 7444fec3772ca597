package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signview/signview/logger"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	mu      sync.Mutex
	data    []byte
	saveErr error
	saves   int
}

func (b *memBackend) Load() ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, false, nil
	}
	return b.data, true, nil
}

func (b *memBackend) Save(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.data = append([]byte(nil), data...)
	b.saves++
	return nil
}

func (b *memBackend) Close() error { return nil }

type samplePayload struct {
	Name  string `msgpack:"name"`
	Count int    `msgpack:"count"`
}

func TestGetOrCreateIdempotent(t *testing.T) {
	store := NewStore(&memBackend{}, logger.NewTestLogger())
	a, err := store.GetOrCreate("alpha")
	require.NoError(t, err)
	b, err := store.GetOrCreate("alpha")
	require.NoError(t, err)
	assert.Same(t, a, b)
	c, err := store.GetOrCreate("beta")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
}

func TestSnapshotRoundTrip(t *testing.T) {
	backend := &memBackend{}
	store := NewStore(backend, logger.NewTestLogger())
	cell, err := store.GetOrCreate("sample")
	require.NoError(t, err)

	refreshedAt := time.Now().Truncate(time.Second)
	cell.Lock()
	err = cell.Update(&samplePayload{Name: "hello", Count: 3}, refreshedAt, time.Hour)
	cell.Unlock()
	require.NoError(t, err)
	require.Equal(t, 1, backend.saves)

	reloaded := NewStore(backend, logger.NewTestLogger())
	cell2, err := reloaded.GetOrCreate("sample")
	require.NoError(t, err)
	assert.True(t, cell2.Populated())
	assert.False(t, cell2.Expired())
	assert.Equal(t, time.Hour, cell2.Interval())
	assert.True(t, cell2.LastRefresh().Equal(refreshedAt))

	cell2.Lock()
	val, ok, err := Hydrate[*samplePayload](cell2)
	cell2.Unlock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", val.Name)
	assert.Equal(t, 3, val.Count)
}

func TestUnreadableSnapshotStartsEmpty(t *testing.T) {
	backend := &memBackend{data: []byte("not msgpack at all")}
	log := logger.NewTestLogger()
	store := NewStore(backend, log)

	cell, err := store.GetOrCreate("sample")
	require.NoError(t, err)
	assert.False(t, cell.Populated())

	var warned bool
	for _, entry := range log.Entries() {
		if entry.Severity == "WARNING" {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning about the unreadable snapshot")
}

func TestUpdatePersistFailure(t *testing.T) {
	backend := &memBackend{saveErr: errors.New("disk full")}
	store := NewStore(backend, logger.NewTestLogger())
	cell, err := store.GetOrCreate("sample")
	require.NoError(t, err)

	cell.Lock()
	err = cell.Update(&samplePayload{Name: "x"}, time.Now(), time.Hour)
	cell.Unlock()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersist))

	// The in-memory value is still served even though persistence failed.
	assert.True(t, cell.Populated())
}

func TestBackendRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		open func(t *testing.T) Backend
	}{
		{"file", func(t *testing.T) Backend {
			b, err := NewFileBackend(t.TempDir() + "/snapshot.bin")
			require.NoError(t, err)
			return b
		}},
		{"bolt", func(t *testing.T) Backend {
			b, err := NewBoltBackend(t.TempDir() + "/snapshot.db")
			require.NoError(t, err)
			return b
		}},
		{"sqlite", func(t *testing.T) Backend {
			b, err := NewSQLiteBackend(t.TempDir() + "/snapshot.sqlite")
			require.NoError(t, err)
			return b
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := tc.open(t)
			defer backend.Close()

			_, found, err := backend.Load()
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, backend.Save([]byte("first")))
			data, found, err := backend.Load()
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("first"), data)

			require.NoError(t, backend.Save([]byte("second")))
			data, found, err = backend.Load()
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, []byte("second"), data)
		})
	}
}

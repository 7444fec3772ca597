package cache

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const snapshotVersion = 1

// cellState is the persisted public state of one cell. Value holds the
// cell's payload as an opaque msgpack blob so the store never needs to
// know the concrete payload types.
type cellState struct {
	Value       []byte        `msgpack:"value"`
	LastRefresh time.Time     `msgpack:"last_refresh"`
	Interval    time.Duration `msgpack:"interval"`
}

// snapshot is the single durable blob covering the whole store.
type snapshot struct {
	Version int                  `msgpack:"version"`
	Cells   map[string]cellState `msgpack:"cells"`
}

func encodeSnapshot(cells map[string]cellState) ([]byte, error) {
	return msgpack.Marshal(snapshot{Version: snapshotVersion, Cells: cells})
}

func decodeSnapshot(data []byte) (map[string]cellState, error) {
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	if snap.Cells == nil {
		snap.Cells = make(map[string]cellState)
	}
	return snap.Cells, nil
}

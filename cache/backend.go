package cache

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Backend reads and writes the store's snapshot as one opaque blob at a
// fixed location. Save must be atomic: a reader never observes a partial
// write.
type Backend interface {
	// Load returns the snapshot blob, found=false if none exists yet.
	Load() ([]byte, bool, error)
	// Save atomically replaces the snapshot blob.
	Save(data []byte) error
	// Close releases any resources held by the backend.
	Close() error
}

type fileBackend struct {
	path string
}

// NewFileBackend returns a Backend storing the snapshot in a single file,
// replaced atomically via a temp-file rename.
func NewFileBackend(path string) (Backend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "creating snapshot directory")
	}
	return &fileBackend{path: path}, nil
}

func (b *fileBackend) Load() ([]byte, bool, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (b *fileBackend) Save(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}

func (b *fileBackend) Close() error { return nil }

package cache

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	boltBucket = []byte("snapshot")
	boltKey    = []byte("state")
)

type boltBackend struct {
	db *bolt.DB
}

// NewBoltBackend returns a Backend storing the snapshot under a single
// key in a bbolt database. Bolt transactions give the atomic-replace
// guarantee.
func NewBoltBackend(path string) (Backend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltBackend{db: db}, nil
}

func (b *boltBackend) Load() ([]byte, bool, error) {
	var out []byte
	if err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(boltBucket).Get(boltKey); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (b *boltBackend) Save(data []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(boltKey, data)
	})
}

func (b *boltBackend) Close() error { return b.db.Close() }

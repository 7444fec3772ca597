package cache

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrPersist marks failures writing the store snapshot to durable
	// storage. A store that cannot persist cannot honor its restart
	// recovery contract, so callers should treat this as fatal.
	ErrPersist = errors.New("cache: persist failed")

	// ErrAlreadyRunning is returned by Group.Start when the group has
	// already been started.
	ErrAlreadyRunning = errors.New("cache: refresh group already running")
)

func markPersist(err error, key string) error {
	return errors.Mark(errors.Wrapf(err, "persisting %q", key), ErrPersist)
}

func errValueType(key string, have, want any) error {
	return errors.Newf("cache: cell %q holds %T, not %s", key, have, fmt.Sprintf("%T", want))
}

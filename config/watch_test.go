package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signview/signview/logger"
)

func TestWatchReloadsOnRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":1\"\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, logger.NewTestLogger(), func(cfg *Config) {
			select {
			case changed <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to arm before rewriting.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("listen: \":2\"\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, ":2", cfg.Listen)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatchIgnoresInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":1\"\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.NewTestLogger()
	changed := make(chan *Config, 1)
	go Watch(ctx, path, log, func(cfg *Config) { changed <- cfg })

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("timezone: Mars/Olympus\n"), 0o644))

	select {
	case <-changed:
		t.Fatal("invalid config must not reach onChange")
	case <-time.After(300 * time.Millisecond):
	}

	var warned bool
	for _, entry := range log.Entries() {
		if entry.Severity == "WARNING" {
			warned = true
		}
	}
	assert.True(t, warned)
}

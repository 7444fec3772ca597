package config

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/signview/signview/logger"
)

// Watch re-loads the config whenever the file at path is rewritten and
// hands the result to onChange. Editors and config-management tools
// usually replace the file, so the watch is on the parent directory.
// Watch blocks until ctx is canceled.
func Watch(ctx context.Context, path string, log logger.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating config watcher")
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watching %q", dir)
	}
	log = log.WithPrefix("[config]")
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, err := Load(path)
			if err != nil {
				log.Warn("ignoring config change: %v", err)
				continue
			}
			log.Info("config reloaded")
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher: %v", err)
		}
	}
}

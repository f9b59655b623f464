package history

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch signals on notify whenever the ledger file changes, until ctx is
// cancelled. The parent directory is watched so rewrites that replace the
// file are still seen. Sends are best-effort and coalesce when the consumer
// lags; consumers re-read the ledger rather than interpreting events.
func Watch(ctx context.Context, path string, notify chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				select {
				case notify <- struct{}{}:
				default:
				}
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; keep watching.
		}
	}
}

package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce lets a burst of events from one rewrite settle
const watchDebounce = 100 * time.Millisecond

// Watch reloads store whenever another process rewrites the log at path and
// calls onReload after each change. Writes go through a temp file and a
// rename, so the directory is watched rather than the file itself.
// It returns once the watcher is running; the watcher stops with ctx.
func Watch(ctx context.Context, path string, store *Store, onReload func(), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch history directory: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer watcher.Close()

		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					debounce = time.After(watchDebounce)
				}

			case <-debounce:
				debounce = nil
				changed, err := store.Reload()
				if err != nil {
					logger.Warn("history reload failed", "path", path, "error", err)
					continue
				}
				if changed && onReload != nil {
					onReload()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("history watcher error", "error", err)
			}
		}
	}()
	return nil
}

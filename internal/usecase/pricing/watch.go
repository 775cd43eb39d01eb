package pricing

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// debounceInterval coalesces rapid editor save events into one reload.
const debounceInterval = 100 * time.Millisecond

// Watch reloads the price table whenever the file changes, until ctx is
// done. The parent directory is watched so rename-and-replace saves are
// caught. A failed reload keeps the current table.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			s.logger.Warn("Failed to close price table watcher", zap.Error(closeErr))
		}
	}()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.logger.Info("Watching price table", zap.String("path", path))

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceInterval, func() {
				s.reload(path)
			})

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Price table watcher error", zap.Error(watchErr))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Store) reload(path string) {
	if err := s.LoadFile(path); err != nil {
		s.logger.Warn("Price table reload failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Price table reloaded", zap.String("path", path))
}

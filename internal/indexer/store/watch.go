package store

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/segment"
)

// Watch reloads the store whenever a build commits into its directory. Bursts
// of manifest events are debounced: the reload runs once delay has passed
// without a further event. Watch blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, delay time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating index watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not CURRENT itself: commits replace the file by
	// rename, which would orphan a watch on the old inode.
	if err := watcher.Add(s.path); err != nil {
		return fmt.Errorf("watching %s: %w", s.path, err)
	}
	s.logger.Info("watching index for commits", "reload_delay", delay)

	timer := time.NewTimer(delay)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != segment.ManifestName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(delay)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("index watcher error", "error", err)
		case <-timer.C:
			if _, err := s.Reload(ctx); err != nil {
				s.logger.Warn("reload after commit failed, keeping current generation", "error", err)
			}
		}
	}
}

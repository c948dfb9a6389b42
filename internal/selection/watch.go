package selection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the selection whenever the selection file changes, until
// the context is cancelled. The parent directory is watched because the
// picker replaces the file instead of writing it in place.
func (s *Selection) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create selection watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	dir := filepath.Dir(target)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

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
			if err := s.LoadFile(target); err != nil {
				// a rename briefly leaves no file behind
				if errors.Is(err, os.ErrNotExist) {
					continue
				}
				log.Printf("Failed to reload selection: %v", err)
				continue
			}
			log.Printf("Selection reloaded: %s", s)

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// watcher errors are non-fatal, keep watching
		}
	}
}

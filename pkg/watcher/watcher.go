package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/changelens/impact-engine/pkg/logging"
)

// ChangeEvent represents a batch of changed fact-record files
type ChangeEvent struct {
	Keys      []Key
	Timestamp time.Time
}

// FileWatcher watches a facts directory for changed fact-record files
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	events   chan ChangeEvent
	done     chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a new file system watcher for a facts directory
func NewFileWatcher(dir string) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		dir:     dir,
		events:  make(chan ChangeEvent, 100),
		done:    make(chan struct{}),
	}

	return fw, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) error {
	info, err := os.Stat(fw.dir)
	if err != nil {
		return fmt.Errorf("facts directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("facts path is not a directory: %s", fw.dir)
	}

	// Non-recursive: fact files live flat in the facts directory
	if err := fw.watcher.Add(fw.dir); err != nil {
		return fmt.Errorf("failed to watch facts directory: %w", err)
	}

	logging.Info("started watching facts directory", "path", fw.dir)

	// Process events
	go fw.processEvents(ctx)

	return nil
}

// processEvents batches file system events so one save does not emit one
// event per write syscall. It is the sole owner of the events channel:
// every exit path closes it so consumers unblock.
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer func() {
		fw.watcher.Close()
		close(fw.events)
	}()

	pending := make(map[Key]bool)

	flushTimer := time.NewTimer(100 * time.Millisecond)
	flushTimer.Stop()

	flush := func() {
		if len(pending) == 0 {
			return
		}
		keys := make([]Key, 0, len(pending))
		for key := range pending {
			keys = append(keys, key)
		}
		sortKeys(keys)
		fw.events <- ChangeEvent{
			Keys:      keys,
			Timestamp: time.Now(),
		}
		pending = make(map[Key]bool)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			// Only creates and writes trigger a rebuild
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}

			key, ok := ParseFactsFileName(filepath.Base(event.Name))
			if !ok {
				continue
			}
			key.Path = event.Name
			pending[key] = true
			flushTimer.Reset(100 * time.Millisecond)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher. Safe to call more than once and alongside
// context cancellation; closing the watcher is idempotent.
func (fw *FileWatcher) Stop() error {
	fw.stopOnce.Do(func() { close(fw.done) })
	return fw.watcher.Close()
}

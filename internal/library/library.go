// ABOUTME: Media library backed by a single flat directory
// ABOUTME: Keeps a snapshot of asset names current with fsnotify events
package library

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a name is not in the current listing
var ErrNotFound = errors.New("asset not found")

// Library answers presence queries against a directory listing.
// The listing is shared by every session and only read after a rescan.
type Library struct {
	dir     string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	closed  chan struct{}
	once    sync.Once

	mu      sync.RWMutex
	entries map[string]struct{}
}

// Open scans dir and starts watching it for changes
func Open(dir string, logger *zap.Logger) (*Library, error) {
	if logger == nil {
		logger = zap.L()
	}

	l := &Library{
		dir:    dir,
		logger: logger.Named("library"),
		closed: make(chan struct{}),
	}

	if err := l.Rescan(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch media directory %s: %w", dir, err)
	}
	l.watcher = watcher

	go l.watchLoop()

	l.logger.Info("media library opened", zap.String("dir", dir), zap.Int("assets", l.Len()))
	return l, nil
}

// Rescan replaces the snapshot with the directory's current regular files
func (l *Library) Rescan() error {
	dirEntries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("failed to read media directory: %w", err)
	}

	entries := make(map[string]struct{}, len(dirEntries))
	for _, entry := range dirEntries {
		if entry.Type().IsRegular() {
			entries[entry.Name()] = struct{}{}
			continue
		}
		if entry.Type()&os.ModeSymlink != 0 {
			if info, err := os.Stat(filepath.Join(l.dir, entry.Name())); err == nil && info.Mode().IsRegular() {
				entries[entry.Name()] = struct{}{}
			}
		}
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	return nil
}

// Contains reports whether name is an exact match in the listing
func (l *Library) Contains(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[name]
	return ok
}

// Open opens a listed asset for reading
func (l *Library) Open(name string) (io.ReadCloser, error) {
	if !l.Contains(name) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	f, err := os.Open(filepath.Join(l.dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to open asset: %w", err)
	}
	return f, nil
}

// List returns the sorted asset names
func (l *Library) List() []string {
	l.mu.RLock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	l.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Len returns the number of listed assets
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Dir returns the watched directory
func (l *Library) Dir() string {
	return l.dir
}

func (l *Library) watchLoop() {
	for {
		select {
		case <-l.closed:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := l.Rescan(); err != nil {
				l.logger.Warn("rescan failed", zap.Error(err))
				continue
			}
			l.logger.Debug("media library updated",
				zap.String("event", event.Op.String()),
				zap.String("file", filepath.Base(event.Name)),
				zap.Int("assets", l.Len()))
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.handleWatchError(err)
		}
	}
}

// handleWatchError rescans after any watcher error, since events may have
// been dropped (fsnotify.ErrEventOverflow) and the listing could be stale.
func (l *Library) handleWatchError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		l.logger.Warn("watcher dropped events, rescanning", zap.Error(err))
	} else {
		l.logger.Warn("watcher error, rescanning", zap.Error(err))
	}
	if err := l.Rescan(); err != nil {
		l.logger.Warn("rescan failed", zap.Error(err))
	}
}

// Close stops watching the directory
func (l *Library) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		err = l.watcher.Close()
	})
	return err
}

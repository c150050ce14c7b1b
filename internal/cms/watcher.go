package cms

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultWatchDebounce = 500 * time.Millisecond

// Watcher re-seeds files under a directory whenever they are written. Deleting a file
// leaves its record in place.
type Watcher struct {
	seeder   *Seeder
	dir      string
	debounce time.Duration
	logger   *zap.Logger

	// applied is notified after every seed attempt; tests use it to synchronise.
	applied func(path string, err error)
}

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithAppliedHook registers fn to run after each seed attempt triggered by a change.
func WithAppliedHook(fn func(path string, err error)) WatcherOption {
	return func(w *Watcher) { w.applied = fn }
}

func NewWatcher(seeder *Seeder, dir string, opts ...WatcherOption) (*Watcher, error) {
	if seeder == nil {
		return nil, errors.New("cms watcher: seeder is required")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("cms watcher: directory is required")
	}
	w := &Watcher{
		seeder:   seeder,
		dir:      dir,
		debounce: defaultWatchDebounce,
		logger:   seeder.logger.With(zap.String("dir", dir)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Run watches until ctx is cancelled. fsnotify is not recursive, so every directory below
// the root is added, including ones created while running.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cms watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.dir); err != nil {
		return err
	}
	w.logger.Info("watching seed directory")

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, timer := range pending {
			if timer.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if timer, ok := pending[path]; ok && timer.Stop() {
			wg.Done()
		}
		wg.Add(1)
		pending[path] = time.AfterFunc(w.debounce, func() {
			defer wg.Done()
			mu.Lock()
			delete(pending, path)
			mu.Unlock()
			w.apply(ctx, path)
		})
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("seed watcher stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(watcher, event, schedule)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("seed watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(watcher *fsnotify.Watcher, event fsnotify.Event, schedule func(string)) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		// Renamed away or removed before we looked.
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(watcher, event.Name); err != nil {
				w.logger.Warn("watch new directory failed", zap.String("path", event.Name), zap.Error(err))
			}
		}
		return
	}
	if Supported(event.Name) {
		schedule(event.Name)
	}
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("cms watcher: watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) apply(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	outcome, err := w.seeder.SeedFile(ctx, path)
	if err == nil {
		w.logger.Info("seed file reloaded", zap.String("path", path), zap.String("outcome", outcome))
	}
	if w.applied != nil {
		w.applied(path, err)
	}
}

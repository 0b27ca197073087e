package crops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce absorbs the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

type watchState struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	debounce time.Duration
	pending  time.Time
	changes  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// Start watches the registry file and reloads it after it settles. It is
// non-blocking; the watch runs until ctx is cancelled or Stop is called.
// The parent directory is watched so atomic-rename saves are seen.
func (r *Registry) Start(ctx context.Context, debounce time.Duration) error {
	r.mu.Lock()
	if r.w != nil && r.w.running {
		r.mu.Unlock()
		return nil
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.mu.Unlock()
		return fmt.Errorf("creating registry directory %s: %w", dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		r.mu.Unlock()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	w := &watchState{
		watcher:  watcher,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		running:  true,
	}
	r.w = w
	r.mu.Unlock()

	r.logger.Debug("watching crop registry", "path", r.path)
	go r.run(ctx, w)
	return nil
}

// Stop ends the watch and waits for the watch goroutine to exit.
func (r *Registry) Stop() {
	r.mu.Lock()
	w := r.w
	if w == nil || !w.running {
		r.mu.Unlock()
		return
	}
	w.running = false
	r.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		r.logger.Warn("closing crop watcher", "error", err)
	}
}

// Changes signals after each successful reload triggered by the watcher.
// It returns nil before Start.
func (r *Registry) Changes() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.w == nil {
		return nil
	}
	return r.w.changes
}

func (r *Registry) run(ctx context.Context, w *watchState) {
	defer close(w.doneCh)

	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	target := filepath.Clean(r.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("crop watcher error", "error", err)

		case <-tick.C:
			w.mu.Lock()
			settled := !w.pending.IsZero() && time.Since(w.pending) >= w.debounce
			if settled {
				w.pending = time.Time{}
			}
			w.mu.Unlock()
			if settled {
				r.reloadFromWatch(w)
			}
		}
	}
}

func (r *Registry) reloadFromWatch(w *watchState) {
	if err := r.Reload(); err != nil {
		r.logger.Warn("crop registry reload failed, keeping previous list", "error", err)
		return
	}
	r.logger.Info("crop registry reloaded", "crops", r.Stats().Total)
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

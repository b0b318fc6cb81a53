package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce collapses bursts of writes from editors into one reload.
const DefaultDebounce = 250 * time.Millisecond

// ErrWatcherRunning is returned by Start on a watcher that is already running.
var ErrWatcherRunning = errors.New("config watcher already running")

// Watcher reloads a configuration file when it changes on disk and hands the
// validated result to a callback. Invalid files are logged and ignored.
type Watcher struct {
	logger   *zap.Logger
	path     string
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	done    chan struct{}
	onLoad  func(*FileConfig)
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for path. Nothing is watched until Start.
func NewWatcher(path string, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		logger:   zap.NewNop(),
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("config-watcher")
	return w
}

// Start begins watching. onLoad runs on a timer goroutine after each debounced
// change that produced a valid config.
func (w *Watcher) Start(onLoad func(*FileConfig)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher != nil {
		return ErrWatcherRunning
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Editors often replace the file instead of writing it in place, which
	// drops a watch on the file itself. Watching the directory survives that.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.watcher = fw
	w.onLoad = onLoad
	w.done = make(chan struct{})
	go w.loop(fw, w.done)

	w.logger.Info("watching configuration", zap.String("path", w.path))
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	fw, done := w.watcher, w.done
	w.watcher = nil
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	if fw == nil {
		return
	}
	_ = fw.Close()
	<-done
	w.logger.Info("configuration watcher stopped")
}

func (w *Watcher) loop(fw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.logger.Debug("configuration changed",
					zap.String("path", event.Name),
					zap.String("op", event.Op.String()),
				)
				w.scheduleReload()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watcher == nil {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("ignoring configuration change", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	onLoad, running := w.onLoad, w.watcher != nil
	w.mu.Unlock()

	if !running || onLoad == nil {
		return
	}

	w.logger.Info("configuration reloaded", zap.String("path", w.path))
	onLoad(cfg)
}

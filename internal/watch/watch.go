// Package watch triggers a callback when webconf files below a root change.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/tileping/internal/webconf"
)

const DefaultDebounce = 2 * time.Second

// Watcher watches every directory below Root. fsnotify is not recursive, so
// new directories are added as they appear.
type Watcher struct {
	root     string
	logger   *zap.Logger
	onChange func()
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
}

func New(logger *zap.Logger, root string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     root,
		logger:   logger,
		onChange: onChange,
		debounce: debounce,
		watcher:  fw,
	}, nil
}

// Start registers the tree and begins watching in the background.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.logger.Info("webconf_watch_started", zap.String("root", w.root))
	go w.watchLoop(ctx)
	return nil
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) addTree(root string) error {
	var errs error
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = multierr.Append(errs, err)
			return nil
		}
		if d.IsDir() {
			errs = multierr.Append(errs, w.watcher.Add(path))
		}
		return nil
	})
	return multierr.Append(walkErr, errs)
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("webconf_watch_error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("webconf_watch_add_failed", zap.String("path", event.Name), zap.Error(err))
			}
			// files copied in with the directory may not produce events of their own
			w.schedule(event.Name)
			return
		}
	}
	if !strings.EqualFold(filepath.Ext(event.Name), webconf.Ext) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.schedule(event.Name)
	}
}

// schedule coalesces bursts of events into one callback.
func (w *Watcher) schedule(path string) {
	w.logger.Debug("webconf_changed", zap.String("path", path))
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Info("webconf_reload", zap.String("root", w.root))
		if w.onChange != nil {
			w.onChange()
		}
	})
}

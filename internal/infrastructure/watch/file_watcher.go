// Package watch re-runs a handler whenever one file on disk changes.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"stmap/internal/bootstrap/logging"
	"stmap/internal/errs"
)

// Handler is called with the watched path after a burst of changes settles.
type Handler func(ctx context.Context, path string) error

// FileWatcher watches the parent directory rather than the file itself, so editors
// that save by writing a temp file and renaming it are still seen.
type FileWatcher struct {
	path     string
	debounce time.Duration
	handle   Handler
	ready    chan struct{}
}

func NewFileWatcher(path string, debounce time.Duration, handle Handler) (*FileWatcher, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("watch path is required")
	}
	if handle == nil {
		return nil, errors.New("watch handler is required")
	}
	if debounce < 0 {
		return nil, errors.New("watch debounce must not be negative")
	}

	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, errs.Wrapf(err, "resolve watch path %q", trimmed)
	}

	return &FileWatcher{
		path:     abs,
		debounce: debounce,
		handle:   handle,
		ready:    make(chan struct{}),
	}, nil
}

func (w *FileWatcher) Path() string { return w.path }

// Ready is closed once the directory watch is registered.
func (w *FileWatcher) Ready() <-chan struct{} { return w.ready }

// Run blocks until ctx is cancelled. Handler errors are logged and do not stop the loop.
func (w *FileWatcher) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(logging.WithComponent(ctx, "infrastructure.watch"), slog.String("path", w.path))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fsnotify watcher")
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return errs.Wrapf(err, "watch directory %q", dir)
	}
	close(w.ready)
	logging.Info(logCtx, "watching file", slog.Duration("debounce", w.debounce))

	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			logging.Info(logCtx, "file watch stopped")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logging.Debug(logCtx, "file changed", slog.String("op", event.Op.String()))
			fire = time.After(w.debounce)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "file watch error", slog.Any("err", errs.Loggable(watchErr)))
		case <-fire:
			fire = nil
			if err := w.handle(ctx, w.path); err != nil {
				logging.Error(logCtx, "file change handler failed", slog.Any("err", errs.Loggable(err)))
			}
		}
	}
}

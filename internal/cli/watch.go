package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// fileWatcher calls onChange after a file is written, created or replaced.
// It watches the parent directory so editors that save by renaming a
// temporary file over the original are still noticed.
type fileWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func()
	debounce time.Duration
	logger   *slog.Logger
}

func newFileWatcher(path string, onChange func()) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}

	return &fileWatcher{
		watcher:  watcher,
		path:     abs,
		onChange: onChange,
		debounce: defaultDebounce,
	}, nil
}

// Run blocks until ctx is cancelled or the watcher is closed. A pending
// change is dropped on return, and a change callback already running is
// waited for.
func (w *fileWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		debounce *time.Timer
		inflight sync.WaitGroup
	)
	cancelPending := func() {
		if debounce != nil && debounce.Stop() {
			inflight.Done()
		}
	}
	defer func() {
		cancelPending()
		inflight.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.log(ctx, slog.LevelDebug, "policy file changed", "op", event.Op.String())

			cancelPending()
			inflight.Add(1)
			debounce = time.AfterFunc(w.debounce, func() {
				defer inflight.Done()
				w.onChange()
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log(ctx, slog.LevelWarn, "file watcher error", "error", err)
		}
	}
}

func (w *fileWatcher) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if w.logger == nil {
		return
	}
	w.logger.Log(ctx, level, msg, append([]any{"path", w.path}, args...)...)
}

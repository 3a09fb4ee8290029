package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/specialistvlad/dataflowgo/internal/ctxlog"
	"github.com/specialistvlad/dataflowgo/internal/fsutil"
	"github.com/specialistvlad/dataflowgo/internal/hcl"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
	"github.com/specialistvlad/dataflowgo/internal/scheduler"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher re-applies network file parameters whenever the files change and
// runs the modules that became dirty.
type Watcher struct {
	app      *App
	watcher  *fsnotify.Watcher
	debounce time.Duration
	// reloaded is called after every reload; tests use it to synchronize.
	reloaded func(changed []moduleid.ID, err error)
}

// NewWatcher watches the app's network path. Directories are watched with
// every subdirectory.
func (a *App) NewWatcher() (*Watcher, error) {
	if a.config.NetworkPath == "" {
		return nil, ErrNoNetwork
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{app: a, watcher: fw, debounce: defaultDebounce}
	if err := w.add(a.config.NetworkPath); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) add(root string) error {
	dirs, err := fsutil.WatchDirs(root)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return nil
}

func (w *Watcher) relevant(name string) bool {
	if !strings.HasSuffix(name, hcl.FileExt) {
		return false
	}
	root := filepath.Clean(w.app.config.NetworkPath)
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return filepath.Clean(name) == root
	}
	return true
}

// Run processes file events until ctx ends. Events arriving within the
// debounce window are handled as one reload.
func (w *Watcher) Run(ctx context.Context) error {
	ctx = w.app.withLogger(ctx)
	logger := ctxlog.FromContext(ctx).With("component", "watcher")
	defer w.watcher.Close()
	logger.Info("Watching network files.", "path", w.app.config.NetworkPath)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event.Name) || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(event.Name)
				}
			}
			logger.Debug("Network file changed.", "file", event.Name, "op", event.Op.String())
			if !pending {
				pending = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", "error", err)

		case <-timer.C:
			pending = false
			changed, err := w.reload(ctx)
			if err != nil {
				logger.Error("Network reload failed.", "error", err)
			}
			if w.reloaded != nil {
				w.reloaded(changed, err)
			}
		}
	}
}

func (w *Watcher) reload(ctx context.Context) ([]moduleid.ID, error) {
	changed, err := w.app.Reload(ctx)
	if err != nil || len(changed) == 0 {
		return changed, err
	}
	if _, err := w.app.session.Execute(ctx, scheduler.Request{Dirty: changed}); err != nil {
		return changed, fmt.Errorf("failed to start run: %w", err)
	}
	return changed, nil
}

package schemaconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 100 * time.Millisecond

// ReloadFunc applies a configuration change. The resolver's Reload is the usual
// one, so a change also clears the cache and preloads again.
type ReloadFunc func(ctx context.Context) error

// Watcher calls a ReloadFunc when files in a configuration directory change.
type Watcher struct {
	dir    string
	reload ReloadFunc
	logger *zap.Logger
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the configuration directory dir.
func NewWatcher(dir string, reload ReloadFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:    dir,
		reload: reload,
		logger: logger.Named("schema-config-watcher"),
		stop:   make(chan struct{}),
	}
}

// Start begins watching. Directories are watched rather than files so editors
// that save by rename are picked up. The tables directory is added when it
// exists at start or as soon as it is created.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return err
	}
	tablesDir := filepath.Join(w.dir, TablesDir)
	tablesWatched := false
	if isDir(tablesDir) {
		if err := fw.Add(tablesDir); err != nil {
			fw.Close()
			return err
		}
		tablesWatched = true
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fw.Close()

		w.logger.Info("Watching schema configuration",
			zap.String("dir", w.dir),
			zap.Bool("tables_dir", tablesWatched))

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		schedule := func() {
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() { w.apply(ctx) })
		}

		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) == tablesDir {
					switch {
					case event.Op&fsnotify.Create != 0 && isDir(tablesDir):
						if err := fw.Add(tablesDir); err != nil {
							w.logger.Warn("Failed to watch tables directory", zap.String("dir", tablesDir), zap.Error(err))
						} else {
							w.logger.Info("Watching new tables directory", zap.String("dir", tablesDir))
						}
						// Files written before the watch was added are picked up by this reload.
						schedule()
					case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
						schedule()
					}
					continue
				}
				if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				schedule()

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("Schema configuration watcher error", zap.Error(err))

			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Stop stops the watcher and waits for it to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *Watcher) apply(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Info("Schema configuration change detected, reloading")
	if err := w.reload(ctx); err != nil {
		w.logger.Warn("Schema configuration reload from watcher failed", zap.Error(err))
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

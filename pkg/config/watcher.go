package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/idsync/pkg/observability"
)

// reloadDelay coalesces the burst of events editors emit for one save
const reloadDelay = 100 * time.Millisecond

// Watcher re-reads the YAML config file when it changes and hands the
// result to a callback. Only settings that are safe to change at runtime
// should be applied by the callback; the rest take effect on restart.
type Watcher struct {
	path     string
	onChange func(*Config)
	logger   *observability.Logger
	watcher  *fsnotify.Watcher
}

// NewWatcher watches the directory holding path so that files replaced by
// rename are still seen.
func NewWatcher(path string, onChange func(*Config), logger *observability.Logger) (*Watcher, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	path = filepath.Clean(path)
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return &Watcher{
		path:     path,
		onChange: onChange,
		logger:   logger.WithField("config_file", path),
		watcher:  fw,
	}, nil
}

// Run processes file events until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	defer observability.RecoverPanic(w.logger, "config reload")

	cfg := Default()
	if err := cfg.loadFile(w.path); err != nil {
		w.logger.WithError(err).Warn("failed to reload config file")
		return
	}
	cfg.loadEnv()
	if err := cfg.Validate(); err != nil {
		w.logger.WithError(err).Warn("ignoring invalid config file change")
		return
	}

	w.logger.Info("config file reloaded")
	w.onChange(cfg)
}

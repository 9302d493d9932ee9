package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDelay is how long Watch waits after the last change of the file
// before reloading it. Editors often write a file in several steps.
var WatchDelay = 100 * time.Millisecond

// Watch reloads the config each time its file changes and calls fn with
// the new config. Reload errors are logged and the previous config stays
// in effect. Watch blocks until ctx is done.
func (l Loader) Watch(ctx context.Context, log *slog.Logger, fn func(*Config)) error {
	path := l.File()
	if path == "" {
		return errors.New("config: no config file to watch")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: resolving %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: creating watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	// The directory is watched so that files replaced by rename are seen.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watching %s: %w", path, err)
	}
	reload := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(WatchDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			cfg, err := l.Load()
			if err != nil {
				log.Warn("config reload failed", "file", path, "error", err)
				continue
			}
			log.Debug("config reloaded", "file", path)
			fn(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "file", path, "error", err)
		}
	}
}

// SetLevel returns a Watch callback updating lv from the reloaded log level.
func SetLevel(lv *slog.LevelVar) func(*Config) {
	return func(c *Config) {
		if level, err := ParseLevel(c.Log.Level); err == nil {
			lv.Set(level)
		}
	}
}

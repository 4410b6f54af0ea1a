package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDuration = 200 * time.Millisecond

// Watch calls onChange with the reloaded configuration every time path
// changes, until ctx is done. A file that fails to load is logged and
// skipped, so the previous configuration stays in effect.
//
// The parent directory is watched, not the file, so that editors replacing
// the file by rename are noticed.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(absPath), err)
	}

	go func() {
		defer watcher.Close()

		reload := make(chan struct{}, 1)
		var debounceTimer *time.Timer

		for {
			select {
			case <-ctx.Done():
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				slog.Debug("Config watcher stopped", "path", absPath)
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					select {
					case reload <- struct{}{}:
					default:
					}
				})

			case <-reload:
				cfg, err := Load(absPath)
				if err != nil {
					slog.Warn("Ignoring invalid configuration change", "path", absPath, "error", err)
					continue
				}
				slog.Info("Configuration reloaded", "path", absPath)
				onChange(cfg)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "path", absPath, "error", err)
			}
		}
	}()

	return nil
}

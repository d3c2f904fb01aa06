package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch monitors path and calls onChange with the reloaded Config each time
// the file is written or replaced. It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file itself, so editors
// that save by renaming a temp file over path keep triggering reloads.
//
// A reload that fails validation is logged and skipped; onChange is not
// called and the previous config stays in effect.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	slog.Debug("config: watching for changes", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			// A rename onto path arrives as Create. Remove and Rename of the
			// old inode are followed by that Create, so they are skipped.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := LoadFile(target)
			if err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", target, "error", err)
				continue
			}

			slog.Info("config: reloaded", "path", target)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "error", err)
		}
	}
}

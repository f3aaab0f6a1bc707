package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a rule file when it changes on disk and swaps the result
// into a Holder. A file that fails to load leaves the previous RuleSet in
// place.
//
// The parent directory is watched rather than the file itself so that
// editors which save by rename-over are still observed.
type Watcher struct {
	Path   string
	Holder *Holder
	Logger *slog.Logger

	// OnReload, if set, is called after every reload attempt with its error
	// (nil on success).
	OnReload func(err error)
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(w.Path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("watching rule file", "path", target)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload(logger)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("rule file watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(logger *slog.Logger) {
	rs, err := Load(w.Path)
	if err != nil {
		logger.Error("rule reload failed, keeping previous rules", "path", w.Path, "error", err)
	} else {
		w.Holder.Store(rs)
		logger.Info("rules reloaded", "path", w.Path, "connect", len(rs.Connect), "disconnect", len(rs.Disconnect))
	}
	if w.OnReload != nil {
		w.OnReload(err)
	}
}

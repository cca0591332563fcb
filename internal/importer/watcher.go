package importer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const resyncDelay = 200 * time.Millisecond

// resync coalesces bursts of directory and rename events into one Sync.
type resync struct {
	timer *time.Timer
	C     <-chan time.Time
}

func (r *resync) schedule() {
	if r.timer == nil {
		r.timer = time.NewTimer(resyncDelay)
		r.C = r.timer.C
		return
	}
	r.timer.Reset(resyncDelay)
}

func (r *resync) stop() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

// Watch imports changed files under root until ctx is cancelled.
//
// Web directories created at runtime are watched too. Renames schedule a
// debounced Sync, since fsnotify reports only the old name. Removing a file
// never removes the page.
func (im *Importer) Watch(ctx context.Context, root string, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	im.logger.Info("importer: watching", slog.String("root", root))

	var rs resync
	defer rs.stop()

	for {
		select {
		case <-ctx.Done():
			im.logger.Info("importer: stopped")
			return nil

		case <-rs.C:
			if err := im.Sync(ctx, cb); err != nil && ctx.Err() == nil {
				im.logger.Warn("importer: resync failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			im.handle(ctx, w, root, ev, &rs, cb)

		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			im.logger.Error("importer: watch error", slog.String("error", werr.Error()))
		}
	}
}

func (im *Importer) handle(ctx context.Context, w *fsnotify.Watcher, root string, ev fsnotify.Event, rs *resync, cb EventCallback) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addDirsRecursive(w, ev.Name); err != nil {
				im.logger.Warn("importer: watch new web failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			rs.schedule()
			return
		}
	}

	base := filepath.Base(ev.Name)
	if !strings.HasSuffix(base, ".md") || strings.HasPrefix(base, ".") {
		return
	}
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		im.importLogged(ctx, rel, cb)
	case ev.Has(fsnotify.Rename):
		rs.schedule()
	case ev.Has(fsnotify.Remove):
		im.logger.Debug("importer: file removed, page kept", slog.String("path", rel))
	}
}

// addDirsRecursive watches root and every directory below it.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.Add(p)
	})
}

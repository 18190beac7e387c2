package ingest

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

// inboxDebounce lets a dropped file finish writing before it is read.
const inboxDebounce = 200 * time.Millisecond

// Watch ingests screenshots dropped into inboxDir until ctx is cancelled.
// A file at <inboxDir>/<sessionID>/<name> is ingested into that session and
// removed once stored. Files that fail stay in place.
//
// Session directories created at runtime are added to the watch list, and
// files already sitting in the inbox are picked up at start.
func (in *Ingestor) Watch(ctx context.Context, inboxDir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, inboxDir); err != nil {
		return err
	}

	in.logger.Info("inbox: started", slog.String("root", inboxDir))

	// Per-path debounce. Timers deliver into due; only this loop touches pending.
	pending := make(map[string]*time.Timer)
	due := make(chan string, 64)
	schedule := func(path string) {
		if t, ok := pending[path]; ok {
			t.Reset(inboxDebounce)
			return
		}
		pending[path] = time.AfterFunc(inboxDebounce, func() {
			select {
			case due <- path:
			case <-ctx.Done():
			}
		})
	}

	_ = filepath.WalkDir(inboxDir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && in.inboxTarget(inboxDir, p) {
			schedule(p)
		}
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			for _, t := range pending {
				t.Stop()
			}
			in.logger.Info("inbox: stopped")
			return nil

		case p := <-due:
			delete(pending, p)
			in.ingestFile(ctx, inboxDir, p)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						in.logger.Warn("inbox: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					_ = filepath.WalkDir(ev.Name, func(p string, d fs.DirEntry, err error) error {
						if err == nil && !d.IsDir() && in.inboxTarget(inboxDir, p) {
							schedule(p)
						}
						return nil
					})
					continue
				}
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && in.inboxTarget(inboxDir, ev.Name) {
				schedule(ev.Name)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			in.logger.Error("inbox: error", slog.String("error", watchErr.Error()))
		}
	}
}

// inboxTarget reports whether p is an image directly inside a session dir.
func (in *Ingestor) inboxTarget(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 || strings.HasPrefix(parts[1], ".") {
		return false
	}
	return Supported(parts[1])
}

func (in *Ingestor) ingestFile(ctx context.Context, root, p string) {
	data, err := os.ReadFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			in.logger.Warn("inbox: read failed", slog.String("path", p), slog.String("error", err.Error()))
		}
		return
	}
	rel, _ := filepath.Rel(root, p)
	sessionID := filepath.Dir(rel)

	if _, err := in.Ingest(ctx, sessionID, filepath.Base(p), data); err != nil {
		in.logger.Warn("inbox: ingest failed",
			slog.String("path", p),
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}
	if err := os.Remove(p); err != nil {
		in.logger.Warn("inbox: remove failed", slog.String("path", p), slog.String("error", err.Error()))
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

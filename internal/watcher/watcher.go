// Package watcher keeps the document store in step with the content
// directory.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iteam-company/blockpress/internal/storage"
)

const reconcileDelay = 200 * time.Millisecond

// Indexer converts and removes content files. docservice.Service implements it.
type Indexer interface {
	IndexFile(ctx context.Context, path string, data []byte) (string, error)
	RemoveFile(ctx context.Context, path string) (string, error)
	Reconcile(ctx context.Context)
	Extensions() []string
}

// EventCallback is called after a watcher-driven store change.
// kind is one of "created", "updated", "deleted"; path is relative to the
// content root, slash separated.
type EventCallback func(kind string, path string)

// Watch starts an fsnotify watcher on root and processes file change events
// until ctx is cancelled. It calls cb (if non-nil) after each successful
// mutation.
//
// New directories created at runtime are added to the watch list. Rename
// events trigger a debounced reconciliation pass.
func Watch(ctx context.Context, root string, ix Indexer, logger *slog.Logger, cb EventCallback) error {
	content, err := storage.NewFS(root)
	if err != nil {
		return err
	}
	root = content.Root()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root))

	exts := ix.Extensions()
	notify := func(kind, rel string) {
		if cb != nil {
			cb(kind, rel)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	index := func(rel, kind string) {
		data, err := content.Read(rel)
		if err != nil {
			logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		slug, err := ix.IndexFile(ctx, rel, data)
		if err != nil {
			logger.Warn("watcher: convert failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		logger.Debug("watcher: converted", slog.String("path", rel), slog.String("slug", slug), slog.String("op", kind))
		notify(kind, rel)
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			ix.Reconcile(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					indexNewDir(root, absPath, exts, index)
					continue
				}
			}

			if hidden(filepath.Base(absPath)) || !storage.MatchExt(absPath, exts) {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind := "updated"
				if ev.Op&fsnotify.Create != 0 {
					kind = "created"
				}
				index(rel, kind)

			case ev.Op&fsnotify.Remove != 0:
				slug, delErr := ix.RemoveFile(ctx, rel)
				if delErr != nil {
					logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
					continue
				}
				if slug != "" {
					notify("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify reports Rename on the old path only; the new
				// path arrives as Create when it stays inside the root.
				if slug, delErr := ix.RemoveFile(ctx, rel); delErr != nil {
					logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
				} else if slug != "" {
					notify("deleted", rel)
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// indexNewDir converts matching files already present in a new directory.
func indexNewDir(root, dir string, exts []string, index func(rel, kind string)) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || hidden(d.Name()) || !storage.MatchExt(p, exts) {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		index(filepath.ToSlash(rel), "created")
		return nil
	})
}

// addDirsRecursive adds root and its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

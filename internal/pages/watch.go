package pages

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchCatalog calls onChange whenever the catalog or one of the content
// files it references is written, created, renamed or removed. Directories
// are watched rather than files so that editors which save by replacing the
// file are still seen. The set of content directories is re-read from the
// catalog after every change. It blocks until ctx is cancelled.
func WatchCatalog(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating catalog watcher: %w", err)
	}
	defer watcher.Close()

	catalogDir := filepath.Clean(filepath.Dir(path))
	if err := watcher.Add(catalogDir); err != nil {
		return fmt.Errorf("watching %s: %w", catalogDir, err)
	}

	logger := slog.Default().With("component", "catalog-watcher", "dir", catalogDir)
	w := &catalogWatcher{
		path:    path,
		watcher: watcher,
		watched: map[string]bool{catalogDir: true},
		logger:  logger,
	}
	w.sync()
	logger.Info("watching catalog for changes", "catalog", path, "dirs", len(w.watched))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}
			logger.Debug("catalog content changed", "file", event.Name, "op", event.Op.String())
			w.sync()
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher error", "error", err)
		}
	}
}

type catalogWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	watched map[string]bool
	logger  *slog.Logger
}

// sync adds the directories of the catalog's content files to the watcher
// and drops those no longer referenced. The catalog's own directory always
// stays. An unreadable catalog leaves the current set unchanged.
func (w *catalogWatcher) sync() {
	dirs, err := contentDirs(w.path)
	if err != nil {
		w.logger.Warn("reading catalog for watch list", "error", err)
		return
	}
	catalogDir := filepath.Clean(filepath.Dir(w.path))
	want := map[string]bool{catalogDir: true}
	for _, dir := range dirs {
		want[dir] = true
	}

	for dir := range want {
		if w.watched[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("watching content directory", "content_dir", dir, "error", err)
			continue
		}
		w.watched[dir] = true
		w.logger.Debug("watching content directory", "content_dir", dir)
	}
	for dir := range w.watched {
		if want[dir] {
			continue
		}
		if err := w.watcher.Remove(dir); err != nil {
			w.logger.Debug("unwatching content directory", "content_dir", dir, "error", err)
		}
		delete(w.watched, dir)
	}
}

// contentDirs returns the sorted, distinct directories holding the File
// sources of the catalog at path.
func contentDirs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	list, err := ParseCatalog(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, p := range list {
		file, ok := p.Source.(File)
		if !ok {
			continue
		}
		dir := filepath.Clean(filepath.Dir(string(file)))
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return false
	}
	// Editor swap and backup files.
	base := filepath.Base(event.Name)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~") && !strings.HasSuffix(base, ".swp")
}

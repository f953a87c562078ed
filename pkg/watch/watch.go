// Package watch reruns work when files under a project root change
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/colonise/forge/pkg/logger"
)

// DefaultSettlingDelay is how long the tree must stay quiet before a batch
// of changes is handed on.
const DefaultSettlingDelay = 500 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	SettlingDelay time.Duration
	// Exclude holds glob patterns matched against every segment of a path
	// relative to the root, e.g. "node_modules" or "*.log".
	Exclude []string
}

// ChangeFunc receives the root-relative, slash-separated paths that changed
// since the previous call. Calls never overlap.
type ChangeFunc func(ctx context.Context, changed []string)

// Watcher watches a directory tree recursively with fsnotify.
type Watcher struct {
	watcher    *fsnotify.Watcher
	root       string
	settling   time.Duration
	exclusions []glob.Glob
	logger     logger.Logger
}

// New creates a watcher for root. Every directory below root that is not
// excluded is registered before New returns.
func New(root string, opts Options, log logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.NewNop()
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	w := &Watcher{root: absRoot, settling: opts.SettlingDelay, logger: log}
	if w.settling <= 0 {
		w.settling = DefaultSettlingDelay
	}
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		w.exclusions = append(w.exclusions, g)
	}

	if w.watcher, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.addTree(absRoot); err != nil {
		w.watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// List returns the watched directories.
func (w *Watcher) List() []string {
	return w.watcher.WatchList()
}

// Run dispatches settled batches of changes to onChange until ctx is done.
// Changes that arrive while onChange runs are batched into the next call.
func (w *Watcher) Run(ctx context.Context, onChange ChangeFunc) error {
	pending := make(map[string]struct{})
	done := make(chan struct{}, 1)
	busy := false

	timer := time.NewTimer(w.settling)
	timer.Stop()
	defer timer.Stop()

	dispatch := func() {
		changed := make([]string, 0, len(pending))
		for path := range pending {
			changed = append(changed, path)
		}
		sort.Strings(changed)
		pending = make(map[string]struct{})

		busy = true
		go func() {
			defer func() { done <- struct{}{} }()
			onChange(ctx, changed)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			if busy {
				<-done
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			rel, skip := w.relevant(event.Name)
			if skip {
				continue
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn(fmt.Sprintf("Failed to watch directory %s: %v", rel, err))
					}
				}
			}
			w.logger.Debug("File changed", logger.WithField("path", rel), logger.WithField("op", event.Op.String()))
			pending[rel] = struct{}{}
			timer.Reset(w.settling)

		case <-timer.C:
			if busy || len(pending) == 0 {
				continue
			}
			dispatch()

		case <-done:
			busy = false
			if len(pending) > 0 {
				timer.Reset(w.settling)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

func (w *Watcher) relevant(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", true
	}
	rel = filepath.ToSlash(rel)
	return rel, w.isExcluded(rel)
}

func (w *Watcher) isExcluded(rel string) bool {
	for _, segment := range strings.Split(rel, "/") {
		for _, g := range w.exclusions {
			if g.Match(segment) {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root {
			if rel, skip := w.relevant(path); skip {
				w.logger.Debug("Not watching excluded directory", logger.WithField("path", rel))
				return filepath.SkipDir
			}
		}
		return w.watcher.Add(path)
	})
}

package library

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"cmdtrace/internal/index"
	"cmdtrace/internal/logging"
)

// DefaultDebounce is how long a source must stay quiet before a change is
// reported.
const DefaultDebounce = 500 * time.Millisecond

// watchDepth bounds how far below a source root directories are watched:
// Claude keeps one directory per project, OpenCode one per session.
const watchDepth = 2

// Watcher reports which source changed on disk. Bursts of events for one
// source collapse into a single notification once the source goes quiet.
type Watcher struct {
	watcher  *fsnotify.Watcher
	roots    map[index.SourceKind]string
	debounce time.Duration
	logger   *logrus.Entry

	mu     sync.Mutex
	timers map[index.SourceKind]*time.Timer
}

// NewWatcher watches each root that exists. Roots that are missing are
// skipped; they are picked up on the next start.
func NewWatcher(roots map[index.SourceKind]string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		watcher:  fw,
		roots:    roots,
		debounce: debounce,
		logger:   logging.NewLogger("watcher"),
		timers:   make(map[index.SourceKind]*time.Timer),
	}
	for kind, root := range roots {
		if err := w.addTree(root, 0); err != nil {
			w.logger.WithField("source", kind).WithError(err).Debug("source root not watched")
		}
	}
	return w, nil
}

func (w *Watcher) addTree(dir string, depth int) error {
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	if depth >= watchDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.IsDir() {
			_ = w.addTree(filepath.Join(dir, e.Name()), depth+1)
		}
	}
	return nil
}

// kindFor maps a path to the source whose root contains it.
func (w *Watcher) kindFor(path string) (index.SourceKind, int, bool) {
	for kind, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		depth := 0
		if rel != "." {
			depth = strings.Count(rel, string(filepath.Separator)) + 1
		}
		return kind, depth, true
	}
	return "", 0, false
}

// Run delivers changed sources on out until ctx is cancelled, then closes
// the underlying watcher. out is never closed by Run.
func (w *Watcher) Run(ctx context.Context, out chan<- index.SourceKind) {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			kind, depth, ok := w.kindFor(event.Name)
			if !ok {
				continue
			}
			w.logger.WithFields(logrus.Fields{"path": event.Name, "op": event.Op.String()}).Debug("fsnotify event")
			if event.Op.Has(fsnotify.Create) && depth <= watchDepth {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addTree(event.Name, depth)
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.schedule(ctx, kind, out)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("watcher error")
		case <-ctx.Done():
			w.stopTimers()
			return
		}
	}
}

// schedule (re)arms the quiet-period timer for kind.
func (w *Watcher) schedule(ctx context.Context, kind index.SourceKind, out chan<- index.SourceKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[kind]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[kind] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, kind)
		w.mu.Unlock()
		w.logger.WithField("source", kind).Debug("source changed")
		select {
		case out <- kind:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for kind, t := range w.timers {
		t.Stop()
		delete(w.timers, kind)
	}
}

// Close releases the watcher without waiting for Run.
func (w *Watcher) Close() error {
	w.stopTimers()
	return w.watcher.Close()
}

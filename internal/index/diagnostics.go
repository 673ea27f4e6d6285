package index

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Diagnostics observes files the loaders skipped. Skips never surface to the
// caller as errors; this is the only place they are visible.
type Diagnostics interface {
	Skipped(source SourceKind, path string, err error)
}

type nopDiagnostics struct{}

func (nopDiagnostics) Skipped(SourceKind, string, error) {}

// SkipCounter records skipped paths. Safe for concurrent use.
type SkipCounter struct {
	mu    sync.Mutex
	paths []string
	errs  []error
}

func (c *SkipCounter) Skipped(_ SourceKind, path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
	c.errs = append(c.errs, err)
}

func (c *SkipCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func (c *SkipCounter) Paths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

// LogDiagnostics reports skips at debug level.
type LogDiagnostics struct {
	Log *logrus.Entry
}

func (d LogDiagnostics) Skipped(source SourceKind, path string, err error) {
	d.Log.WithFields(logrus.Fields{"source": source, "path": path}).WithError(err).Debug("skipped transcript")
}

// MultiDiagnostics fans a skip out to several sinks.
type MultiDiagnostics []Diagnostics

func (m MultiDiagnostics) Skipped(source SourceKind, path string, err error) {
	for _, d := range m {
		d.Skipped(source, path, err)
	}
}

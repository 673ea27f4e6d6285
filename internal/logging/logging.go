// Package logging provides per-component logrus entries that share one sink.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Options configures the shared logger. An empty Path discards output,
// which is what the TUI wants when no log file is configured.
type Options struct {
	Level  string
	Path   string
	Stderr bool
	JSON   bool
}

var (
	base      = newBase()
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
	closer    io.Closer
)

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetFormatter(&TextFormatter{})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Setup applies opts to every logger returned by NewLogger, including ones
// created before Setup was called.
func Setup(opts Options) error {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	levelStr := "info"
	if env := os.Getenv("CMDTRACE_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if opts.Level != "" {
		levelStr = opts.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if opts.JSON {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&TextFormatter{})
	}

	var writers []io.Writer
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		if closer != nil {
			_ = closer.Close()
		}
		closer = f
		writers = append(writers, f)
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		base.SetOutput(io.Discard)
	case 1:
		base.SetOutput(writers[0])
	default:
		base.SetOutput(io.MultiWriter(writers...))
	}
	return nil
}

// NewLogger returns the entry for component, creating it on first use.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if entry, ok := loggers[component]; ok {
		return entry
	}
	entry := base.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Close releases the log file opened by Setup.
func Close() error {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	base.SetOutput(io.Discard)
	return err
}

// TextFormatter renders "2006-01-02 15:04:05 [LEVEL] [component] message k=v".
type TextFormatter struct {
	DisableTimestamp bool
}

func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	if !f.DisableTimestamp {
		b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))
		b.WriteString(" ")
	}

	levelStr := entry.Level.String()
	if levelStr == "warning" {
		levelStr = "warn"
	}
	b.WriteString("[" + strings.ToUpper(levelStr) + "]")

	if component, ok := entry.Data["component"]; ok {
		fmt.Fprintf(&b, " [%v]", component)
	}

	b.WriteString(" ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}

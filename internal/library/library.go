package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"cmdtrace/internal/index"
	"cmdtrace/internal/logging"
)

// Loader is the capability the library needs from the parsers.
type Loader interface {
	Load(ctx context.Context, kind index.SourceKind) ([]index.Session, error)
	Kinds() []index.SourceKind
}

// SnapshotStore persists cache entries so a restart can paint immediately.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, kind index.SourceKind, sessions []index.Session, loadedAt time.Time) error
	LoadSnapshot(ctx context.Context, kind index.SourceKind) ([]index.Session, time.Time, bool, error)
}

// Ticket identifies one Switch call. A reload started for a ticket is only
// worth applying while the ticket is still current.
type Ticket struct {
	Kind index.SourceKind
	gen  uint64
	lib  *Library
}

// Current reports whether no Switch happened since this ticket was issued.
func (t Ticket) Current() bool {
	if t.lib == nil {
		return false
	}
	t.lib.mu.Lock()
	defer t.lib.mu.Unlock()
	return t.lib.gen == t.gen && t.lib.active == t.Kind
}

type Library struct {
	loader    Loader
	cache     *Cache
	snapshots SnapshotStore
	group     singleflight.Group
	log       *logrus.Entry

	mu     sync.Mutex
	active index.SourceKind
	gen    uint64
}

type Option func(*Library)

func WithSnapshots(s SnapshotStore) Option {
	return func(l *Library) { l.snapshots = s }
}

func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.cache = NewCache(now) }
}

func New(loader Loader, initial index.SourceKind, opts ...Option) *Library {
	l := &Library{
		loader: loader,
		cache:  NewCache(nil),
		log:    logging.NewLogger("library"),
		active: initial,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Library) Active() index.SourceKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Library) Cache() *Cache { return l.cache }

// Switch makes kind the active source. When kind has been loaded before the
// cached sessions are returned with ok=true; otherwise the caller should
// Reload and apply the result only if the ticket is still current.
func (l *Library) Switch(kind index.SourceKind) (Ticket, []index.Session, bool) {
	l.mu.Lock()
	l.active = kind
	l.gen++
	t := Ticket{Kind: kind, gen: l.gen, lib: l}
	l.mu.Unlock()

	e, ok := l.cache.Get(kind)
	return t, e.Sessions, ok
}

// Reload loads kind from disk and replaces its cache entry. Concurrent
// reloads of the same kind share one load.
func (l *Library) Reload(ctx context.Context, kind index.SourceKind) ([]index.Session, error) {
	v, err, shared := l.group.Do(string(kind), func() (any, error) {
		start := time.Now()
		sessions, err := l.loader.Load(ctx, kind)
		if err != nil {
			return nil, err
		}
		e := l.cache.Put(kind, sessions)
		l.log.WithFields(logrus.Fields{
			"source":   kind,
			"sessions": len(sessions),
			"elapsed":  time.Since(start).Round(time.Millisecond),
		}).Debug("source loaded")

		if l.snapshots != nil {
			if err := l.snapshots.SaveSnapshot(ctx, kind, sessions, e.LoadedAt); err != nil {
				l.log.WithField("source", kind).WithError(err).Warn("save snapshot")
			}
		}
		return sessions, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load %s sessions: %w", kind, err)
	}
	if shared {
		l.log.WithField("source", kind).Debug("reload coalesced")
	}
	return v.([]index.Session), nil
}

// WarmUp loads every source other than the active one in parallel. Each
// source succeeds or fails on its own; the returned map holds the failures.
func (l *Library) WarmUp(ctx context.Context) map[index.SourceKind]error {
	active := l.Active()

	var (
		mu   sync.Mutex
		errs = make(map[index.SourceKind]error)
		g    errgroup.Group
	)
	for _, kind := range l.loader.Kinds() {
		if kind == active {
			continue
		}
		kind := kind
		g.Go(func() error {
			if _, err := l.Reload(ctx, kind); err != nil {
				l.log.WithField("source", kind).WithError(err).Warn("warm-up failed")
				mu.Lock()
				errs[kind] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Restore seeds the cache from persisted snapshots for kinds not yet loaded.
func (l *Library) Restore(ctx context.Context) int {
	if l.snapshots == nil {
		return 0
	}
	restored := 0
	for _, kind := range l.loader.Kinds() {
		if _, ok := l.cache.Get(kind); ok {
			continue
		}
		sessions, at, ok, err := l.snapshots.LoadSnapshot(ctx, kind)
		if err != nil {
			l.log.WithField("source", kind).WithError(err).Warn("load snapshot")
			continue
		}
		if !ok {
			continue
		}
		l.cache.putAt(kind, sessions, at)
		restored++
	}
	return restored
}

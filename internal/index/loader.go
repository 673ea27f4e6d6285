package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	apperrors "cmdtrace/internal/errors"
)

// Loader turns one source's raw files into sessions.
type Loader interface {
	Kind() SourceKind
	Root() string
	Load(ctx context.Context) ([]Session, error)
}

// Options are shared by every loader.
type Options struct {
	Diagnostics Diagnostics
	Now         func() time.Time
}

func (o Options) diag() Diagnostics {
	if o.Diagnostics == nil {
		return nopDiagnostics{}
	}
	return o.Diagnostics
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Sources dispatches loads to the loader registered for each kind.
type Sources struct {
	loaders map[SourceKind]Loader
}

func NewSources(loaders ...Loader) *Sources {
	s := &Sources{loaders: make(map[SourceKind]Loader, len(loaders))}
	for _, l := range loaders {
		s.loaders[l.Kind()] = l
	}
	return s
}

// Load returns the sessions for kind, newest first. A missing source root
// yields an empty slice and no error.
func (s *Sources) Load(ctx context.Context, kind SourceKind) ([]Session, error) {
	l, ok := s.loaders[kind]
	if !ok {
		return nil, fmt.Errorf("no loader registered for source %q", kind)
	}
	return l.Load(ctx)
}

// Kinds returns the registered kinds in Kinds order.
func (s *Sources) Kinds() []SourceKind {
	out := make([]SourceKind, 0, len(s.loaders))
	for _, k := range Kinds {
		if _, ok := s.loaders[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (s *Sources) Root(kind SourceKind) (string, bool) {
	l, ok := s.loaders[kind]
	if !ok {
		return "", false
	}
	return l.Root(), true
}

// readRoot lists root. ok is false when root does not exist.
func readRoot(kind SourceKind, root string) (entries []os.DirEntry, ok bool, err error) {
	entries, err = os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, apperrors.SourceInaccessible(string(kind), root, err)
	}
	return entries, true, nil
}

// finalize drops empty sessions and orders the rest by recency.
func finalize(in []Session) []Session {
	out := in[:0]
	for _, s := range in {
		if s.MessageCount > 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

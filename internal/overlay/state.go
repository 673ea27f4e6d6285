package overlay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "cmdtrace/internal/errors"
)

// Change is one logically atomic write: the full new value of every touched
// metadata entry and tag, plus the tags that were removed from the registry.
type Change struct {
	Metadata    map[string]Metadata
	Tags        []TagInfo
	DeletedTags []string
}

func (c Change) empty() bool {
	return len(c.Metadata) == 0 && len(c.Tags) == 0 && len(c.DeletedTags) == 0
}

// Sink persists changes. A failed Apply leaves the in-memory state untouched.
type Sink interface {
	Apply(ctx context.Context, c Change) error
}

// Snapshot is the complete overlay, as loaded from persistence.
type Snapshot struct {
	Metadata map[string]Metadata
	Tags     []TagInfo
}

// State is the overlay. Every mutation holds one lock over the whole overlay
// for its read-modify-write.
type State struct {
	mu   sync.RWMutex
	meta map[string]Metadata
	tags map[string]TagInfo
	now  func() time.Time
	sink Sink
}

type Option func(*State)

func WithSink(s Sink) Option {
	return func(st *State) { st.sink = s }
}

func WithClock(now func() time.Time) Option {
	return func(st *State) { st.now = now }
}

func New(opts ...Option) *State {
	s := &State{
		meta: make(map[string]Metadata),
		tags: make(map[string]TagInfo),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the whole overlay with snap without touching the sink.
func (s *State) Load(snap Snapshot) {
	meta := make(map[string]Metadata, len(snap.Metadata))
	for id, m := range snap.Metadata {
		meta[id] = m.clone()
	}
	tags := make(map[string]TagInfo, len(snap.Tags))
	for _, t := range snap.Tags {
		tags[t.Name] = t
	}
	s.mu.Lock()
	s.meta = meta
	s.tags = tags
	s.mu.Unlock()
}

// Metadata returns a copy of the entry for id, or the zero value.
func (s *State) Metadata(id string) Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta[id].clone()
}

// All returns a copy of every metadata entry.
func (s *State) All() map[string]Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Metadata, len(s.meta))
	for id, m := range s.meta {
		out[id] = m.clone()
	}
	return out
}

// Tags returns the registry sorted by name.
func (s *State) Tags() []TagInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TagInfo, 0, len(s.tags))
	for _, t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *State) Tag(name string) (TagInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tags[name]
	return t, ok
}

// UsageCounts counts, per tag, the sessions whose tag set contains it.
// Computed on every call.
func (s *State) UsageCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int)
	for _, m := range s.meta {
		for _, t := range m.Tags {
			counts[t]++
		}
	}
	return counts
}

// commit persists c through the sink, then applies it in memory. Callers
// hold s.mu.
func (s *State) commit(ctx context.Context, c Change) error {
	if c.empty() {
		return nil
	}
	if s.sink != nil {
		if err := s.sink.Apply(ctx, c); err != nil {
			return fmt.Errorf("persist overlay change: %w", err)
		}
	}
	for _, name := range c.DeletedTags {
		delete(s.tags, name)
	}
	for _, t := range c.Tags {
		s.tags[t.Name] = t
	}
	for id, m := range c.Metadata {
		s.meta[id] = m
	}
	return nil
}

// update runs fn on a copy of the entry for id and commits the result.
func (s *State) update(ctx context.Context, id string, fn func(m *Metadata) []TagInfo) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.meta[id].clone()
	created := fn(&m)
	c := Change{Metadata: map[string]Metadata{id: m}, Tags: created}
	if err := s.commit(ctx, c); err != nil {
		return Metadata{}, err
	}
	return m.clone(), nil
}

func (s *State) ToggleFavorite(ctx context.Context, id string) (Metadata, error) {
	return s.update(ctx, id, func(m *Metadata) []TagInfo {
		m.Favorite = !m.Favorite
		return nil
	})
}

func (s *State) TogglePin(ctx context.Context, id string) (Metadata, error) {
	return s.update(ctx, id, func(m *Metadata) []TagInfo {
		m.Pinned = !m.Pinned
		return nil
	})
}

// ToggleArchive flips Archived. ArchivedAt is set on archive and cleared on
// unarchive.
func (s *State) ToggleArchive(ctx context.Context, id string) (Metadata, error) {
	return s.update(ctx, id, func(m *Metadata) []TagInfo {
		m.Archived = !m.Archived
		if m.Archived {
			at := s.now()
			m.ArchivedAt = &at
		} else {
			m.ArchivedAt = nil
		}
		return nil
	})
}

// SetCustomName sets the display name; an empty name restores the parsed title.
func (s *State) SetCustomName(ctx context.Context, id, name string) (Metadata, error) {
	name = strings.TrimSpace(name)
	return s.update(ctx, id, func(m *Metadata) []TagInfo {
		m.CustomName = name
		return nil
	})
}

// AddTag adds name to the session's tag set, registering the tag when it is
// not known yet.
func (s *State) AddTag(ctx context.Context, id, name string) (Metadata, error) {
	name = strings.TrimSpace(name)
	if err := validTagName(name); err != nil {
		return Metadata{}, err
	}
	return s.update(ctx, id, func(m *Metadata) []TagInfo {
		m.addTag(name)
		return s.missingTags(name)
	})
}

func (s *State) RemoveTag(ctx context.Context, id, name string) (Metadata, error) {
	return s.update(ctx, id, func(m *Metadata) []TagInfo {
		m.removeTag(name)
		return nil
	})
}

// ApplyGenerated accepts an externally computed title and tags for a
// session. An existing custom name is kept; tags are merged.
func (s *State) ApplyGenerated(ctx context.Context, id, title string, tags []string) (Metadata, error) {
	title = strings.TrimSpace(title)
	var names []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if validTagName(t) == nil {
			names = append(names, t)
		}
	}
	return s.update(ctx, id, func(m *Metadata) []TagInfo {
		if m.CustomName == "" {
			m.CustomName = title
		}
		for _, t := range names {
			m.addTag(t)
		}
		return s.missingTags(names...)
	})
}

// missingTags builds default registry entries for names not registered yet.
func (s *State) missingTags(names ...string) []TagInfo {
	var out []TagInfo
	seen := make(map[string]bool)
	for _, n := range names {
		if _, ok := s.tags[n]; ok || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, TagInfo{Name: n, Color: DefaultTagColor})
	}
	return out
}

func validTagName(name string) error {
	switch {
	case name == "":
		return apperrors.InvalidTag(name, "name is empty")
	case strings.ContainsAny(name, "\n\t"):
		return apperrors.InvalidTag(name, "name contains control whitespace")
	}
	return nil
}

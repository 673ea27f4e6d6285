// Package overlay holds user-assigned state layered over parsed sessions:
// per-session flags, custom names and tags, plus the tag registry.
package overlay

import (
	"slices"
	"time"
)

// Metadata is the user state for one session, keyed by index.Session.ID.
type Metadata struct {
	Favorite   bool       `json:"favorite"`
	Pinned     bool       `json:"pinned"`
	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CustomName string     `json:"custom_name,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
}

// HasTag reports exact membership.
func (m Metadata) HasTag(name string) bool {
	return slices.Contains(m.Tags, name)
}

// IsZero reports whether m carries no user state at all.
func (m Metadata) IsZero() bool {
	return !m.Favorite && !m.Pinned && !m.Archived && m.ArchivedAt == nil &&
		m.CustomName == "" && len(m.Tags) == 0
}

func (m Metadata) clone() Metadata {
	out := m
	if m.ArchivedAt != nil {
		at := *m.ArchivedAt
		out.ArchivedAt = &at
	}
	out.Tags = slices.Clone(m.Tags)
	return out
}

// addTag appends name unless present; insertion order is kept for display.
func (m *Metadata) addTag(name string) bool {
	if m.HasTag(name) {
		return false
	}
	m.Tags = append(m.Tags, name)
	return true
}

func (m *Metadata) removeTag(name string) bool {
	i := slices.Index(m.Tags, name)
	if i < 0 {
		return false
	}
	m.Tags = slices.Delete(m.Tags, i, i+1)
	return true
}

// TagInfo is one tag registry entry. Parent may name a tag that no longer
// exists; such tags are treated as roots.
type TagInfo struct {
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	Important bool   `json:"important,omitempty"`
	Parent    string `json:"parent,omitempty"`
}

// DefaultTagColor is assigned to tags created implicitly by tagging a session.
const DefaultTagColor = "blue"

// Map is a plain metadata lookup, handy where no State is needed.
type Map map[string]Metadata

func (m Map) Metadata(id string) Metadata {
	return m[id]
}

package overlay

import (
	"context"
	"slices"
	"strings"

	apperrors "cmdtrace/internal/errors"
)

// PutTag creates or updates a registry entry. The parent, when set, must
// satisfy the same rules as SetTagParent.
func (s *State) PutTag(ctx context.Context, t TagInfo) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Parent = strings.TrimSpace(t.Parent)
	if err := validTagName(t.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Color == "" {
		if old, ok := s.tags[t.Name]; ok {
			t.Color = old.Color
		} else {
			t.Color = DefaultTagColor
		}
	}
	if t.Parent != "" {
		if err := s.checkParent(t.Name, t.Parent); err != nil {
			return err
		}
	}
	return s.commit(ctx, Change{Tags: []TagInfo{t}})
}

// SetTagParent nests child under parent. Nesting is one level deep: a tag
// cannot parent itself, the parent cannot itself have a parent, and a tag
// with children cannot become a child. An empty parent clears the link.
func (s *State) SetTagParent(ctx context.Context, child, parent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[child]
	if !ok {
		return apperrors.TagNotFound(child)
	}
	if parent != "" {
		if err := s.checkParent(child, parent); err != nil {
			return err
		}
	}
	if t.Parent == parent {
		return nil
	}
	t.Parent = parent
	return s.commit(ctx, Change{Tags: []TagInfo{t}})
}

// checkParent holds s.mu.
func (s *State) checkParent(child, parent string) error {
	if child == parent {
		return apperrors.InvalidTag(child, "a tag cannot be its own parent")
	}
	p, ok := s.tags[parent]
	if !ok {
		return apperrors.TagNotFound(parent)
	}
	if p.Parent != "" {
		if _, exists := s.tags[p.Parent]; exists {
			return apperrors.InvalidTag(child, "parent "+parent+" is already nested under "+p.Parent)
		}
	}
	for _, other := range s.tags {
		if other.Parent == child && other.Name != child {
			return apperrors.InvalidTag(child, "tag already has children")
		}
	}
	return nil
}

// RenameTag re-keys a registry entry, replaces the name in place in every
// session tag set and re-points children. Renaming to the same name is a
// no-op; renaming onto an existing tag fails.
func (s *State) RenameTag(ctx context.Context, oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	if oldName == newName {
		return nil
	}
	if err := validTagName(newName); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[oldName]
	if !ok {
		return apperrors.TagNotFound(oldName)
	}
	if _, exists := s.tags[newName]; exists {
		return apperrors.TagExists(newName)
	}

	t.Name = newName
	c := Change{
		Tags:        []TagInfo{t},
		DeletedTags: []string{oldName},
		Metadata:    make(map[string]Metadata),
	}
	for _, other := range s.tags {
		if other.Parent == oldName && other.Name != oldName {
			other.Parent = newName
			c.Tags = append(c.Tags, other)
		}
	}
	for id, m := range s.meta {
		i := slices.Index(m.Tags, oldName)
		if i < 0 {
			continue
		}
		m = m.clone()
		if m.HasTag(newName) {
			m.removeTag(oldName)
		} else {
			m.Tags[i] = newName
		}
		c.Metadata[id] = m
	}
	return s.commit(ctx, c)
}

// DeleteTag removes the registry entry and strips the tag from every
// session. Children keep their now dangling parent and act as roots.
func (s *State) DeleteTag(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tags[name]; !ok {
		return apperrors.TagNotFound(name)
	}
	c := Change{DeletedTags: []string{name}, Metadata: make(map[string]Metadata)}
	for id, m := range s.meta {
		if !m.HasTag(name) {
			continue
		}
		m = m.clone()
		m.removeTag(name)
		c.Metadata[id] = m
	}
	return s.commit(ctx, c)
}

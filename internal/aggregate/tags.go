// Package aggregate derives rollups from the session collection and the
// overlay: ordered tag listings, the tag hierarchy and per-project stats.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"cmdtrace/internal/overlay"
)

// SortMode orders a tag listing.
type SortMode int

const (
	SortImportance SortMode = iota
	SortAlphabetical
	SortUsageDesc
	SortUsageAsc
)

var sortModeNames = [...]string{
	SortImportance:   "importance",
	SortAlphabetical: "alphabetical",
	SortUsageDesc:    "usage-desc",
	SortUsageAsc:     "usage-asc",
}

func (m SortMode) String() string {
	if int(m) < 0 || int(m) >= len(sortModeNames) {
		return fmt.Sprintf("SortMode(%d)", int(m))
	}
	return sortModeNames[m]
}

func ParseSortMode(s string) (SortMode, error) {
	for i, name := range sortModeNames {
		if strings.EqualFold(s, name) {
			return SortMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown tag sort %q (want one of %s)", s, strings.Join(sortModeNames[:], ", "))
}

// DefaultVisible is how many important tags are shown when the user has not
// pinned a visible set.
const DefaultVisible = 5

// TagCount is a registry entry with its usage.
type TagCount struct {
	overlay.TagInfo
	Count int `json:"count"`
}

// ListTags returns every registry tag ordered by mode. Ties fall back to
// name order.
func ListTags(tags []overlay.TagInfo, usage map[string]int, mode SortMode) []TagCount {
	out := make([]TagCount, len(tags))
	for i, t := range tags {
		out[i] = TagCount{TagInfo: t, Count: usage[t.Name]}
	}
	byName := func(a, b TagCount) bool { return a.Name < b.Name }

	var less func(a, b TagCount) bool
	switch mode {
	case SortImportance:
		less = func(a, b TagCount) bool {
			if a.Important != b.Important {
				return a.Important
			}
			return byName(a, b)
		}
	case SortUsageDesc:
		less = func(a, b TagCount) bool {
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			return byName(a, b)
		}
	case SortUsageAsc:
		less = func(a, b TagCount) bool {
			if a.Count != b.Count {
				return a.Count < b.Count
			}
			return byName(a, b)
		}
	default:
		less = byName
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// VisibleTags picks the tags for the sidebar. With no pinned set it takes the
// first DefaultVisible important tags of listed; otherwise it returns the
// pinned names still present in listed, in pinned order.
func VisibleTags(listed []TagCount, pinned []string) []TagCount {
	if len(pinned) == 0 {
		var out []TagCount
		for _, t := range listed {
			if !t.Important {
				continue
			}
			out = append(out, t)
			if len(out) == DefaultVisible {
				break
			}
		}
		return out
	}

	byName := make(map[string]TagCount, len(listed))
	for _, t := range listed {
		byName[t.Name] = t
	}
	out := make([]TagCount, 0, len(pinned))
	seen := make(map[string]bool, len(pinned))
	for _, name := range pinned {
		t, ok := byName[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, t)
	}
	return out
}

// RootTags returns tags with no parent, or whose parent is not registered.
func RootTags(tags []TagCount) []TagCount {
	known := make(map[string]bool, len(tags))
	for _, t := range tags {
		known[t.Name] = true
	}
	var out []TagCount
	for _, t := range tags {
		if t.Parent == "" || !known[t.Parent] {
			out = append(out, t)
		}
	}
	return out
}

// ChildTags returns the direct children of parent. Grandchildren are not
// followed.
func ChildTags(tags []TagCount, parent string) []TagCount {
	var out []TagCount
	for _, t := range tags {
		if t.Parent == parent && t.Name != parent {
			out = append(out, t)
		}
	}
	return out
}

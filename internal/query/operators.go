package query

import (
	"regexp"
	"strings"
	"time"

	"cmdtrace/internal/index"
	"cmdtrace/internal/overlay"
)

type predicate func(s index.Session, m overlay.Metadata) bool

// Operator is a parsed search string.
type Operator struct {
	Name string
	Term string

	match     predicate
	highlight string
}

// Match reports whether the session and its overlay entry satisfy op.
func (op Operator) Match(s index.Session, m overlay.Metadata) bool {
	return op.match(s, m)
}

// Prefixes in match order. Free text is used when none applies.
var prefixes = []string{"title", "tag", "project", "content", "date", "regex", "messages"}

// FreeText is the Name of an Operator with no recognized prefix.
const FreeText = "text"

// Parse classifies search by its prefix and compiles the matching
// predicate. Prefixes are case-insensitive; the first match wins.
func Parse(search string, now time.Time) (Operator, error) {
	search = strings.TrimSpace(search)
	lower := strings.ToLower(search)
	for _, p := range prefixes {
		if !strings.HasPrefix(lower, p+":") {
			continue
		}
		term := strings.TrimSpace(search[len(p)+1:])
		op := Operator{Name: p, Term: term}
		var err error
		op.match, err = compile(p, term, now)
		return op, err
	}

	needle := strings.ToLower(search)
	return Operator{
		Name:      FreeText,
		Term:      search,
		match:     freeText(needle),
		highlight: search,
	}, nil
}

func compile(name, term string, now time.Time) (predicate, error) {
	needle := strings.ToLower(term)
	switch name {
	case "title":
		return func(s index.Session, m overlay.Metadata) bool {
			return containsFold(s.Title, needle) || containsFold(m.CustomName, needle)
		}, nil
	case "tag":
		return func(_ index.Session, m overlay.Metadata) bool {
			for _, t := range m.Tags {
				if containsFold(t, needle) {
					return true
				}
			}
			return false
		}, nil
	case "project":
		return func(s index.Session, _ overlay.Metadata) bool {
			return containsFold(s.Project, needle) || containsFold(s.ProjectName(), needle)
		}, nil
	case "content":
		return func(s index.Session, _ overlay.Metadata) bool {
			return containsFold(s.Preview, needle)
		}, nil
	case "date":
		r, err := parseDate(term, now)
		if err != nil {
			return nil, err
		}
		return func(s index.Session, _ overlay.Metadata) bool {
			return r.contains(s.LastActivity)
		}, nil
	case "regex":
		re, err := compileRegex(term)
		if err != nil {
			return nil, err
		}
		return func(s index.Session, m overlay.Metadata) bool {
			return re.MatchString(s.Title) || re.MatchString(s.Project) ||
				re.MatchString(s.Preview) || re.MatchString(m.CustomName)
		}, nil
	case "messages":
		r, err := parseCount(term)
		if err != nil {
			return nil, err
		}
		return func(s index.Session, _ overlay.Metadata) bool {
			return r.contains(s.MessageCount)
		}, nil
	}
	return freeText(needle), nil
}

func freeText(needle string) predicate {
	return func(s index.Session, m overlay.Metadata) bool {
		if containsFold(s.Title, needle) || containsFold(s.Project, needle) ||
			containsFold(s.Preview, needle) || containsFold(m.CustomName, needle) {
			return true
		}
		for _, t := range m.Tags {
			if containsFold(t, needle) {
				return true
			}
		}
		return false
	}
}

// containsFold expects needle already lower-cased.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func compileRegex(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, invalid("regex", pattern, err.Error())
	}
	return re, nil
}

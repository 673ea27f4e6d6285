// Package highlight marks free-text matches in rendered output, leaving
// ANSI escape sequences untouched.
package highlight

import (
	"regexp"
	"strings"
)

var ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

type Result struct {
	Text      string
	Count     int
	LineIndex []int
}

// Matcher finds case-insensitive occurrences of one term.
type Matcher struct {
	re *regexp.Regexp
}

// New returns nil for a blank term; a nil Matcher matches nothing.
func New(term string) *Matcher {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	return &Matcher{re: regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))}
}

// Plain wraps every match in s, which must not contain escape sequences.
func (m *Matcher) Plain(s string, wrap func(string) string) (string, int) {
	if m == nil || s == "" {
		return s, 0
	}
	count := 0
	out := m.re.ReplaceAllStringFunc(s, func(match string) string {
		count++
		return wrap(match)
	})
	return out, count
}

// ANSI wraps matches in the text runs between escape sequences. A match
// never spans a sequence.
func (m *Matcher) ANSI(s string, wrap func(string) string) (string, int) {
	if m == nil {
		return s, 0
	}
	indices := ansiCSI.FindAllStringIndex(s, -1)
	if len(indices) == 0 {
		return m.Plain(s, wrap)
	}

	var out strings.Builder
	total, pos := 0, 0
	for _, idx := range indices {
		text, n := m.Plain(s[pos:idx[0]], wrap)
		out.WriteString(text)
		out.WriteString(s[idx[0]:idx[1]])
		total += n
		pos = idx[1]
	}
	text, n := m.Plain(s[pos:], wrap)
	out.WriteString(text)
	return out.String(), total + n
}

// ApplyANSI highlights query across a multi-line rendered document and
// reports the lines that matched.
func ApplyANSI(input, query string, wrap func(string) string) Result {
	m := New(query)
	if m == nil {
		return Result{Text: input}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}

	var out strings.Builder
	res := Result{}
	for lineNo, line := range strings.SplitAfter(input, "\n") {
		core, hasNewline := strings.CutSuffix(line, "\n")
		rendered, n := m.ANSI(core, wrap)
		out.WriteString(rendered)
		if hasNewline {
			out.WriteByte('\n')
		}
		if n > 0 {
			res.LineIndex = append(res.LineIndex, lineNo)
			res.Count += n
		}
	}
	res.Text = out.String()
	return res
}

package index

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	previewLimit = 200
	titleLimit   = 80
	untitled     = "Untitled"
)

// parseTimestamp accepts RFC3339 strings, numeric strings and bare numbers.
// Numbers above 1e12 are treated as milliseconds.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, false
		}
		return parseTimestampString(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return time.Time{}, false
	}
	return fromEpoch(int64(f)), true
}

func parseTimestampString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromEpoch(i), true
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func fromEpoch(x int64) time.Time {
	if x > 1_000_000_000_000 {
		return time.UnixMilli(x)
	}
	return time.Unix(x, 0)
}

// collapseWhitespace folds newlines and runs of spaces into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func previewFrom(text string) string {
	return truncateRunes(collapseWhitespace(text), previewLimit)
}

// titleFrom picks the first non-empty line of text.
func titleFrom(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = collapseWhitespace(line)
		if line != "" {
			return truncateRunes(line, titleLimit)
		}
	}
	return ""
}

// timeSpan tracks the earliest and latest timestamps seen.
type timeSpan struct {
	first, last time.Time
}

func (t *timeSpan) observe(ts time.Time) {
	if ts.IsZero() {
		return
	}
	if t.first.IsZero() || ts.Before(t.first) {
		t.first = ts
	}
	if t.last.IsZero() || ts.After(t.last) {
		t.last = ts
	}
}

func (t timeSpan) apply(s *Session, now time.Time) {
	if t.last.IsZero() {
		s.LastActivity = now
	} else {
		s.LastActivity = t.last
	}
	if !t.first.IsZero() {
		first := t.first
		s.FirstTimestamp = &first
	}
}

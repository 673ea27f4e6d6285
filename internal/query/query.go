// Package query filters and orders a session collection against the search
// box: overlay flags, an optional selected tag and the operator language.
package query

import (
	"strings"
	"time"

	"cmdtrace/internal/index"
	"cmdtrace/internal/overlay"
)

// MetadataSource looks up overlay state by session ID. overlay.State and
// overlay.Map both satisfy it.
type MetadataSource interface {
	Metadata(id string) overlay.Metadata
}

// Request is one filter pass. Now anchors relative dates and supplies the
// location calendar days are evaluated in; the zero value means time.Now().
type Request struct {
	Search        string
	Tag           string
	ShowArchived  bool
	FavoritesOnly bool
	Now           time.Time
}

// Result is the ordered visible subset. Highlight is set only for free-text
// searches. Err carries an INVALID_QUERY error when the search text could
// not be parsed; Sessions is empty in that case.
type Result struct {
	Sessions  []index.Session
	Highlight string
	Err       error
}

// Filter narrows sessions through archived exclusion, favorites, the
// selected tag and finally the search text, then sorts the survivors.
// It performs no I/O.
func Filter(sessions []index.Session, req Request, meta MetadataSource) Result {
	if meta == nil {
		meta = overlay.Map(nil)
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	var match predicate
	var res Result
	if search := strings.TrimSpace(req.Search); search != "" {
		op, err := Parse(search, req.Now)
		if err != nil {
			return Result{Sessions: []index.Session{}, Err: err}
		}
		match = op.match
		res.Highlight = op.highlight
	}

	out := make([]index.Session, 0, len(sessions))
	for _, s := range sessions {
		m := meta.Metadata(s.ID)
		if m.Archived && !req.ShowArchived {
			continue
		}
		if req.FavoritesOnly && !m.Favorite {
			continue
		}
		if req.Tag != "" && !m.HasTag(req.Tag) {
			continue
		}
		if match != nil && !match(s, m) {
			continue
		}
		out = append(out, s)
	}
	Sort(out, meta)
	res.Sessions = out
	return res
}

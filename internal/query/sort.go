package query

import (
	"sort"

	"cmdtrace/internal/index"
)

// Sort orders sessions in place: pinned first, then most recent activity.
// Equal keys keep their input order.
func Sort(sessions []index.Session, meta MetadataSource) {
	pinned := make(map[string]bool, len(sessions))
	if meta != nil {
		for _, s := range sessions {
			if meta.Metadata(s.ID).Pinned {
				pinned[s.ID] = true
			}
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if pinned[a.ID] != pinned[b.ID] {
			return pinned[a.ID]
		}
		return a.LastActivity.After(b.LastActivity)
	})
}

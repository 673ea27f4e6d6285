package aggregate

import (
	"sort"
	"time"

	"cmdtrace/internal/index"
)

// ProjectStats summarizes the sessions sharing one project path.
type ProjectStats struct {
	Project       string    `json:"project"`
	Name          string    `json:"name"`
	Sessions      int       `json:"sessions"`
	TotalMessages int       `json:"total_messages"`
	FirstActivity time.Time `json:"first_activity"`
	LastActivity  time.Time `json:"last_activity"`
	ActiveDays    int       `json:"active_days"`
}

// MeanMessages is the average message count per session.
func (p ProjectStats) MeanMessages() float64 {
	if p.Sessions == 0 {
		return 0
	}
	return float64(p.TotalMessages) / float64(p.Sessions)
}

// Projects groups sessions by exact project path. Calendar days are counted
// in loc (time.Local when nil). Results are ordered by latest activity, most
// recent first, with ties broken by path.
func Projects(sessions []index.Session, loc *time.Location) []ProjectStats {
	if loc == nil {
		loc = time.Local
	}
	type acc struct {
		stats ProjectStats
		days  map[string]struct{}
	}
	groups := make(map[string]*acc)
	for _, s := range sessions {
		g, ok := groups[s.Project]
		if !ok {
			g = &acc{
				stats: ProjectStats{
					Project:       s.Project,
					Name:          s.ProjectName(),
					FirstActivity: earliest(s),
					LastActivity:  s.LastActivity,
				},
				days: make(map[string]struct{}),
			}
			groups[s.Project] = g
		}
		g.stats.Sessions++
		g.stats.TotalMessages += s.MessageCount
		if e := earliest(s); e.Before(g.stats.FirstActivity) {
			g.stats.FirstActivity = e
		}
		if s.LastActivity.After(g.stats.LastActivity) {
			g.stats.LastActivity = s.LastActivity
		}
		g.days[s.LastActivity.In(loc).Format(time.DateOnly)] = struct{}{}
	}

	out := make([]ProjectStats, 0, len(groups))
	for _, g := range groups {
		g.stats.ActiveDays = len(g.days)
		out = append(out, g.stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.After(out[j].LastActivity)
		}
		return out[i].Project < out[j].Project
	})
	return out
}

func earliest(s index.Session) time.Time {
	if s.FirstTimestamp != nil && s.FirstTimestamp.Before(s.LastActivity) {
		return *s.FirstTimestamp
	}
	return s.LastActivity
}

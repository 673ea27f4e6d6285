package ui

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	apperrors "cmdtrace/internal/errors"
	"cmdtrace/internal/index"
	"cmdtrace/internal/library"
	"cmdtrace/internal/overlay"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type stubLoader struct {
	sessions map[index.SourceKind][]index.Session
}

func (l stubLoader) Load(_ context.Context, kind index.SourceKind) ([]index.Session, error) {
	if s, ok := l.sessions[kind]; ok {
		return s, nil
	}
	return nil, errors.New("no such source")
}

func (l stubLoader) Kinds() []index.SourceKind { return index.Kinds }

func claudeSessions() []index.Session {
	return []index.Session{
		{ID: "c1", Source: index.SourceClaude, Title: "refactor parser", Project: "/w/alpha", MessageCount: 4, LastActivity: testNow.Add(-1 * time.Hour)},
		{ID: "c2", Source: index.SourceClaude, Title: "fix login bug", Project: "/w/beta", MessageCount: 12, LastActivity: testNow.Add(-2 * time.Hour)},
		{ID: "c3", Source: index.SourceClaude, Title: "write docs", Project: "/w/alpha", MessageCount: 2, LastActivity: testNow.Add(-3 * time.Hour)},
	}
}

func newTestModel(t *testing.T, ov *overlay.State) (Model, *library.Library) {
	t.Helper()
	lib := library.New(stubLoader{sessions: map[index.SourceKind][]index.Session{
		index.SourceClaude:   claudeSessions(),
		index.SourceOpenCode: {{ID: "p/o1", Source: index.SourceOpenCode, Title: "opencode run", LastActivity: testNow}},
	}}, index.SourceClaude)
	m := NewModel(Options{
		Library: lib,
		Overlay: ov,
		Now:     func() time.Time { return testNow },
	})
	m = step(t, m, tea.WindowSizeMsg{Width: 140, Height: 40})
	m = step(t, m, sessionsMsg{ticket: m.ticket, sessions: claudeSessions()})
	return m, lib
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return out
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		m = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
	}
	return m
}

func visibleIDs(m Model) []string {
	out := make([]string, 0, len(m.visible))
	for _, s := range m.visible {
		out = append(out, s.ID)
	}
	return out
}

func TestLoadShowsNewestFirst(t *testing.T) {
	m, _ := newTestModel(t, overlay.New())
	if m.loading {
		t.Fatalf("expected loading to finish")
	}
	got := visibleIDs(m)
	want := []string{"c1", "c2", "c3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("visible mismatch: got=%v want=%v", got, want)
	}
	if m.selectedID != "c1" {
		t.Fatalf("expected first session selected, got %q", m.selectedID)
	}
}

func TestPinMovesSessionToTop(t *testing.T) {
	m, _ := newTestModel(t, overlay.New())
	m = press(t, m, "j", "j")
	if m.selectedID != "c3" {
		t.Fatalf("expected c3 selected after moving down, got %q", m.selectedID)
	}
	m = press(t, m, "p")
	got := visibleIDs(m)
	want := []string{"c3", "c1", "c2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pinned order mismatch: got=%v want=%v", got, want)
	}
	if m.selectedID != "c3" {
		t.Fatalf("selection should follow the pinned session, got %q", m.selectedID)
	}
	if !m.overlay.Metadata("c3").Pinned {
		t.Fatalf("expected overlay to record the pin")
	}
}

func TestArchiveHidesSessionUntilShown(t *testing.T) {
	m, _ := newTestModel(t, overlay.New())
	m = press(t, m, "a")
	if got := visibleIDs(m); !reflect.DeepEqual(got, []string{"c2", "c3"}) {
		t.Fatalf("archived session still visible: %v", got)
	}
	if m.overlay.Metadata("c1").ArchivedAt == nil {
		t.Fatalf("expected archive timestamp")
	}
	m = press(t, m, "A")
	if got := visibleIDs(m); len(got) != 3 {
		t.Fatalf("show-archived should reveal all sessions, got %v", got)
	}
}

func TestFavoritesOnly(t *testing.T) {
	m, _ := newTestModel(t, overlay.New())
	m = press(t, m, "j", "f", "F")
	if got := visibleIDs(m); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Fatalf("favorites filter mismatch: %v", got)
	}
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	m, _ := newTestModel(t, overlay.New())
	stale := m.ticket

	m = press(t, m, "s")
	if m.source != index.SourceOpenCode {
		t.Fatalf("expected opencode to be active, got %s", m.source)
	}
	if !m.loading || len(m.all) != 0 {
		t.Fatalf("uncached switch should clear and load: loading=%v all=%d", m.loading, len(m.all))
	}

	m = step(t, m, sessionsMsg{ticket: stale, sessions: claudeSessions()})
	if len(m.all) != 0 {
		t.Fatalf("stale result was applied: %d sessions", len(m.all))
	}
}

func TestSwitchUsesCachedSessions(t *testing.T) {
	m, lib := newTestModel(t, overlay.New())
	lib.Cache().Put(index.SourceOpenCode, []index.Session{{ID: "p/o1", Source: index.SourceOpenCode, LastActivity: testNow}})

	m = press(t, m, "s")
	if m.loading {
		t.Fatalf("cached switch should not show loading")
	}
	if got := visibleIDs(m); !reflect.DeepEqual(got, []string{"p/o1"}) {
		t.Fatalf("cached sessions not shown: %v", got)
	}
}

func TestSearchFiltersWhileTyping(t *testing.T) {
	m, _ := newTestModel(t, overlay.New())
	m = press(t, m, "/", "l", "o", "g")
	if !m.searchMode {
		t.Fatalf("expected search mode")
	}
	if got := visibleIDs(m); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Fatalf("search mismatch: %v", got)
	}
	if m.highlightTerm != "log" {
		t.Fatalf("expected highlight term %q, got %q", "log", m.highlightTerm)
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.searchMode || m.searchQuery != "" || len(m.visible) != 3 {
		t.Fatalf("esc should clear search: mode=%v query=%q visible=%d", m.searchMode, m.searchQuery, len(m.visible))
	}
}

func TestInvalidQuerySetsError(t *testing.T) {
	m, _ := newTestModel(t, overlay.New())
	m.searchQuery = "regex:("
	m.applyFilter()
	if !apperrors.Is(m.err, apperrors.ErrCodeInvalidQuery) {
		t.Fatalf("expected invalid query error, got %v", m.err)
	}
	if len(m.visible) != 0 {
		t.Fatalf("invalid query should show nothing, got %v", visibleIDs(m))
	}

	m.searchQuery = "regex:parser"
	m.applyFilter()
	if m.err != nil {
		t.Fatalf("error should clear once the query parses: %v", m.err)
	}
	if got := visibleIDs(m); !reflect.DeepEqual(got, []string{"c1"}) {
		t.Fatalf("regex mismatch: %v", got)
	}
}

func TestCycleTagFilter(t *testing.T) {
	ov := overlay.New()
	ctx := context.Background()
	if _, err := ov.AddTag(ctx, "c1", "backend"); err != nil {
		t.Fatalf("add tag: %v", err)
	}
	if _, err := ov.AddTag(ctx, "c3", "docs"); err != nil {
		t.Fatalf("add tag: %v", err)
	}
	for _, name := range []string{"backend", "docs"} {
		tag, _ := ov.Tag(name)
		tag.Important = true
		if err := ov.PutTag(ctx, tag); err != nil {
			t.Fatalf("put tag: %v", err)
		}
	}
	m, _ := newTestModel(t, ov)
	m.cfg.TagSort = "alphabetical"

	m = press(t, m, "t")
	if m.tagFilter != "backend" {
		t.Fatalf("expected backend filter, got %q", m.tagFilter)
	}
	if got := visibleIDs(m); !reflect.DeepEqual(got, []string{"c1"}) {
		t.Fatalf("tag filter mismatch: %v", got)
	}
	m = press(t, m, "t")
	if m.tagFilter != "docs" {
		t.Fatalf("expected docs filter, got %q", m.tagFilter)
	}
	m = press(t, m, "t")
	if m.tagFilter != "" || len(m.visible) != 3 {
		t.Fatalf("third press should clear the filter: %q %d", m.tagFilter, len(m.visible))
	}
}

func TestRelativeTime(t *testing.T) {
	cases := map[time.Duration]string{
		30 * time.Second: "just now",
		5 * time.Minute:  "5m ago",
		3 * time.Hour:    "3h ago",
		49 * time.Hour:   "2d ago",
	}
	for d, want := range cases {
		if got := relativeTime(testNow.Add(-d), testNow); got != want {
			t.Fatalf("relativeTime(%s) = %q, want %q", d, got, want)
		}
	}
}

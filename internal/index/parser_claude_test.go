package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "cmdtrace/internal/errors"
)

var fixedNow = time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func loadClaude(t *testing.T, root string, diag Diagnostics) []Session {
	t.Helper()
	l := NewClaudeLoader(root, []string{"agent-*"}, Options{Diagnostics: diag, Now: func() time.Time { return fixedNow }})
	sessions, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return sessions
}

func TestParseClaudeFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "-tmp-proj", "abc-123.jsonl")
	writeFile(t, path, lines(
		`{"type":"file-history-snapshot","timestamp":"2026-01-15T10:29:00Z"}`,
		`{"type":"user","sessionId":"abc-123","timestamp":"2026-01-15T10:30:00Z","cwd":"/tmp/proj","message":{"role":"user","content":"hello   world\nsecond line"}}`,
		`{"type":"assistant","sessionId":"abc-123","timestamp":"2026-01-15T10:31:00Z","cwd":"/tmp/proj","message":{"role":"assistant","content":[{"type":"text","text":"Let me check."},{"type":"tool_use","name":"Read","id":"t1","input":{}}]}}`,
		`{"type":"user","sessionId":"abc-123","timestamp":"2026-01-15T10:32:00Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"file contents"}]}}`,
	))

	s, err := parseClaudeFile(path, "-tmp-proj", fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID != "-tmp-proj/abc-123" {
		t.Errorf("ID=%q", s.ID)
	}
	if s.SessionID != "abc-123" {
		t.Errorf("SessionID=%q", s.SessionID)
	}
	if s.Project != "/tmp/proj" {
		t.Errorf("Project=%q", s.Project)
	}
	if s.Preview != "hello world second line" {
		t.Errorf("Preview=%q", s.Preview)
	}
	if s.Title != "hello world" {
		t.Errorf("Title=%q", s.Title)
	}
	if s.MessageCount != 3 {
		t.Errorf("MessageCount=%d, want 3", s.MessageCount)
	}
	if want := time.Date(2026, 1, 15, 10, 32, 0, 0, time.UTC); !s.LastActivity.Equal(want) {
		t.Errorf("LastActivity=%v, want %v", s.LastActivity, want)
	}
	if s.FirstTimestamp == nil || !s.FirstTimestamp.Equal(time.Date(2026, 1, 15, 10, 29, 0, 0, time.UTC)) {
		t.Errorf("FirstTimestamp=%v", s.FirstTimestamp)
	}
	if s.Locator.Path() != path {
		t.Errorf("Locator=%q", s.Locator.Path())
	}
}

func TestParseClaudeFileSummaryTitleAndFallbacks(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "-Users-eric-projects-foo", "4256a303-4485-4516-8565-464a3379e0fa.jsonl")
	writeFile(t, path, lines(
		`{"type":"summary","summary":"Fix login\nbug","leafUuid":"x"}`,
		`{"type":"user","isMeta":true,"message":{"role":"user","content":"<local-command-caveat>ignore</local-command-caveat>"}}`,
		`{"type":"user","message":{"role":"user","content":[{"type":"text","text":"real question"}]}}`,
	))

	s, err := parseClaudeFile(path, "-Users-eric-projects-foo", fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Title != "Fix login bug" {
		t.Errorf("Title=%q", s.Title)
	}
	if s.SessionID != "4256a303-4485-4516-8565-464a3379e0fa" {
		t.Errorf("SessionID=%q, want filename stem", s.SessionID)
	}
	if s.Project != "/Users/eric/projects/foo" {
		t.Errorf("Project=%q, want decoded directory", s.Project)
	}
	if s.Preview != "real question" {
		t.Errorf("Preview=%q", s.Preview)
	}
	if !s.LastActivity.Equal(fixedNow) {
		t.Errorf("LastActivity=%v, want now when no timestamps", s.LastActivity)
	}
	if s.FirstTimestamp != nil {
		t.Errorf("FirstTimestamp=%v, want nil", s.FirstTimestamp)
	}
}

func TestParseClaudeFileTruncatesPreview(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "p", "s.jsonl")
	long := strings.Repeat("é", 250)
	writeFile(t, path, lines(`{"type":"user","message":{"role":"user","content":"`+long+`"}}`))

	s, err := parseClaudeFile(path, "p", fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len([]rune(s.Preview)); got != 200 {
		t.Fatalf("preview runes=%d, want 200", got)
	}
}

func TestClaudeLoaderSkipsMalformedAndEmpty(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "proj", "good.jsonl"), lines(
		`not json at all`,
		`{"type":"user","sessionId":"good","timestamp":"2026-01-10T00:00:00Z","message":{"role":"user","content":"hi"}}`,
		`{"type":"assistant","sessionId":"good","timestamp":"2026-01-10T00:01:00Z","message":{"role":"assistant","content":[]}}`,
	))
	writeFile(t, filepath.Join(root, "proj", "noise.jsonl"), lines(
		`{"type":"progress","sessionId":"noise"}`,
		`garbage`,
	))
	writeFile(t, filepath.Join(root, "proj", "agent-1234.jsonl"), lines(
		`{"type":"user","sessionId":"agent","message":{"role":"user","content":"sub agent"}}`,
	))
	writeFile(t, filepath.Join(root, "proj", "subagents", "x.jsonl"), lines(
		`{"type":"user","sessionId":"nested","message":{"role":"user","content":"nested"}}`,
	))
	writeFile(t, filepath.Join(root, "notes.txt"), "top-level file is ignored")

	sessions := loadClaude(t, root, nil)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d: %#v", len(sessions), sessions)
	}
	if sessions[0].ID != "proj/good" || sessions[0].MessageCount != 2 {
		t.Fatalf("unexpected session: %#v", sessions[0])
	}
}

func TestClaudeLoaderReportsUnreadableFiles(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "proj", "ok.jsonl"), lines(`{"type":"user","message":{"role":"user","content":"a"}}`))
	bad := filepath.Join(root, "proj", "locked.jsonl")
	writeFile(t, bad, lines(`{"type":"user","message":{"role":"user","content":"b"}}`))
	if err := os.Chmod(bad, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	counter := &SkipCounter{}
	sessions := loadClaude(t, root, counter)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if counter.Count() != 1 || counter.Paths()[0] != bad {
		t.Fatalf("expected locked file to be reported, got %v", counter.Paths())
	}
}

func TestClaudeLoaderOrdersByRecency(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p", "old.jsonl"), lines(`{"type":"user","timestamp":"2025-01-01T00:00:00Z","message":{"role":"user","content":"a"}}`))
	writeFile(t, filepath.Join(root, "p", "new.jsonl"), lines(`{"type":"user","timestamp":"2025-03-01T00:00:00Z","message":{"role":"user","content":"b"}}`))
	writeFile(t, filepath.Join(root, "q", "mid.jsonl"), lines(`{"type":"user","timestamp":"2025-02-01T00:00:00Z","message":{"role":"user","content":"c"}}`))

	sessions := loadClaude(t, root, nil)
	got := make([]string, 0, len(sessions))
	for _, s := range sessions {
		got = append(got, s.ID)
	}
	want := []string{"p/new", "q/mid", "p/old"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("order=%v, want %v", got, want)
	}
}

func TestClaudeLoaderMissingRoot(t *testing.T) {
	sessions := loadClaude(t, filepath.Join(t.TempDir(), "missing"), nil)
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
}

func TestClaudeLoaderUnreadableRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "projects")
	writeFile(t, root, "a file where a directory should be")

	l := NewClaudeLoader(root, nil, Options{})
	_, err := l.Load(context.Background())
	if err == nil {
		t.Fatal("expected error for unreadable root")
	}
	if !apperrors.Is(err, apperrors.ErrCodeSourceInaccessible) {
		t.Fatalf("expected SOURCE_INACCESSIBLE, got %v", err)
	}
}

func TestClaudeLoaderHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "p", "a.jsonl"), lines(`{"type":"user","message":{"role":"user","content":"a"}}`))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClaudeLoader(root, nil, Options{}).Load(ctx)
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestContentText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"  plain  "`, "plain"},
		{`[{"type":"text","text":"a"},{"type":"image"},{"type":"text","text":" b "}]`, "a\nb"},
		{`[{"type":"tool_result","content":"x"}]`, ""},
		{`42`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := contentText([]byte(tt.raw)); got != tt.want {
			t.Errorf("contentText(%s)=%q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestWorkdirFromClaudePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/user/.claude/projects/-Users-eric-projects-foo/abc.jsonl", "/Users/eric/projects/foo"},
		{"/home/user/.claude/projects/noprefix/abc.jsonl", ""},
		{"/home/user/.claude/projects/abc.jsonl", ""},
	}
	for _, tt := range tests {
		got := workdirFromClaudePath(tt.path)
		if got != tt.want {
			t.Errorf("workdirFromClaudePath(%q)=%q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{`"2026-01-15T10:30:00.500Z"`, time.Date(2026, 1, 15, 10, 30, 0, 500_000_000, time.UTC), true},
		{`1700000000`, time.Unix(1700000000, 0), true},
		{`1700000000123`, time.UnixMilli(1700000000123), true},
		{`"1700000000"`, time.Unix(1700000000, 0), true},
		{`"yesterday"`, time.Time{}, false},
		{`null`, time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseTimestamp([]byte(tt.raw))
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%s)=(%v,%v), want (%v,%v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

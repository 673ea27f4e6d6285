package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	kind     SourceKind
	sessions []Session
	err      error
}

func (s stubLoader) Kind() SourceKind { return s.kind }
func (s stubLoader) Root() string     { return "/stub/" + string(s.kind) }
func (s stubLoader) Load(context.Context) ([]Session, error) {
	return s.sessions, s.err
}

func TestSourcesDispatch(t *testing.T) {
	boom := errors.New("boom")
	src := NewSources(
		stubLoader{kind: SourceOpenCode, err: boom},
		stubLoader{kind: SourceClaude, sessions: []Session{{ID: "a"}}},
	)

	assert.Equal(t, []SourceKind{SourceClaude, SourceOpenCode}, src.Kinds())

	got, err := src.Load(context.Background(), SourceClaude)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = src.Load(context.Background(), SourceOpenCode)
	assert.ErrorIs(t, err, boom)

	_, err = src.Load(context.Background(), SourceKind("cursor"))
	assert.Error(t, err)

	root, ok := src.Root(SourceClaude)
	assert.True(t, ok)
	assert.Equal(t, "/stub/claude", root)
}

func TestFinalizeDropsEmptyAndSorts(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	in := []Session{
		{ID: "b", MessageCount: 1, LastActivity: base},
		{ID: "empty", MessageCount: 0, LastActivity: base.Add(time.Hour)},
		{ID: "c", MessageCount: 4, LastActivity: base.Add(2 * time.Hour)},
		{ID: "a", MessageCount: 2, LastActivity: base},
	}
	out := finalize(in)
	ids := make([]string, 0, len(out))
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestParseSourceKind(t *testing.T) {
	k, err := ParseSourceKind("opencode")
	require.NoError(t, err)
	assert.Equal(t, SourceOpenCode, k)

	_, err = ParseSourceKind("codex")
	assert.Error(t, err)
}

func TestSessionProjectName(t *testing.T) {
	assert.Equal(t, "app", Session{Project: "/work/app"}.ProjectName())
	assert.Equal(t, "", Session{}.ProjectName())
	assert.Equal(t, "/", Session{Project: "/"}.ProjectName())
	assert.Equal(t, filepath.Join("/d", "f.jsonl"), Locator{Dir: "/d", File: "f.jsonl"}.Path())
}

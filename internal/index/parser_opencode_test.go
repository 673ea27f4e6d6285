package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type openCodeFixture struct {
	root string
	t    *testing.T
}

func newOpenCodeFixture(t *testing.T) *openCodeFixture {
	return &openCodeFixture{root: filepath.Join(t.TempDir(), "storage"), t: t}
}

func (f *openCodeFixture) info(project, session, body string) {
	writeFile(f.t, filepath.Join(f.root, "session", project, session+".json"), body)
}

func (f *openCodeFixture) message(session, id, body string) {
	writeFile(f.t, filepath.Join(f.root, "message", session, id+".json"), body)
}

func (f *openCodeFixture) part(message, id, body string) {
	writeFile(f.t, filepath.Join(f.root, "part", message, id+".json"), body)
}

func (f *openCodeFixture) load(diag Diagnostics) []Session {
	l := NewOpenCodeLoader(f.root, Options{Diagnostics: diag, Now: func() time.Time { return fixedNow }})
	sessions, err := l.Load(context.Background())
	require.NoError(f.t, err)
	return sessions
}

func TestOpenCodeLoader(t *testing.T) {
	f := newOpenCodeFixture(t)
	f.info("proj1", "ses_a", `{"id":"ses_a","projectID":"proj1","title":"Refactor parser","directory":"/work/app","time":{"created":1736899200000,"updated":1736899500000}}`)
	f.message("ses_a", "msg_2", `{"id":"msg_2","sessionID":"ses_a","role":"assistant","time":{"created":1736899260000,"completed":1736899300000}}`)
	f.message("ses_a", "msg_1", `{"id":"msg_1","sessionID":"ses_a","role":"user","time":{"created":1736899200000},"path":{"cwd":"/work/app/sub","root":"/work/app"}}`)
	f.message("ses_a", "msg_3", `{"id":"msg_3","sessionID":"ses_a","role":"user","time":{"created":1736899400000}}`)
	f.part("msg_1", "prt_1", `{"id":"prt_1","messageID":"msg_1","type":"text","text":"<system-reminder>injected</system-reminder>","synthetic":true}`)
	f.part("msg_1", "prt_2", `{"id":"prt_2","messageID":"msg_1","type":"text","text":"please refactor"}`)
	f.part("msg_1", "prt_3", `{"id":"prt_3","messageID":"msg_1","type":"file","url":"file:///x"}`)
	f.part("msg_1", "prt_4", `{"id":"prt_4","messageID":"msg_1","type":"text","text":"the parser"}`)
	f.part("msg_3", "prt_9", `{"id":"prt_9","messageID":"msg_3","type":"text","text":"later question"}`)

	sessions := f.load(nil)
	require.Len(t, sessions, 1)
	s := sessions[0]

	assert.Equal(t, "proj1/ses_a", s.ID)
	assert.Equal(t, "ses_a", s.SessionID)
	assert.Equal(t, SourceOpenCode, s.Source)
	assert.Equal(t, "Refactor parser", s.Title)
	assert.Equal(t, "/work/app/sub", s.Project)
	assert.Equal(t, "please refactor the parser", s.Preview)
	assert.Equal(t, 3, s.MessageCount)
	assert.True(t, s.LastActivity.Equal(time.UnixMilli(1736899400000)))
	require.NotNil(t, s.FirstTimestamp)
	assert.True(t, s.FirstTimestamp.Equal(time.UnixMilli(1736899200000)))
	assert.Equal(t, filepath.Join(f.root, "message", "ses_a"), s.Locator.Dir)
}

func TestOpenCodeLoaderWithoutInfo(t *testing.T) {
	f := newOpenCodeFixture(t)
	f.message("ses_b", "msg_1", `{"id":"msg_1","role":"user","time":{"created":1736899200000}}`)
	f.part("msg_1", "prt_1", `{"type":"text","text":"first line\nsecond line"}`)

	sessions := f.load(nil)
	require.Len(t, sessions, 1)
	assert.Equal(t, "global/ses_b", sessions[0].ID)
	assert.Equal(t, "first line", sessions[0].Title)
	assert.Equal(t, "", sessions[0].Project)
}

func TestOpenCodeLoaderSkipsBadFilesAndEmptySessions(t *testing.T) {
	f := newOpenCodeFixture(t)
	f.message("ses_ok", "msg_1", `{"id":"msg_1","role":"user","time":{"created":1736899200000}}`)
	f.message("ses_ok", "msg_2", `{broken`)
	f.message("ses_empty", "msg_1", `{"id":"msg_1","role":"system","time":{"created":1736899200000}}`)
	f.info("p", "ses_ok", `not json`)

	counter := &SkipCounter{}
	sessions := f.load(counter)
	require.Len(t, sessions, 1)
	assert.Equal(t, "ses_ok", sessions[0].SessionID)
	assert.Equal(t, 1, sessions[0].MessageCount)
	assert.Equal(t, 2, counter.Count())
}

func TestOpenCodeLoaderMissingRoots(t *testing.T) {
	f := newOpenCodeFixture(t)
	assert.Empty(t, f.load(nil))

	writeFile(t, filepath.Join(f.root, "session", "p", "ses.json"), `{}`)
	assert.Empty(t, f.load(nil), "storage without message dir is empty, not an error")
}

package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// OpenCodeLoader reads OpenCode's sharded storage:
//
//	storage/session/<projectID>/<sessionID>.json   session info (title, directory)
//	storage/message/<sessionID>/<messageID>.json   one file per message
//	storage/part/<messageID>/<partID>.json         message text parts
type OpenCodeLoader struct {
	Dir string
	Options
}

func NewOpenCodeLoader(dir string, opts Options) *OpenCodeLoader {
	return &OpenCodeLoader{Dir: dir, Options: opts}
}

func (l *OpenCodeLoader) Kind() SourceKind { return SourceOpenCode }
func (l *OpenCodeLoader) Root() string     { return l.Dir }

const globalProject = "global"

type openCodeInfo struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectID"`
	Title     string `json:"title"`
	Directory string `json:"directory"`
	Time      struct {
		Created int64 `json:"created"`
		Updated int64 `json:"updated"`
	} `json:"time"`
}

type openCodeMessage struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionID"`
	Role      string `json:"role"`
	Time      struct {
		Created   int64 `json:"created"`
		Completed int64 `json:"completed"`
	} `json:"time"`
	Path struct {
		CWD  string `json:"cwd"`
		Root string `json:"root"`
	} `json:"path"`
}

type openCodePart struct {
	ID        string `json:"id"`
	MessageID string `json:"messageID"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	Synthetic bool   `json:"synthetic"`
}

func (l *OpenCodeLoader) Load(ctx context.Context) ([]Session, error) {
	if _, ok, err := readRoot(SourceOpenCode, l.Dir); err != nil || !ok {
		return nil, err
	}
	messageRoot := filepath.Join(l.Dir, "message")
	entries, ok, err := readRoot(SourceOpenCode, messageRoot)
	if err != nil || !ok {
		return nil, err
	}

	diag := l.diag()
	infos := l.readInfos(diag)
	partRoot := filepath.Join(l.Dir, "part")

	dirs := discoverOpenCodeSessions(entries, messageRoot)
	sessions := make([]Session, 0, len(dirs))
	for _, dir := range dirs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		info := infos[filepath.Base(dir)]
		s, err := parseOpenCodeSession(dir, partRoot, info, l.now(), diag)
		if err != nil {
			diag.Skipped(SourceOpenCode, dir, err)
			continue
		}
		sessions = append(sessions, s)
	}
	return finalize(sessions), nil
}

// readInfos indexes storage/session/*/*.json by session id. Missing or
// unreadable info files only cost the session its title.
func (l *OpenCodeLoader) readInfos(diag Diagnostics) map[string]openCodeInfo {
	infos := make(map[string]openCodeInfo)
	sessionRoot := filepath.Join(l.Dir, "session")
	projects, err := os.ReadDir(sessionRoot)
	if err != nil {
		return infos
	}
	for _, p := range projects {
		if !isDirOrSymlink(p, sessionRoot) {
			continue
		}
		projDir := filepath.Join(sessionRoot, p.Name())
		names, err := jsonFiles(projDir)
		if err != nil {
			diag.Skipped(SourceOpenCode, projDir, err)
			continue
		}
		for _, name := range names {
			path := filepath.Join(projDir, name)
			var info openCodeInfo
			if err := readJSON(path, &info); err != nil {
				diag.Skipped(SourceOpenCode, path, err)
				continue
			}
			if info.ID == "" {
				info.ID = strings.TrimSuffix(name, ".json")
			}
			if info.ProjectID == "" {
				info.ProjectID = p.Name()
			}
			infos[info.ID] = info
		}
	}
	return infos
}

func parseOpenCodeSession(dir, partRoot string, info openCodeInfo, now time.Time, diag Diagnostics) (Session, error) {
	names, err := jsonFiles(dir)
	if err != nil {
		return Session{}, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]openCodeMessage, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		var m openCodeMessage
		if err := readJSON(path, &m); err != nil {
			diag.Skipped(SourceOpenCode, path, err)
			continue
		}
		if m.ID == "" {
			m.ID = strings.TrimSuffix(name, ".json")
		}
		msgs = append(msgs, m)
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Time.Created != msgs[j].Time.Created {
			return msgs[i].Time.Created < msgs[j].Time.Created
		}
		return msgs[i].ID < msgs[j].ID
	})

	var (
		count     int
		cwd       string
		firstUser string
		seenUser  bool
		span      timeSpan
	)
	for _, m := range msgs {
		if m.Time.Created > 0 {
			span.observe(time.UnixMilli(m.Time.Created))
		}
		if m.Time.Completed > 0 {
			span.observe(time.UnixMilli(m.Time.Completed))
		}
		if cwd == "" {
			cwd = strings.TrimSpace(m.Path.CWD)
		}
		switch m.Role {
		case "user":
			if !seenUser {
				seenUser = true
				firstUser = readPartText(filepath.Join(partRoot, m.ID), diag)
			}
			count++
		case "assistant":
			count++
		}
	}
	if span.last.IsZero() && info.Time.Updated > 0 {
		span.observe(time.UnixMilli(info.Time.Updated))
	}
	if cwd == "" {
		cwd = info.Directory
	}

	sessionID := filepath.Base(dir)
	project := info.ProjectID
	if project == "" {
		project = globalProject
	}

	title := collapseWhitespace(info.Title)
	if title == "" {
		title = titleFrom(firstUser)
	}
	if title == "" {
		title = untitled
	}

	s := Session{
		ID:           composeID(project, sessionID),
		SessionID:    sessionID,
		Source:       SourceOpenCode,
		Title:        truncateRunes(title, titleLimit),
		Project:      cwd,
		Preview:      previewFrom(firstUser),
		MessageCount: count,
		Locator:      Locator{Dir: dir},
	}
	span.apply(&s, now)
	return s, nil
}

// readPartText joins the real text parts of one message, skipping parts the
// client injected on the user's behalf.
func readPartText(dir string, diag Diagnostics) string {
	names, err := jsonFiles(dir)
	if err != nil {
		return ""
	}
	var parts []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		var p openCodePart
		if err := readJSON(path, &p); err != nil {
			diag.Skipped(SourceOpenCode, path, err)
			continue
		}
		if p.Type != "text" || p.Synthetic {
			continue
		}
		if text := strings.TrimSpace(p.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

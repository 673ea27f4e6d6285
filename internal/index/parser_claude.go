package index

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ClaudeLoader reads Claude Code transcripts: <root>/<project>/<session>.jsonl.
type ClaudeLoader struct {
	Dir     string
	Exclude []string
	Options
}

func NewClaudeLoader(dir string, exclude []string, opts Options) *ClaudeLoader {
	return &ClaudeLoader{Dir: dir, Exclude: exclude, Options: opts}
}

func (l *ClaudeLoader) Kind() SourceKind { return SourceClaude }
func (l *ClaudeLoader) Root() string     { return l.Dir }

func (l *ClaudeLoader) Load(ctx context.Context) ([]Session, error) {
	entries, ok, err := readRoot(SourceClaude, l.Dir)
	if err != nil || !ok {
		return nil, err
	}

	diag := l.diag()
	files := discoverClaudeFiles(entries, l.Dir, l.Exclude, diag)
	sessions := make([]Session, 0, len(files))
	for _, f := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		s, err := parseClaudeFile(f.Path, f.ProjectDir, l.now())
		if err != nil {
			diag.Skipped(SourceClaude, f.Path, err)
			continue
		}
		sessions = append(sessions, s)
	}
	return finalize(sessions), nil
}

// claudeRecord is one JSONL line. Every field is optional.
type claudeRecord struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	CWD       string          `json:"cwd"`
	Timestamp json.RawMessage `json:"timestamp"`
	Summary   string          `json:"summary"`
	IsMeta    bool            `json:"isMeta"`
	Message   *claudeMessage  `json:"message"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

func parseClaudeFile(path, projectDir string, now time.Time) (Session, error) {
	file, err := os.Open(path)
	if err != nil {
		return Session{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		sessionID string
		cwd       string
		preview   string
		summary   string
		firstUser string
		count     int
		span      timeSpan
	)
	for scanner.Scan() {
		line := scanner.Bytes()
		if !gjson.ValidBytes(line) {
			continue
		}
		var rec claudeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}

		if sessionID == "" {
			sessionID = strings.TrimSpace(rec.SessionID)
		}
		if cwd == "" {
			cwd = strings.TrimSpace(rec.CWD)
		}
		if ts, ok := parseTimestamp(rec.Timestamp); ok {
			span.observe(ts)
		}

		switch rec.Type {
		case "user":
			count++
			if firstUser == "" && !rec.IsMeta && rec.Message != nil {
				firstUser = contentText(rec.Message.Content)
			}
		case "assistant":
			count++
		case "summary":
			if summary == "" {
				summary = collapseWhitespace(rec.Summary)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Session{}, fmt.Errorf("scan %s: %w", path, err)
	}

	if sessionID == "" {
		sessionID = claudeSessionIDFromPath(path)
	}
	if cwd == "" {
		cwd = workdirFromClaudePath(path)
	}
	preview = previewFrom(firstUser)

	title := truncateRunes(summary, titleLimit)
	if title == "" {
		title = titleFrom(firstUser)
	}
	if title == "" {
		title = untitled
	}

	s := Session{
		ID:           composeID(projectDir, sessionID),
		SessionID:    sessionID,
		Source:       SourceClaude,
		Title:        title,
		Project:      cwd,
		Preview:      preview,
		MessageCount: count,
		Locator:      Locator{Dir: filepath.Dir(path), File: filepath.Base(path)},
	}
	span.apply(&s, now)
	return s, nil
}

// contentText returns the text of a message content field, which is either a
// plain string or an array of typed blocks. Only "text" blocks contribute.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	res := gjson.ParseBytes(raw)
	switch {
	case res.Type == gjson.String:
		return strings.TrimSpace(res.Str)
	case res.IsArray():
		var parts []string
		res.ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").Str != "text" {
				return true
			}
			if text := strings.TrimSpace(block.Get("text").Str); text != "" {
				parts = append(parts, text)
			}
			return true
		})
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func claudeSessionIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func workdirFromClaudePath(path string) string {
	// Claude stores sessions at ~/.claude/projects/<encoded-path>/<uuid>.jsonl
	// where the encoded path replaces separators with dashes:
	// -Users-eric-projects-foo -> /Users/eric/projects/foo
	dir := filepath.Base(filepath.Dir(path))
	if dir == "" || dir == "." || dir == "/" || dir == "projects" {
		return ""
	}
	if !strings.HasPrefix(dir, "-") {
		return ""
	}
	decoded := strings.ReplaceAll(dir, "-", "/")
	if decoded == "" || decoded == "/" {
		return ""
	}
	return filepath.Clean(decoded)
}

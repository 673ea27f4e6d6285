package index

import (
	"fmt"
	"path/filepath"
	"time"
)

// SourceKind names one on-disk transcript layout.
type SourceKind string

const (
	SourceClaude   SourceKind = "claude"
	SourceOpenCode SourceKind = "opencode"
)

// Kinds lists every known source in display order.
var Kinds = []SourceKind{SourceClaude, SourceOpenCode}

func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case SourceClaude, SourceOpenCode:
		return SourceKind(s), nil
	default:
		return "", fmt.Errorf("unknown source %q (want claude or opencode)", s)
	}
}

// Locator points back at the raw files a session was parsed from.
type Locator struct {
	Dir  string `json:"dir"`
	File string `json:"file,omitempty"`
}

func (l Locator) Path() string {
	if l.File == "" {
		return l.Dir
	}
	return filepath.Join(l.Dir, l.File)
}

// Session is the normalized, read-only view of one transcript.
type Session struct {
	ID             string     `json:"id"`
	SessionID      string     `json:"session_id"`
	Source         SourceKind `json:"source"`
	Title          string     `json:"title"`
	Project        string     `json:"project"`
	Preview        string     `json:"preview"`
	MessageCount   int        `json:"message_count"`
	LastActivity   time.Time  `json:"last_activity"`
	FirstTimestamp *time.Time `json:"first_timestamp,omitempty"`
	Locator        Locator    `json:"locator"`
}

// ProjectName is the last path component of Project.
func (s Session) ProjectName() string {
	if s.Project == "" {
		return ""
	}
	base := filepath.Base(s.Project)
	if base == "." || base == string(filepath.Separator) {
		return s.Project
	}
	return base
}

func composeID(sourceDir, sessionID string) string {
	return sourceDir + "/" + sessionID
}

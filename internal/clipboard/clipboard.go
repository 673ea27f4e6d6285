// Package clipboard copies the command that resumes a session.
package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"cmdtrace/internal/index"
)

var ErrToolNotFound = errors.New("clipboard tool not found")

type Command struct {
	Path string
	Args []string
}

type candidate struct {
	name string
	args []string
}

var candidates = map[string][]candidate{
	"darwin":  {{name: "pbcopy"}},
	"linux":   {{name: "wl-copy"}, {name: "xclip", args: []string{"-selection", "clipboard"}}, {name: "xsel", args: []string{"--clipboard", "--input"}}},
	"freebsd": {{name: "xclip", args: []string{"-selection", "clipboard"}}, {name: "xsel", args: []string{"--clipboard", "--input"}}},
	"windows": {{name: "clip.exe"}},
}

// SelectCommand picks the first clipboard tool available on goos.
func SelectCommand(goos string, lookPath func(string) (string, error)) (Command, error) {
	for _, c := range candidates[goos] {
		if path, err := lookPath(c.name); err == nil {
			return Command{Path: path, Args: c.args}, nil
		}
	}
	return Command{}, ErrToolNotFound
}

// ResumeCommand is the shell command that reopens s in its CLI, run from the
// session's project directory when it is known.
func ResumeCommand(s index.Session) string {
	var cmd string
	switch s.Source {
	case index.SourceOpenCode:
		cmd = "opencode --session " + shellQuote(s.SessionID)
	default:
		cmd = "claude --resume " + shellQuote(s.SessionID)
	}
	if s.Project == "" {
		return cmd
	}
	return "cd " + shellQuote(s.Project) + " && " + cmd
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:@%+=,", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func Copy(ctx context.Context, text string) error {
	cmdDef, err := SelectCommand(runtime.GOOS, exec.LookPath)
	if err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cmdDef.Path, cmdDef.Args...)
	cmd.Stdin = strings.NewReader(text)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("clipboard command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("clipboard command failed: %w", err)
	}
	return nil
}

// CopyResume copies the resume command for s and returns it.
func CopyResume(ctx context.Context, s index.Session) (string, error) {
	cmd := ResumeCommand(s)
	return cmd, Copy(ctx, cmd)
}

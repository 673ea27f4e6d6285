package clipboard

import (
	"errors"
	"testing"

	"cmdtrace/internal/index"
)

func only(names map[string]string) func(string) (string, error) {
	return func(name string) (string, error) {
		if p, ok := names[name]; ok {
			return p, nil
		}
		return "", errors.New("not found")
	}
}

func TestSelectCommandDarwin(t *testing.T) {
	cmd, err := SelectCommand("darwin", only(map[string]string{"pbcopy": "/usr/bin/pbcopy"}))
	if err != nil {
		t.Fatalf("expected command, got error: %v", err)
	}
	if cmd.Path != "/usr/bin/pbcopy" || len(cmd.Args) != 0 {
		t.Fatalf("unexpected command: %#v", cmd)
	}
}

func TestSelectCommandLinuxOrder(t *testing.T) {
	tests := []struct {
		name      string
		available map[string]string
		wantPath  string
		wantArgs  int
	}{
		{"prefers wl-copy", map[string]string{"wl-copy": "/bin/wl-copy", "xclip": "/bin/xclip"}, "/bin/wl-copy", 0},
		{"falls back to xclip", map[string]string{"xclip": "/bin/xclip", "xsel": "/bin/xsel"}, "/bin/xclip", 2},
		{"falls back to xsel", map[string]string{"xsel": "/bin/xsel"}, "/bin/xsel", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := SelectCommand("linux", only(tt.available))
			if err != nil {
				t.Fatalf("expected command, got error: %v", err)
			}
			if cmd.Path != tt.wantPath || len(cmd.Args) != tt.wantArgs {
				t.Fatalf("unexpected command: %#v", cmd)
			}
		})
	}
}

func TestSelectCommandUnavailable(t *testing.T) {
	for _, goos := range []string{"linux", "plan9"} {
		_, err := SelectCommand(goos, only(nil))
		if !errors.Is(err, ErrToolNotFound) {
			t.Fatalf("%s: expected ErrToolNotFound, got %v", goos, err)
		}
	}
}

func TestResumeCommand(t *testing.T) {
	tests := []struct {
		session index.Session
		want    string
	}{
		{
			index.Session{Source: index.SourceClaude, SessionID: "abc-123", Project: "/work/app"},
			"cd /work/app && claude --resume abc-123",
		},
		{
			index.Session{Source: index.SourceOpenCode, SessionID: "ses_9"},
			"opencode --session ses_9",
		},
		{
			index.Session{Source: index.SourceClaude, SessionID: "x", Project: "/work/it's mine"},
			`cd '/work/it'\''s mine' && claude --resume x`,
		},
	}
	for _, tt := range tests {
		if got := ResumeCommand(tt.session); got != tt.want {
			t.Fatalf("ResumeCommand(%+v) = %q, want %q", tt.session, got, tt.want)
		}
	}
}

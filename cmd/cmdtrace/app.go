package main

import (
	"context"
	"fmt"
	"strings"

	"cmdtrace/internal/config"
	"cmdtrace/internal/index"
	"cmdtrace/internal/logging"
	"cmdtrace/internal/overlay"
	"cmdtrace/internal/store"
)

// app holds what every command needs: resolved config, the metadata store,
// the overlay loaded from it and the session sources.
type app struct {
	cfg     config.AppConfig
	store   *store.Store
	overlay *overlay.State
	sources *index.Sources
}

// openApp resolves configuration, routes logging and opens the store. The
// TUI owns the terminal, so it only ever logs to a file.
func openApp(ctx context.Context, tui bool) (*app, error) {
	cfg, err := config.Load(flags.configPath, config.Overrides{
		ClaudeHome:   flags.claudeHome,
		OpenCodeHome: flags.openCodeHome,
		DBPath:       flags.dbPath,
		LogLevel:     flags.logLevel,
	})
	if err != nil {
		return nil, err
	}
	if err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Path:   cfg.LogFile,
		Stderr: !tui,
	}); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.DBPath, false)
	if err != nil {
		return nil, err
	}
	snap, err := st.Load(ctx)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	ov := overlay.New(overlay.WithSink(st))
	ov.Load(snap)

	diag := index.LogDiagnostics{Log: logging.NewLogger("index")}
	sources := index.NewSources(
		index.NewClaudeLoader(cfg.ClaudeProjectsDir(), cfg.Exclude, index.Options{Diagnostics: diag}),
		index.NewOpenCodeLoader(cfg.OpenCodeStorageDir(), index.Options{Diagnostics: diag}),
	)

	return &app{cfg: cfg, store: st, overlay: ov, sources: sources}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// kinds resolves a --source value; empty means every source.
func kinds(source string) ([]index.SourceKind, error) {
	if source == "" {
		return index.Kinds, nil
	}
	kind, err := index.ParseSourceKind(strings.ToLower(source))
	if err != nil {
		return nil, err
	}
	return []index.SourceKind{kind}, nil
}

// sessions loads every requested source. A source that fails is reported
// and skipped so the others still list.
func (a *app) sessions(ctx context.Context, source string) ([]index.Session, error) {
	ks, err := kinds(source)
	if err != nil {
		return nil, err
	}
	log := logging.NewLogger("cli")
	var out []index.Session
	for _, kind := range ks {
		sessions, err := a.sources.Load(ctx, kind)
		if err != nil {
			if len(ks) == 1 {
				return nil, err
			}
			log.WithField("source", kind).WithError(err).Warn("source unavailable")
			continue
		}
		out = append(out, sessions...)
	}
	return out, nil
}

// findSession matches a composite id first, then a bare source session id.
func (a *app) findSession(ctx context.Context, id string) (index.Session, error) {
	sessions, err := a.sessions(ctx, "")
	if err != nil {
		return index.Session{}, err
	}
	var matches []index.Session
	for _, s := range sessions {
		if s.ID == id {
			return s, nil
		}
		if s.SessionID == id {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return index.Session{}, fmt.Errorf("session %q not found", id)
	case 1:
		return matches[0], nil
	default:
		return index.Session{}, fmt.Errorf("session id %q is ambiguous (%d matches); use the full id", id, len(matches))
	}
}

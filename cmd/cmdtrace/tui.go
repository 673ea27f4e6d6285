package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"cmdtrace/internal/export"
	"cmdtrace/internal/index"
	"cmdtrace/internal/library"
	"cmdtrace/internal/logging"
	"cmdtrace/internal/ui"
)

func runTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	log := logging.NewLogger("tui")

	lib := library.New(a.sources, index.SourceClaude, library.WithSnapshots(a.store))
	if n := lib.Restore(ctx); n > 0 {
		log.WithField("sources", n).Debug("restored snapshots")
	}

	roots := make(map[index.SourceKind]string)
	for _, kind := range a.sources.Kinds() {
		if root, ok := a.sources.Root(kind); ok {
			roots[kind] = root
		}
	}
	var changes chan index.SourceKind
	watcher, err := library.NewWatcher(roots, library.DefaultDebounce)
	if err != nil {
		log.WithError(err).Warn("file watching disabled")
	} else {
		defer watcher.Close()
		changes = make(chan index.SourceKind, len(roots))
		go watcher.Run(ctx, changes)
	}

	pinned, err := a.store.VisibleTags(ctx)
	if err != nil {
		log.WithError(err).Warn("could not read visible tags")
	}
	exp, err := export.New(a.cfg.ExportDir)
	if err != nil {
		return err
	}

	opts := ui.Options{
		Config:     a.cfg,
		Library:    lib,
		Overlay:    a.overlay,
		Exporter:   exp,
		Changes:    changes,
		PinnedTags: pinned,
	}
	p := tea.NewProgram(ui.NewModel(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up            key.Binding
	Down          key.Binding
	FocusLeft     key.Binding
	FocusRight    key.Binding
	Tab           key.Binding
	PageUp        key.Binding
	PageDown      key.Binding
	PrevMatch     key.Binding
	NextMatch     key.Binding
	Search        key.Binding
	Esc           key.Binding
	Source        key.Binding
	Reload        key.Binding
	Favorite      key.Binding
	Pin           key.Binding
	Archive       key.Binding
	ShowArchived  key.Binding
	FavoritesOnly key.Binding
	CycleTag      key.Binding
	Export        key.Binding
	Copy          key.Binding
	Quit          key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		FocusLeft: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "focus list"),
		),
		FocusRight: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "focus detail"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "toggle focus"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "page down"),
		),
		PrevMatch: key.NewBinding(
			key.WithKeys("N"),
			key.WithHelp("N", "prev match"),
		),
		NextMatch: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next match"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		Esc: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear search"),
		),
		Source: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "switch source"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Favorite: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "favorite"),
		),
		Pin: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "pin"),
		),
		Archive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "archive"),
		),
		ShowArchived: key.NewBinding(
			key.WithKeys("A"),
			key.WithHelp("A", "show archived"),
		),
		FavoritesOnly: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "favorites only"),
		),
		CycleTag: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "cycle tag filter"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export markdown"),
		),
		Copy: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy resume command"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Source, k.Pin, k.Favorite, k.Archive, k.CycleTag, k.Copy, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.FocusLeft, k.FocusRight, k.Tab},
		{k.PageDown, k.PageUp, k.NextMatch, k.PrevMatch, k.Search, k.Esc},
		{k.Source, k.Reload, k.Favorite, k.Pin, k.Archive, k.ShowArchived, k.FavoritesOnly, k.CycleTag},
		{k.Export, k.Copy, k.Quit},
	}
}

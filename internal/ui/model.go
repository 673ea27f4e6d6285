package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"cmdtrace/internal/aggregate"
	"cmdtrace/internal/clipboard"
	"cmdtrace/internal/config"
	apperrors "cmdtrace/internal/errors"
	"cmdtrace/internal/export"
	"cmdtrace/internal/index"
	"cmdtrace/internal/library"
	"cmdtrace/internal/logging"
	"cmdtrace/internal/overlay"
	"cmdtrace/internal/query"
)

// Options wires the model to the rest of the application.
type Options struct {
	Config   config.AppConfig
	Library  *library.Library
	Overlay  *overlay.State
	Exporter *export.Exporter
	// Changes delivers sources the watcher saw change. Optional.
	Changes <-chan index.SourceKind
	// PinnedTags is the user's explicit sidebar tag set. Optional.
	PinnedTags []string
	Now        func() time.Time
}

type Model struct {
	cfg        config.AppConfig
	lib        *library.Library
	overlay    *overlay.State
	exporter   *export.Exporter
	changes    <-chan index.SourceKind
	pinnedTags []string
	now        func() time.Time
	log        *logrus.Entry

	list     list.Model
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
	search   textinput.Model
	keys     keyMap

	width  int
	height int

	loading       bool
	warmed        bool
	searchMode    bool
	searchQuery   string
	highlightTerm string
	focusOnList   bool
	showArchived  bool
	favoritesOnly bool
	tagFilter     string
	rendering     bool
	renderNonce   int

	source     index.SourceKind
	ticket     library.Ticket
	all        []index.Session
	visible    []index.Session
	selectedID string
	rendered   map[string]string
	matchLines []int
	matchCount int
	matchIndex int

	status string
	err    error
}

type sessionsMsg struct {
	ticket   library.Ticket
	sessions []index.Session
	err      error
}
type warmUpMsg struct {
	errs map[index.SourceKind]error
}
type sourceChangedMsg struct {
	kind index.SourceKind
}
type backgroundLoadedMsg struct {
	kind index.SourceKind
	err  error
}
type renderMsg struct {
	sessionID string
	cacheKey  string
	rendered  string
	nonce     int
	err       error
}
type exportMsg struct {
	path string
	err  error
}
type copyMsg struct {
	command string
	err     error
}

func NewModel(opts Options) Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 40, 20)
	l.Title = "Sessions"
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	vp := viewport.New(60, 20)
	vp.SetContent("Loading sessions...")

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	ti := textinput.New()
	ti.Placeholder = "text, title:, tag:, project:, content:, date:, regex:, messages:"
	ti.Prompt = "/ "
	ti.CharLimit = 256

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ov := opts.Overlay
	if ov == nil {
		ov = overlay.New()
	}

	m := Model{
		cfg:        opts.Config,
		lib:        opts.Library,
		overlay:    ov,
		exporter:   opts.Exporter,
		changes:    opts.Changes,
		pinnedTags: opts.PinnedTags,
		now:        now,
		log:        logging.NewLogger("ui"),
		list:       l,
		viewport:   vp,
		help:       h,
		spinner:    sp,
		search:     ti,
		keys:       defaultKeys(),

		focusOnList: true,
		rendered:    make(map[string]string),
		matchIndex:  -1,
	}
	// Paint cached sessions for the active source right away; Init always
	// starts a fresh load.
	if m.lib != nil {
		m.source = m.lib.Active()
		ticket, cached, ok := m.lib.Switch(m.source)
		m.ticket = ticket
		m.all = cached
		m.loading = true
		if ok {
			m.applyFilter()
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.lib == nil {
		return nil
	}
	return tea.Batch(m.spinner.Tick, m.reloadCmd(m.ticket), m.watchCmd())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		cmds = append(cmds, m.renderSelected(true))

	case sessionsMsg:
		if !msg.ticket.Current() {
			m.log.WithField("source", msg.ticket.Kind).Debug("discarding superseded load")
			break
		}
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "Load failed"
			break
		}
		m.err = nil
		m.all = msg.sessions
		m.status = fmt.Sprintf("%d %s sessions", len(msg.sessions), msg.ticket.Kind)
		m.applyFilter()
		cmds = append(cmds, m.renderSelected(false))
		if !m.warmed {
			m.warmed = true
			cmds = append(cmds, m.warmUpCmd())
		}

	case warmUpMsg:
		for kind, err := range msg.errs {
			m.log.WithField("source", kind).WithError(err).Debug("warm-up failed")
		}

	case sourceChangedMsg:
		if msg.kind == m.source {
			cmds = append(cmds, m.reloadCmd(m.ticket))
		} else {
			cmds = append(cmds, m.backgroundReloadCmd(msg.kind))
		}
		cmds = append(cmds, m.watchCmd())

	case backgroundLoadedMsg:
		if msg.err != nil {
			m.log.WithField("source", msg.kind).WithError(msg.err).Debug("background reload failed")
		}

	case exportMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case copyMsg:
		if msg.err != nil {
			m.err = msg.err
			if errors.Is(msg.err, clipboard.ErrToolNotFound) {
				m.status = "Could not copy: clipboard tool not found. Run: " + msg.command
			} else {
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.status = "Copied: " + msg.command
		}

	case renderMsg:
		if msg.nonce != m.renderNonce {
			break
		}
		m.rendering = false
		if msg.err != nil {
			m.err = msg.err
			m.status = "Render failed: " + msg.err.Error()
			break
		}
		m.rendered[msg.cacheKey] = msg.rendered
		if m.selectedID == msg.sessionID {
			m.setViewportFromRendered(msg.rendered, true)
		}

	case tea.KeyMsg:
		if m.searchMode {
			return m.updateSearch(msg)
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

		if m.focusOnList {
			prev := m.selectedID
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			cmds = append(cmds, cmd)
			m.selectedID = m.currentSelectedID()
			if m.selectedID != prev {
				cmds = append(cmds, m.renderSelected(false))
			}
		} else {
			switch {
			case key.Matches(msg, m.keys.Up):
				m.viewport.LineUp(1)
			case key.Matches(msg, m.keys.Down):
				m.viewport.LineDown(1)
			}
		}
	}

	if m.loading {
		var spin tea.Cmd
		m.spinner, spin = m.spinner.Update(msg)
		cmds = append(cmds, spin)
	}

	return m, tea.Batch(cmds...)
}

// updateSearch filters on every keystroke; filtering never touches disk.
func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searchMode = false
		m.searchQuery = ""
		m.search.SetValue("")
		m.search.Blur()
		m.applyFilter()
		return m, m.renderSelected(false)
	case "enter":
		m.searchMode = false
		m.search.Blur()
		return m, nil
	}
	before := strings.TrimSpace(m.search.Value())
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	after := strings.TrimSpace(m.search.Value())
	if after == before {
		return m, cmd
	}
	m.searchQuery = after
	m.applyFilter()
	return m, tea.Batch(cmd, m.renderSelected(false))
}

// handleKey runs the global bindings. handled is false for keys that should
// reach the focused pane.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.search.SetValue(m.searchQuery)
		m.search.CursorEnd()
		m.search.Focus()
		return nil, true
	case key.Matches(msg, m.keys.Esc):
		if m.searchQuery == "" && m.tagFilter == "" {
			return nil, true
		}
		m.searchQuery = ""
		m.tagFilter = ""
		m.search.SetValue("")
		m.applyFilter()
		return m.renderSelected(false), true
	case key.Matches(msg, m.keys.Tab):
		m.focusOnList = !m.focusOnList
		return nil, true
	case key.Matches(msg, m.keys.FocusLeft):
		m.focusOnList = true
		return nil, true
	case key.Matches(msg, m.keys.FocusRight):
		m.focusOnList = false
		return nil, true
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return nil, true
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return nil, true
	case key.Matches(msg, m.keys.NextMatch):
		m.jumpToMatch(1)
		return nil, true
	case key.Matches(msg, m.keys.PrevMatch):
		m.jumpToMatch(-1)
		return nil, true
	case key.Matches(msg, m.keys.Source):
		return m.switchSource(m.nextSource()), true
	case key.Matches(msg, m.keys.Reload):
		if m.lib == nil {
			return nil, true
		}
		m.loading = true
		return tea.Batch(m.spinner.Tick, m.reloadCmd(m.ticket)), true
	case key.Matches(msg, m.keys.Favorite):
		return m.mutate("favorite", m.overlay.ToggleFavorite), true
	case key.Matches(msg, m.keys.Pin):
		return m.mutate("pin", m.overlay.TogglePin), true
	case key.Matches(msg, m.keys.Archive):
		return m.mutate("archive", m.overlay.ToggleArchive), true
	case key.Matches(msg, m.keys.ShowArchived):
		m.showArchived = !m.showArchived
		m.applyFilter()
		return m.renderSelected(false), true
	case key.Matches(msg, m.keys.FavoritesOnly):
		m.favoritesOnly = !m.favoritesOnly
		m.applyFilter()
		return m.renderSelected(false), true
	case key.Matches(msg, m.keys.CycleTag):
		m.tagFilter = m.nextTag()
		m.applyFilter()
		return m.renderSelected(false), true
	case key.Matches(msg, m.keys.Export):
		return m.exportCmd(), true
	case key.Matches(msg, m.keys.Copy):
		return m.copyCmd(), true
	}
	return nil, false
}

// mutate applies one overlay toggle to the selected session and refilters,
// since the toggle can change membership and order.
func (m *Model) mutate(what string, fn func(context.Context, string) (overlay.Metadata, error)) tea.Cmd {
	if m.selectedID == "" {
		return nil
	}
	if _, err := fn(context.Background(), m.selectedID); err != nil {
		m.err = err
		m.status = "Could not update " + what
		return nil
	}
	m.applyFilter()
	return m.renderSelected(true)
}

func (m *Model) nextSource() index.SourceKind {
	for i, k := range index.Kinds {
		if k == m.source {
			return index.Kinds[(i+1)%len(index.Kinds)]
		}
	}
	return index.Kinds[0]
}

// switchSource shows the cached sessions for kind at once when it has been
// loaded before; otherwise it clears the list and loads.
func (m *Model) switchSource(kind index.SourceKind) tea.Cmd {
	if m.lib == nil {
		return nil
	}
	ticket, cached, ok := m.lib.Switch(kind)
	m.source = kind
	m.ticket = ticket
	m.err = nil
	if ok {
		m.loading = false
		m.all = cached
		m.status = fmt.Sprintf("%d %s sessions", len(cached), kind)
		m.applyFilter()
		return m.renderSelected(false)
	}
	m.loading = true
	m.all = nil
	m.status = "Loading " + string(kind) + "..."
	m.applyFilter()
	return tea.Batch(m.spinner.Tick, m.reloadCmd(ticket))
}

func (m *Model) tagSortMode() aggregate.SortMode {
	mode, err := aggregate.ParseSortMode(m.cfg.TagSort)
	if err != nil {
		return aggregate.SortImportance
	}
	return mode
}

// nextTag cycles the tag filter through the visible tags, then back to none.
func (m *Model) nextTag() string {
	listed := aggregate.ListTags(m.overlay.Tags(), m.overlay.UsageCounts(), m.tagSortMode())
	visible := aggregate.VisibleTags(listed, m.pinnedTags)
	if len(visible) == 0 {
		return ""
	}
	if m.tagFilter == "" {
		return visible[0].Name
	}
	for i, t := range visible {
		if t.Name == m.tagFilter && i+1 < len(visible) {
			return visible[i+1].Name
		}
	}
	return ""
}

func (m *Model) request() query.Request {
	return query.Request{
		Search:        m.searchQuery,
		Tag:           m.tagFilter,
		ShowArchived:  m.showArchived,
		FavoritesOnly: m.favoritesOnly,
		Now:           m.now(),
	}
}

// applyFilter recomputes the visible list from the whole source collection,
// keeping the selection when the selected session survives.
func (m *Model) applyFilter() {
	res := query.Filter(m.all, m.request(), m.overlay)
	m.highlightTerm = res.Highlight
	if res.Err != nil {
		m.err = res.Err
	} else if apperrors.Is(m.err, apperrors.ErrCodeInvalidQuery) {
		m.err = nil
	}
	m.visible = res.Sessions

	now := m.now()
	items := make([]list.Item, 0, len(res.Sessions))
	for _, s := range res.Sessions {
		items = append(items, sessionItem{s: s, meta: m.overlay.Metadata(s.ID), now: now})
	}
	m.list.SetItems(items)

	if len(res.Sessions) == 0 {
		m.selectedID = ""
		switch {
		case res.Err != nil:
			m.viewport.SetContent(res.Err.Error())
		case len(m.all) == 0 && m.loading:
			m.viewport.SetContent("Loading sessions...")
		case len(m.all) == 0:
			m.viewport.SetContent("No sessions found for " + string(m.source) + ".")
		default:
			m.viewport.SetContent("No sessions matched.")
		}
		m.clearMatches()
		return
	}

	selectIdx := 0
	for idx, s := range res.Sessions {
		if s.ID == m.selectedID {
			selectIdx = idx
			break
		}
	}
	m.list.Select(selectIdx)
	m.selectedID = res.Sessions[selectIdx].ID
}

func (m *Model) currentSelectedID() string {
	item, ok := m.list.SelectedItem().(sessionItem)
	if !ok {
		return ""
	}
	return item.s.ID
}

func (m *Model) selected() (index.Session, bool) {
	for _, s := range m.visible {
		if s.ID == m.selectedID {
			return s, true
		}
	}
	return index.Session{}, false
}

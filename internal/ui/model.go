package ui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/logdeck/internal/ctxfilter"
	"github.com/five82/logdeck/internal/dispatch"
	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/mdc"
	"github.com/five82/logdeck/internal/prefs"
	"github.com/five82/logdeck/internal/state"
)

const (
	defaultRefresh = 100 * time.Millisecond

	// displayLimit bounds the rows handed to the viewport; older matches
	// stay in the store.
	displayLimit = 5000
)

// Options configures the UI.
type Options struct {
	Store  *state.Store
	Index  *mdc.Index
	Filter *ctxfilter.Filter

	// Optional, shown in the header when set.
	Dispatcher *dispatch.Dispatcher
	Watchdog   *dispatch.Watchdog

	Prefs     prefs.Prefs
	PrefsPath string
	Refresh   time.Duration
	Logger    *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	store      *state.Store
	index      *mdc.Index
	filter     *ctxfilter.Filter
	dispatcher *dispatch.Dispatcher
	watchdog   *dispatch.Watchdog
	logger     *slog.Logger

	prefs     prefs.Prefs
	prefsPath string
	refresh   time.Duration

	// dirty is set from notification callbacks on producer goroutines and
	// consumed on the next tick.
	dirty *atomic.Bool

	keys     keyMap
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool

	viewport viewport.Model
	follow   bool
	total    int
	shown    int

	panel panelState
}

// New creates a model over the given services. Call watch to start
// receiving change notifications.
func New(opts Options) Model {
	refresh := opts.Refresh
	if refresh <= 0 {
		refresh = defaultRefresh
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := opts.Prefs
	if p.Theme == "" || len(p.Columns) == 0 {
		p = prefs.Default()
	}

	dirty := new(atomic.Bool)
	dirty.Store(true)

	return Model{
		store:      opts.Store,
		index:      opts.Index,
		filter:     opts.Filter,
		dispatcher: opts.Dispatcher,
		watchdog:   opts.Watchdog,
		logger:     logger,
		prefs:      p,
		prefsPath:  opts.PrefsPath,
		refresh:    refresh,
		dirty:      dirty,
		keys:       defaultKeyMap(),
		theme:      GetTheme(p.Theme),
		follow:     true,
		viewport:   viewport.New(0, 0),
		panel:      newPanelState(),
	}
}

// watch subscribes to store, index and filter changes. Each notification
// only marks the model dirty; the next tick re-reads everything.
func (m Model) watch() (stop func()) {
	mark := func() { m.dirty.Store(true) }
	unsubs := []func(){
		m.store.OnAdded(func([]logevent.LogEvent) { mark() }),
		m.store.OnReset(mark),
		m.index.OnChange(mark),
		m.filter.OnChange(mark),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.refresh)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.reload()
		return m, nil

	case tickMsg:
		if m.dirty.Swap(false) {
			m.reload()
		}
		return m, tickCmd(m.refresh)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	return b.String()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.panel.editing {
		return m.handleInputKey(msg)
	}
	if m.panel.open {
		if handled, cmd := m.handlePanelKey(msg); handled {
			return m, cmd
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		m.reload()
	case key.Matches(msg, m.keys.Filters):
		m.panel.open = !m.panel.open
		m.layout()
	case key.Matches(msg, m.keys.MasterSwitch):
		m.filter.SetEnabled(!m.filter.Enabled())
	case key.Matches(msg, m.keys.ClearEvents):
		m.store.Reset()
	case key.Matches(msg, m.keys.ToggleColumn):
		m.toggleColumn(msg.String())
	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
	default:
		m.scroll(msg)
	}
	return m, nil
}

// scroll moves the event viewport. Scrolling away from the bottom pauses
// follow mode; reaching it again resumes.
func (m *Model) scroll(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, m.keys.Up):
		m.viewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Down):
		m.viewport.ScrollDown(1)
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.viewport.HalfPageUp()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.viewport.HalfPageDown()
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
	default:
		return
	}
	m.follow = m.viewport.AtBottom()
}

func (m *Model) toggleColumn(digit string) {
	i := int(digit[0] - '1')
	if i < 0 || i >= len(prefs.AllColumns) {
		return
	}
	m.prefs = m.prefs.Toggle(prefs.AllColumns[i])
	m.savePrefs()
	m.reload()
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		m.logger.Warn("save preferences failed", "path", m.prefsPath, "error", err)
	}
}

// reload re-reads the store, index and filter and rebuilds the views.
func (m *Model) reload() {
	all := m.store.GetAll()
	matched := all[:0:0]
	for _, evt := range all {
		if m.filter.Matches(evt.MDC) {
			matched = append(matched, evt)
		}
	}
	m.total = len(all)
	m.shown = len(matched)
	if over := len(matched) - displayLimit; over > 0 {
		matched = matched[over:]
	}

	m.viewport.SetContent(m.renderEvents(matched))
	if m.follow {
		m.viewport.GotoBottom()
	}

	m.panel.entries = m.filter.GetEntries()
	m.panel.clampCursor()
	m.panel.input.SetSuggestions(suggestions(m.index))
}

// layout sizes the viewport and input to the terminal.
func (m *Model) layout() {
	w, h := m.eventsBoxSize()
	m.viewport.Width = max(w-2, 0)
	m.viewport.Height = max(h-2, 0)
	m.panel.input.Width = max(m.width-12, 10)
}

// Messages

type tickMsg time.Time

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Run starts the Bubble Tea program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, opts Options) error {
	if opts.Store == nil || opts.Index == nil || opts.Filter == nil {
		return errors.New("ui requires a store, index and filter")
	}
	m := New(opts)
	stop := m.watch()
	defer stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

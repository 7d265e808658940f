package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/logdeck/internal/ctxfilter"
	"github.com/five82/logdeck/internal/mdc"
)

const maxPanelRows = 8

// panelState holds the diagnostic context filter panel.
type panelState struct {
	open    bool
	editing bool
	cursor  int
	entries []ctxfilter.Entry
	input   textinput.Model
}

func newPanelState() panelState {
	ti := textinput.New()
	ti.Prompt = "key=value › "
	ti.Placeholder = "service=billing, or a bare key to match any value"
	ti.CharLimit = 256
	ti.ShowSuggestions = true
	return panelState{input: ti}
}

func (p *panelState) clampCursor() {
	p.cursor = min(p.cursor, len(p.entries)-1)
	p.cursor = max(p.cursor, 0)
}

func (p panelState) selected() (ctxfilter.Entry, bool) {
	if p.cursor < 0 || p.cursor >= len(p.entries) {
		return ctxfilter.Entry{}, false
	}
	return p.entries[p.cursor], true
}

// handlePanelKey handles keys while the panel is open but not editing. It
// reports false for keys the panel does not own.
func (m *Model) handlePanelKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Filters):
		m.panel.open = false
		m.layout()
	case key.Matches(msg, m.keys.AddEntry):
		m.panel.editing = true
		m.panel.input.SetValue("")
		return true, m.panel.input.Focus()
	case key.Matches(msg, m.keys.Up):
		if m.panel.cursor > 0 {
			m.panel.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.panel.cursor < len(m.panel.entries)-1 {
			m.panel.cursor++
		}
	case key.Matches(msg, m.keys.ToggleEntry):
		if e, ok := m.panel.selected(); ok {
			m.filter.ToggleEntry(e.Key, e.Value)
		}
	case key.Matches(msg, m.keys.RemoveEntry):
		if e, ok := m.panel.selected(); ok {
			m.filter.RemoveEntry(e.Key, e.Value)
		}
	case key.Matches(msg, m.keys.ResetFilter):
		m.filter.Reset()
		m.panel.cursor = 0
	default:
		return false, nil
	}
	return true, nil
}

// handleInputKey handles keys while the entry input has focus.
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.panel.editing = false
		m.panel.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		if k, v, ok := parseEntry(m.panel.input.Value()); ok {
			m.filter.AddEntry(k, v)
		}
		m.panel.editing = false
		m.panel.input.Blur()
		m.panel.input.SetValue("")
		return m, nil
	}
	var cmd tea.Cmd
	m.panel.input, cmd = m.panel.input.Update(msg)
	return m, cmd
}

// parseEntry splits "key=value" input. A bare key, or "key=", is a wildcard.
func parseEntry(input string) (key, value string, ok bool) {
	k, v, _ := strings.Cut(input, "=")
	k = strings.TrimSpace(k)
	if k == "" {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}

// suggestions lists "key=" for every indexed key followed by each
// "key=value" pair, for prefix completion in the entry input.
func suggestions(index *mdc.Index) []string {
	keys := index.GetSortedKeys()
	out := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k+"=")
		for _, v := range index.GetSortedValues(k) {
			out = append(out, k+"="+v)
		}
	}
	return out
}

func (m Model) panelHeight() int {
	rows := max(min(len(m.panel.entries), maxPanelRows), 1)
	return rows + 4 // borders + input line + spacer
}

// renderPanel renders the filter entries and the entry input.
func (m Model) renderPanel() string {
	styles := m.theme.Styles()
	var b strings.Builder

	if len(m.panel.entries) == 0 {
		b.WriteString(styles.MutedText.Render("No filter entries. Press a to add one."))
	}

	start := 0
	if m.panel.cursor >= maxPanelRows {
		start = m.panel.cursor - maxPanelRows + 1
	}
	end := min(start+maxPanelRows, len(m.panel.entries))
	for i := start; i < end; i++ {
		e := m.panel.entries[i]
		mark := "[ ]"
		if e.Enabled {
			mark = "[x]"
		}
		value := e.Value
		if e.Wildcard() {
			value = "*"
		}
		line := mark + " " + e.Key + " = " + value
		style := styles.Text
		if !e.Enabled || !m.filter.Enabled() {
			style = styles.MutedText
		}
		if i == m.panel.cursor && !m.panel.editing {
			style = styles.Selected
		}
		if i > start {
			b.WriteString("\n")
		}
		b.WriteString(style.Render(line))
	}

	b.WriteString("\n\n")
	if m.panel.editing {
		b.WriteString(m.panel.input.View())
	} else if !m.filter.Enabled() {
		b.WriteString(styles.WarningText.Render("Filter disabled: every event is shown. Press m to enable."))
	} else {
		b.WriteString(styles.FaintText.Render("Entries with the same key match any value; different keys must all match."))
	}
	return b.String()
}

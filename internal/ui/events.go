package ui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/prefs"
)

const timeLayout = "15:04:05.000"

// Fixed column widths; message and mdc share what is left.
var columnWidths = map[string]int{
	prefs.ColumnTime:   len(timeLayout),
	prefs.ColumnLevel:  5,
	prefs.ColumnSource: 16,
	prefs.ColumnThread: 12,
}

type cell struct {
	column string
	text   string
}

// eventCells returns the plain text of each visible column for evt.
func eventCells(evt logevent.LogEvent, columns []string) []cell {
	cells := make([]cell, 0, len(columns))
	for _, col := range columns {
		var text string
		switch col {
		case prefs.ColumnTime:
			if !evt.Timestamp.IsZero() {
				text = evt.Timestamp.Local().Format(timeLayout)
			}
		case prefs.ColumnLevel:
			text = logevent.NormalizeLevel(evt.Level)
		case prefs.ColumnSource:
			text = evt.Source
			if evt.Logger != "" {
				text = evt.Logger
			}
		case prefs.ColumnThread:
			text = evt.Thread
		case prefs.ColumnMessage:
			text = singleLine(evt.Message)
		case prefs.ColumnMDC:
			text = formatMDC(evt.MDC)
		default:
			continue
		}
		cells = append(cells, cell{column: col, text: text})
	}
	return cells
}

// formatMDC renders context pairs sorted by key.
func formatMDC(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := slices.Sorted(maps.Keys(fields))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + singleLine(fields[k])
	}
	return strings.Join(parts, " ")
}

// renderEvents renders one row per event.
func (m Model) renderEvents(events []logevent.LogEvent) string {
	if len(events) == 0 {
		if m.total > 0 {
			return m.theme.Styles().MutedText.Render("No events match the context filter.")
		}
		return m.theme.Styles().MutedText.Render("Waiting for events...")
	}
	lines := make([]string, len(events))
	for i, evt := range events {
		lines[i] = m.renderEventLine(evt)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEventLine(evt logevent.LogEvent) string {
	styles := m.theme.Styles()
	remaining := m.viewport.Width
	cells := eventCells(evt, m.prefs.Columns)

	var b strings.Builder
	for i, c := range cells {
		if i > 0 {
			if remaining <= 1 {
				break
			}
			b.WriteString(" ")
			remaining--
		}
		text := c.text
		w, fixed := columnWidths[c.column]
		if fixed {
			text = padRight(text, w)
		}
		if remaining > 0 {
			text = truncate(text, remaining)
		}
		remaining -= len([]rune(text))

		var style lipgloss.Style
		switch c.column {
		case prefs.ColumnTime:
			style = styles.MutedText
		case prefs.ColumnLevel:
			style = styles.LevelStyle(c.text).Bold(true)
		case prefs.ColumnSource, prefs.ColumnThread:
			style = styles.AccentText
		case prefs.ColumnMDC:
			style = styles.FaintText
		default:
			style = styles.Text
		}
		b.WriteString(style.Render(text))
		if m.viewport.Width > 0 && remaining <= 0 {
			break
		}
	}
	return b.String()
}

// renderHeader renders the status line.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	bg := surface{lipgloss.Color(m.theme.Surface)}

	parts := []string{
		bg.paint("logdeck", styles.Logo),
		bg.paint("Events", styles.MutedText) + bg.blank(1) +
			bg.paint(fmt.Sprintf("%d/%d", m.total, m.store.Stats().MaxEntries), styles.Text),
		bg.paint("Shown", styles.MutedText) + bg.blank(1) +
			bg.paint(fmt.Sprintf("%d", m.shown), styles.Text),
	}

	switch {
	case !m.filter.Enabled():
		parts = append(parts, bg.paint("Filter OFF", styles.MutedText))
	case m.filter.ActiveCount() > 0:
		parts = append(parts, bg.paint(fmt.Sprintf("Filter ON %d/%d", m.filter.ActiveCount(), len(m.panel.entries)), styles.WarningText))
	}

	if m.dispatcher != nil {
		if st := m.dispatcher.Stats(); st.Dropped > 0 {
			parts = append(parts, bg.paint(fmt.Sprintf("Dropped %d", st.Dropped), styles.DangerText))
		}
	}
	if m.watchdog != nil && m.watchdog.Stats().Stalled {
		parts = append(parts, bg.paint("● STALLED", styles.DangerText))
	}
	if m.follow {
		parts = append(parts, bg.paint("● FOLLOW", styles.SuccessText))
	} else {
		parts = append(parts, bg.paint("○ PAUSED", styles.MutedText))
	}

	return styles.Header.Width(m.width).Render(bg.join(parts, 2))
}

// renderCommandBar renders key hints for the focused area.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles()
	bg := surface{lipgloss.Color(m.theme.Surface)}

	var hints [][2]string
	switch {
	case m.panel.editing:
		hints = [][2]string{{"enter", "Add"}, {"tab", "Complete"}, {"esc", "Cancel"}}
	case m.panel.open:
		hints = [][2]string{{"a", "Add"}, {"space", "Toggle"}, {"d", "Remove"}, {"R", "Clear"}, {"m", "On/off"}, {"f", "Close"}}
	default:
		hints = [][2]string{{"f", "Filters"}, {"space", "Follow"}, {"1-6", "Columns"}, {"ctrl+l", "Clear"}, {"?", "Help"}, {"q", "Quit"}}
	}
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = bg.paint(h[0], styles.WarningText) + bg.blank(1) + bg.paint(h[1], styles.MutedText)
	}
	return styles.Header.Width(m.width).Render(bg.join(parts, 2))
}

// renderContent renders the event box and, when open, the filter panel.
func (m Model) renderContent() string {
	w, h := m.eventsBoxSize()
	title := "Events"
	if !m.follow {
		title = "Events (paused)"
	}
	events := m.renderBox(title, m.viewport.View(), w, h, !m.panel.open)
	if !m.panel.open {
		return events
	}
	return events + "\n" + m.renderBox("Context Filter", m.renderPanel(), m.width, m.panelHeight(), true)
}

// eventsBoxSize returns the outer size of the event box.
func (m Model) eventsBoxSize() (int, int) {
	h := m.height - 2 // header + command bar
	if m.panel.open {
		h -= m.panelHeight()
	}
	return m.width, max(h, 3)
}

// renderBox draws a bordered box with a centered title.
func (m Model) renderBox(title, content string, width, height int, focused bool) string {
	borderColor, bgColor := m.theme.Border, m.theme.SurfaceAlt
	if focused {
		borderColor, bgColor = m.theme.BorderFocus, m.theme.FocusBg
	}
	bg := surface{lipgloss.Color(bgColor)}
	border := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColor))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	inner := max(width-2, 0)
	title = truncate(title, max(inner-2, 0))
	left := max((inner-len(title)-2)/2, 0)
	right := max(inner-len(title)-2-left, 0)

	var b strings.Builder
	b.WriteString(bg.paint("┌"+strings.Repeat("─", left), border))
	b.WriteString(bg.paint(" "+title+" ", titleStyle))
	b.WriteString(bg.paint(strings.Repeat("─", right)+"┐", border))

	lines := strings.Split(content, "\n")
	for i := 0; i < max(height-2, 0); i++ {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		b.WriteString("\n")
		b.WriteString(bg.paint("│", border))
		b.WriteString(bg.fill(line, inner))
		b.WriteString(bg.paint("│", border))
	}
	b.WriteString("\n")
	b.WriteString(bg.paint("└"+strings.Repeat("─", inner)+"┘", border))
	return b.String()
}

// surface paints segments on one background color. Lipgloss resets between
// styled segments otherwise leave unpainted gaps, so spaces are painted too.
type surface struct {
	bg lipgloss.Color
}

func (s surface) paint(text string, style lipgloss.Style) string {
	if text == "" {
		return ""
	}
	st := style.Background(s.bg)
	var b strings.Builder
	for i, word := range strings.Split(text, " ") {
		if i > 0 {
			b.WriteString(s.blank(1))
		}
		if word != "" {
			b.WriteString(st.Render(word))
		}
	}
	return b.String()
}

func (s surface) blank(n int) string {
	return lipgloss.NewStyle().Background(s.bg).Render(strings.Repeat(" ", n))
}

func (s surface) join(parts []string, gap int) string {
	return strings.Join(parts, s.blank(gap))
}

func (s surface) fill(content string, width int) string {
	return lipgloss.NewStyle().Background(s.bg).Width(width).Render(content)
}

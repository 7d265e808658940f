package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the viewer and filter panel bindings.
type keyMap struct {
	// General
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Escape     key.Binding
	Confirm    key.Binding
	Tab        key.Binding

	// Events
	Up           key.Binding
	Down         key.Binding
	Top          key.Binding
	Bottom       key.Binding
	PageUp       key.Binding
	PageDown     key.Binding
	HalfPageUp   key.Binding
	HalfPageDown key.Binding
	ToggleFollow key.Binding
	ClearEvents  key.Binding
	ToggleColumn key.Binding

	// Filters
	Filters      key.Binding
	MasterSwitch key.Binding
	AddEntry     key.Binding
	ToggleEntry  key.Binding
	RemoveEntry  key.Binding
	ResetFilter  key.Binding
}

// defaultKeyMap returns the default key bindings.
func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Close panel"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Switch pane"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Scroll down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "Oldest event"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "Newest event"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "Page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "Page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "Half page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "Half page down"),
		),
		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Follow newest"),
		),
		ClearEvents: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "Clear events"),
		),
		ToggleColumn: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6"),
			key.WithHelp("1-6", "Toggle column"),
		),

		Filters: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "Context filters"),
		),
		MasterSwitch: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "Filter on/off"),
		),
		AddEntry: key.NewBinding(
			key.WithKeys("a", "/"),
			key.WithHelp("a", "Add filter"),
		),
		ToggleEntry: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle entry"),
		),
		RemoveEntry: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "Remove entry"),
		),
		ResetFilter: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "Remove all entries"),
		),
	}
}

package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	NextTab   key.Binding
	PrevTab   key.Binding
	Up        key.Binding
	Down      key.Binding
	Select    key.Binding
	Suppress  key.Binding
	Brush     key.Binding
	Cancel    key.Binding
	Back      key.Binding
	Reset     key.Binding
	Mode      key.Binding
	Clear     key.Binding
	CopyLink  key.Binding
	PasteLink key.Binding
	Scale     key.Binding
	Discover  key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Quit, k.NextTab, k.Select, k.Brush, k.Back, k.Mode, k.Scale, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Quit, k.Help, k.NextTab, k.PrevTab},
		{k.Up, k.Down, k.Select, k.Suppress},
		{k.Brush, k.Cancel, k.Back, k.Reset},
		{k.Mode, k.Clear, k.Scale, k.Discover},
		{k.CopyLink, k.PasteLink},
	}
}

var keys = keyMap{
	NextTab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next chart"),
	),
	PrevTab: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev chart"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "filter"),
	),
	Suppress: key.NewBinding(
		key.WithKeys("x", " "),
		key.WithHelp("x/space", "hide series"),
	),
	Brush: key.NewBinding(
		key.WithKeys("b"),
		key.WithHelp("b", "brush range"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Back: key.NewBinding(
		key.WithKeys("backspace"),
		key.WithHelp("backspace", "back"),
	),
	Reset: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reset"),
	),
	Mode: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "attacking/volatile"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear filter"),
	),
	CopyLink: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy link"),
	),
	PasteLink: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "open copied link"),
	),
	Scale: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "log/lin"),
	),
	Discover: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "discovery"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}

// discoveryKeyMap is active while the discovery table has focus.
type discoveryKeyMap struct {
	Search    key.Binding
	Dimension key.Binding
	Column    key.Binding
	ColumnBk  key.Binding
	Sort      key.Binding
	MultiSort key.Binding
	NextPage  key.Binding
	PrevPage  key.Binding
	More      key.Binding
	Breakdown key.Binding
	Select    key.Binding
	Close     key.Binding
	Quit      key.Binding
}

func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Close, k.Search, k.Dimension, k.Sort, k.MultiSort, k.NextPage, k.More}
}

func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Close, k.Quit, k.Search, k.Dimension},
		{k.Column, k.ColumnBk, k.Sort, k.MultiSort},
		{k.NextPage, k.PrevPage, k.More, k.Breakdown, k.Select},
	}
}

var discoveryKeys = discoveryKeyMap{
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search"),
	),
	Dimension: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "next dimension"),
	),
	Column: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "next column"),
	),
	ColumnBk: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "prev column"),
	),
	Sort: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "sort"),
	),
	MultiSort: key.NewBinding(
		key.WithKeys("O", "+"),
		key.WithHelp("O/+", "add sort column"),
	),
	NextPage: key.NewBinding(
		key.WithKeys("]", "pgdown"),
		key.WithHelp("]", "next page"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("[", "pgup"),
		key.WithHelp("[", "prev page"),
	),
	More: key.NewBinding(
		key.WithKeys("g"),
		key.WithHelp("g", "load more"),
	),
	Breakdown: key.NewBinding(
		key.WithKeys("w"),
		key.WithHelp("w", "rank breakdown"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "filter dashboard"),
	),
	Close: key.NewBinding(
		key.WithKeys("esc", "d"),
		key.WithHelp("esc/d", "back to charts"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q/ctrl+c", "quit"),
	),
}

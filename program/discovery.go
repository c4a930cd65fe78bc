package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/discovery"
)

const maxCellWidth = 28

type discoveryBatchMsg struct {
	gen  int
	rows []dataset.RankEntity
	err  error
}

// discoveryModel is the ranked entity table with search, sorting and
// batched loading.
type discoveryModel struct {
	fetch   discovery.SummaryFetcher
	batch   int
	timeout time.Duration
	log     *zap.Logger

	rng    dataset.DateRange
	table  *discovery.Table
	loader *discovery.Loader
	gen    int
	first  bool

	view      table.Model
	search    textinput.Model
	searching bool
	column    int
	breakdown bool
	loading   bool
	err       error
	help      help.Model

	width, height int
}

func newDiscoveryModel(fetch discovery.SummaryFetcher, batch, pageSize int, timeout time.Duration, log *zap.Logger) *discoveryModel {
	t := discovery.NewTable(dataset.Country)
	_ = t.SetPageSize(pageSize)

	s := textinput.New()
	s.Placeholder = "search"
	s.Prompt = "/ "
	s.CharLimit = 64

	v := table.New(table.WithFocused(true))
	st := table.DefaultStyles()
	st.Header = st.Header.
		BorderStyle(styles.NormalBorder()).
		BorderForeground(borderColor).
		BorderBottom(true).
		Bold(true)
	st.Selected = st.Selected.Foreground(selectedColor).Bold(true)
	v.SetStyles(st)

	return &discoveryModel{
		fetch:   fetch,
		batch:   batch,
		timeout: timeout,
		log:     log,
		table:   t,
		view:    v,
		search:  s,
		help:    help.New(),
	}
}

// open shows the table for rng, reloading when the range or the dimension
// changed since the last load.
func (d *discoveryModel) open(rng dataset.DateRange) tui.Cmd {
	if d.loader != nil && d.rng == rng && d.loader.Dimension() == d.table.Dimension() {
		return nil
	}
	d.rng = rng
	return d.restart()
}

func (d *discoveryModel) restart() tui.Cmd {
	d.gen++
	d.first = true
	d.loading = false
	d.err = nil
	d.loader = discovery.NewLoader(d.fetch, d.table.Dimension(), d.rng, d.batch, d.log)
	d.table.SetRows(nil)
	d.refresh()
	return d.next()
}

func (d *discoveryModel) next() tui.Cmd {
	if d.loader == nil || d.loader.Done() || d.loading {
		return nil
	}
	d.loading = true
	l, gen, timeout := d.loader, d.gen, d.timeout
	return func() tui.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rows, err := l.Next(ctx)
		return discoveryBatchMsg{gen: gen, rows: rows, err: err}
	}
}

func (d *discoveryModel) switchDimension() tui.Cmd {
	dims := dataset.Dimensions
	i := 0
	for j, desc := range dims {
		if desc.Dimension == d.table.Dimension() {
			i = j
		}
	}
	d.table.SwitchDimension(dims[(i+1)%len(dims)].Dimension)
	d.column = 0
	return d.restart()
}

func (d *discoveryModel) setSize(w, h int) {
	d.width, d.height = w, h
	d.search.Width = max(10, w/3)
	// status line + search line + help line
	d.view.SetHeight(max(3, h-3))
	d.view.SetWidth(w)
}

// selected returns the entity under the cursor.
func (d *discoveryModel) selected() (string, bool) {
	page := d.table.Page()
	i := d.view.Cursor()
	if i < 0 || i >= len(page) {
		return "", false
	}
	id := page[i].Entity.ID(d.table.Dimension())
	return id, id != ""
}

func (d *discoveryModel) update(msg tui.Msg) tui.Cmd {
	switch msg := msg.(type) {
	case discoveryBatchMsg:
		if msg.gen != d.gen {
			return nil
		}
		d.loading = false
		if errors.Is(msg.err, discovery.ErrBusy) {
			return nil
		}
		if msg.err != nil {
			d.err = msg.err
			return nil
		}
		if d.first {
			d.table.SetRows(msg.rows)
			d.first = false
		} else {
			d.table.AppendRows(msg.rows)
		}
		d.refresh()
		return nil

	case tui.KeyMsg:
		if d.searching {
			switch msg.String() {
			case "enter", "esc":
				d.searching = false
				d.search.Blur()
				d.view.Focus()
				return nil
			}
			var cmd tui.Cmd
			d.search, cmd = d.search.Update(msg)
			d.table.SetSearch(d.search.Value())
			d.refresh()
			return cmd
		}
		switch {
		case key.Matches(msg, discoveryKeys.Search):
			d.searching = true
			d.view.Blur()
			return d.search.Focus()
		case key.Matches(msg, discoveryKeys.Dimension):
			return d.switchDimension()
		case key.Matches(msg, discoveryKeys.Column):
			d.column = (d.column + 1) % len(d.table.SortKeys())
			d.refresh()
			return nil
		case key.Matches(msg, discoveryKeys.ColumnBk):
			n := len(d.table.SortKeys())
			d.column = (d.column + n - 1) % n
			d.refresh()
			return nil
		case key.Matches(msg, discoveryKeys.Sort), key.Matches(msg, discoveryKeys.MultiSort):
			multi := key.Matches(msg, discoveryKeys.MultiSort)
			if err := d.table.ToggleSort(d.table.SortKeys()[d.column], multi); err != nil {
				d.err = err
			}
			d.refresh()
			return nil
		case key.Matches(msg, discoveryKeys.NextPage):
			if d.table.NextPage() {
				d.refresh()
				d.view.GotoTop()
			}
			return nil
		case key.Matches(msg, discoveryKeys.PrevPage):
			if d.table.PrevPage() {
				d.refresh()
				d.view.GotoTop()
			}
			return nil
		case key.Matches(msg, discoveryKeys.More):
			return d.next()
		case key.Matches(msg, discoveryKeys.Breakdown):
			d.breakdown = !d.breakdown
			return nil
		}
	}
	var cmd tui.Cmd
	d.view, cmd = d.view.Update(msg)
	return cmd
}

// refresh copies the current page into the table widget.
func (d *discoveryModel) refresh() {
	header := d.table.Header()
	page := d.table.Page()
	cells := make([][]string, len(page))
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = styles.Width(h)
	}
	for i, r := range page {
		cells[i] = d.table.Cells(r)
		for j, c := range cells[i] {
			widths[j] = max(widths[j], styles.Width(c))
		}
	}

	cols := make([]table.Column, len(header))
	for i, h := range header {
		if i == d.column+1 {
			h = "[" + h + "]"
		}
		cols[i] = table.Column{Title: h, Width: min(maxCellWidth, max(widths[i], styles.Width(h)))}
	}
	rows := make([]table.Row, len(cells))
	for i, c := range cells {
		rows[i] = table.Row(c)
	}
	// Rows before columns would index past the old column set.
	d.view.SetRows(nil)
	d.view.SetColumns(cols)
	d.view.SetRows(rows)
}

func (d *discoveryModel) status() string {
	desc := dataset.MustDescribe(d.table.Dimension())
	sortKeys := make([]string, 0, len(d.table.SortColumns()))
	for _, c := range d.table.SortColumns() {
		sortKeys = append(sortKeys, c.Label)
	}
	sortDesc := strings.Join(sortKeys, " + ")
	if len(sortKeys) == 1 {
		sortDesc += " " + d.table.Direction().Arrow()
	} else {
		sortDesc = "avg rank of " + sortDesc
	}
	loaded := fmt.Sprintf("%d loaded", d.table.Total())
	switch {
	case d.loading:
		loaded += ", loading…"
	case d.loader != nil && !d.loader.Done():
		loaded += ", more available (g)"
	}
	return fmt.Sprintf("%s · %s · %d shown · %s · sort: %s · page %d/%d",
		desc.Label, d.rng, d.table.Len(), loaded, sortDesc, d.table.PageNumber(), d.table.PageCount())
}

func (d *discoveryModel) breakdownView() string {
	entries := d.table.Breakdown()
	if len(entries) == 0 {
		return borderFg.Render("rank breakdown: single-column sort")
	}
	cols := d.table.SortColumns()
	var sb strings.Builder
	sb.WriteString("rank breakdown\n")
	for i, e := range entries {
		if i == 5 {
			break
		}
		parts := make([]string, len(cols))
		for j, c := range cols {
			parts[j] = fmt.Sprintf("%s #%d", c.Label, e.Ranks[j])
		}
		fmt.Fprintf(&sb, "%d. %s  avg %.2f  (%s)\n", i+1, e.Entity.ID(d.table.Dimension()), e.AvgRank, strings.Join(parts, ", "))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (d *discoveryModel) View() string {
	lines := []string{selectedFg.Render("DISCOVERY") + "  " + d.status()}
	if d.searching || d.table.Search() != "" {
		lines = append(lines, d.search.View())
	}
	lines = append(lines, d.view.View())
	if d.breakdown {
		lines = append(lines, d.breakdownView())
	}
	if d.err != nil {
		lines = append(lines, errorFg.Render("ERROR: "+d.err.Error()))
	}
	lines = append(lines, d.help.View(discoveryKeys))
	return styles.JoinVertical(styles.Left, lines...)
}

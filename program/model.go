package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tui "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/query"
	"github.com/keilerkonzept/sshdash/internal/trend"
	"github.com/keilerkonzept/sshdash/internal/view"
)

type frameMsg struct{ frame view.Frame }

type countryCheckMsg struct {
	generation uint64
	ok         bool
}

type errMsg struct{ err error }

type statusMsg string

type model struct {
	width, height  int
	leftPaneWidth  int
	rightPaneWidth int

	ctx     context.Context
	app     *app
	coord   *view.Coordinator
	tracker *trend.Tracker
	log     *zap.Logger

	tab      int
	logScale bool
	loading  bool
	frame    view.Frame
	trending []trend.Item

	brushing    bool
	brushAnchor int

	canClearCountry bool
	status          string
	err             error

	list         list.Model
	listStyle    styles.Style
	listDelegate *list.DefaultDelegate
	help         help.Model
	plot         *plot.Canvas
	plotW, plotH int

	discovery     *discoveryModel
	showDiscovery bool
}

func newModel(ctx context.Context, a *app, coord *view.Coordinator) *model {
	const (
		defaultWidth  = 80
		defaultHeight = 20
	)

	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = styles.NewStyle().
		Border(styles.NormalBorder(), false, false, false, true).
		BorderForeground(borderColor).
		Foreground(selectedColor).
		Bold(false).
		Padding(0, 0, 0, 1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.
		Foreground(selectedColor)
	d.ShowDescription = true

	l := list.New(make([]list.Item, 0), d, defaultWidth/2-2, defaultHeight)
	l.Styles.NoItems = l.Styles.NoItems.
		Padding(0, 2)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)

	cfg := a.cfg
	m := &model{
		ctx:          ctx,
		app:          a,
		coord:        coord,
		tracker:      a.tracker(),
		log:          a.log,
		logScale:     cfg.UI.LogScale,
		list:         l,
		listDelegate: &d,
		help:         help.New(),
		discovery:    newDiscoveryModel(a.client, cfg.UI.Batch, cfg.UI.PageSize, cfg.API.Timeout, a.log),
	}
	m.leftPaneWidth, m.rightPaneWidth = computePaneWidths(defaultWidth, cfg.UI.ViewSplit)
	m.resizePlot(defaultWidth/2, defaultHeight)
	return m
}

func (m *model) resizePlot(w, h int) {
	m.plotW, m.plotH = w, h
	p := plot.NewCanvas(w, h)
	p.ShowAxis = false
	m.plot = &p
}

func (m *model) Init() tui.Cmd {
	return m.reload()
}

// reload issues a new generation now and fetches it off the UI goroutine.
func (m *model) reload() tui.Cmd {
	pending := m.coord.Prepare()
	m.loading = true
	ctx, timeout, coord := m.ctx, m.app.cfg.API.Timeout, m.coord
	return func() tui.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return frameMsg{frame: coord.Fetch(ctx, pending)}
	}
}

func (m *model) checkCountry() tui.Cmd {
	m.canClearCountry = false
	if _, ok := m.frame.Snapshot.Filter(dataset.Country); !ok {
		return nil
	}
	gen, ctx, timeout, coord := m.frame.Generation, m.ctx, m.app.cfg.API.Timeout, m.coord
	return func() tui.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return countryCheckMsg{generation: gen, ok: coord.CanClearCountry(ctx)}
	}
}

// dispatch hands ev to the coordinator and reloads when the filters changed.
func (m *model) dispatch(ev view.Event) tui.Cmd {
	reload, err := m.coord.Handle(ev)
	if err != nil {
		m.log.Warn("event rejected", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
		m.err = err
		return nil
	}
	m.err = nil
	if reload {
		return m.reload()
	}
	m.refresh()
	return nil
}

func (m *model) chartSpec() query.ChartSpec { return query.Charts[m.tab] }

func (m *model) result() (view.ChartResult, bool) {
	return m.frame.Chart(m.chartSpec().Chart)
}

func (m *model) Update(msg tui.Msg) (tui.Model, tui.Cmd) {
	switch msg := msg.(type) {
	case errMsg:
		m.err = msg.err
		return m, nil
	case statusMsg:
		m.status = string(msg)
		return m, nil
	case frameMsg:
		if !m.coord.Accept(msg.frame) {
			return m, nil
		}
		m.frame = msg.frame
		m.loading = false
		m.brushing = false
		m.refresh()
		return m, m.checkCountry()
	case countryCheckMsg:
		if msg.generation == m.frame.Generation {
			m.canClearCountry = msg.ok
		}
		return m, nil
	case discoveryBatchMsg:
		return m, m.discovery.update(msg)
	case tui.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tui.KeyMsg:
		if m.showDiscovery {
			return m, m.updateDiscovery(msg)
		}
		return m, m.handleKey(msg)
	}
	var cmd tui.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) resize(w, h int) {
	m.width, m.height = w, h
	m.leftPaneWidth, m.rightPaneWidth = computePaneWidths(m.width, m.app.cfg.UI.ViewSplit)
	statsLines := 0
	if m.app.cfg.UI.Stats {
		// title + 3 metric lines
		statsLines = 4
	}
	// tabs + filters on top; trend, status and help below
	available := max(1, m.height-2-statsLines-3)

	leftW := max(1, m.leftPaneWidth)
	rightW := max(1, m.rightPaneWidth)

	m.list.SetSize(leftW, available)
	m.list.Styles.Title = styles.NewStyle()
	m.list.Styles.PaginationStyle = styles.NewStyle()
	m.list.Styles.HelpStyle = styles.NewStyle()
	m.listStyle = styles.NewStyle().Width(leftW).Height(available)

	// Right side is: plot canvas + 1 label line, wrapped in a border (adds 2 lines).
	m.resizePlot(max(1, rightW-2), max(1, available-3))
	m.updatePlot()

	m.discovery.setSize(w, h)
}

func (m *model) handleKey(msg tui.KeyMsg) tui.Cmd {
	cs := m.chartSpec()
	switch {
	case key.Matches(msg, keys.Quit):
		return tui.Quit
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case key.Matches(msg, keys.NextTab):
		m.switchTab(1)
		return nil
	case key.Matches(msg, keys.PrevTab):
		m.switchTab(-1)
		return nil
	case key.Matches(msg, keys.Up):
		m.list.CursorUp()
		return nil
	case key.Matches(msg, keys.Down):
		m.list.CursorDown()
		return nil
	case key.Matches(msg, keys.Cancel):
		m.brushing = false
		return nil
	case key.Matches(msg, keys.Brush):
		return m.brush()
	case key.Matches(msg, keys.Select):
		if cs.Dimension == "" {
			return m.brush()
		}
		if it, ok := m.list.SelectedItem().(listItem); ok {
			return m.dispatch(view.EntitySelected{Chart: cs.Chart, Key: it.key})
		}
		return nil
	case key.Matches(msg, keys.Suppress):
		if it, ok := m.list.SelectedItem().(listItem); ok && cs.Dimension != "" {
			return m.dispatch(view.EntitySuppressed{Chart: cs.Chart, Key: it.key})
		}
		return nil
	case key.Matches(msg, keys.Back):
		if m.coord.Snapshot().HistoryDepth == 0 {
			m.status = "no earlier date range"
			return nil
		}
		return m.dispatch(view.GoBack{})
	case key.Matches(msg, keys.Reset):
		return m.dispatch(view.Reset{})
	case key.Matches(msg, keys.Mode):
		switch {
		case cs.Dimension == "":
			m.status = "the total chart has no view mode"
			return nil
		case cs.FixedVolatile:
			m.status = "this panel always shows volatile countries"
			return nil
		}
		return m.dispatch(view.ToggleViewMode{Dimension: cs.Dimension})
	case key.Matches(msg, keys.Clear):
		if cs.Dimension == "" {
			return nil
		}
		if cs.Dimension == dataset.Country && !m.canClearCountry {
			if _, ok := m.frame.Snapshot.Filter(dataset.Country); ok {
				m.status = "the selected IP is only seen in this country"
			}
			return nil
		}
		return m.dispatch(view.ClearFilter{Dimension: cs.Dimension})
	case key.Matches(msg, keys.CopyLink):
		return copyLink(m.frame.Link)
	case key.Matches(msg, keys.PasteLink):
		raw, err := clipboard.ReadAll()
		if err != nil {
			m.err = fmt.Errorf("read clipboard: %w", err)
			return nil
		}
		return m.dispatch(view.ApplyLink{Query: raw})
	case key.Matches(msg, keys.Scale):
		m.logScale = !m.logScale
		m.updatePlot()
		return nil
	case key.Matches(msg, keys.Discover):
		m.showDiscovery = true
		return m.discovery.open(m.frame.Snapshot.Range)
	}
	return nil
}

func copyLink(link string) tui.Cmd {
	return func() tui.Msg {
		if err := clipboard.WriteAll(link); err != nil {
			return errMsg{fmt.Errorf("copy link: %w", err)}
		}
		return statusMsg("link copied: " + link)
	}
}

func (m *model) updateDiscovery(msg tui.KeyMsg) tui.Cmd {
	if !m.discovery.searching {
		switch {
		case key.Matches(msg, discoveryKeys.Quit):
			return tui.Quit
		case key.Matches(msg, discoveryKeys.Close):
			m.showDiscovery = false
			return nil
		case key.Matches(msg, discoveryKeys.Select):
			id, ok := m.discovery.selected()
			if !ok {
				return nil
			}
			m.showDiscovery = false
			cs := chartFor(m.discovery.table.Dimension())
			m.selectTab(cs.Chart)
			return m.dispatch(view.EntitySelected{Chart: cs.Chart, Key: id})
		}
	}
	return m.discovery.update(msg)
}

// chartFor returns the attacking chart of dim.
func chartFor(dim dataset.Dimension) query.ChartSpec {
	for _, cs := range query.Charts {
		if cs.Dimension == dim && !cs.FixedVolatile {
			return cs
		}
	}
	return query.Charts[0]
}

func (m *model) selectTab(c query.Chart) {
	for i, cs := range query.Charts {
		if cs.Chart == c {
			m.tab = i
		}
	}
	m.brushing = false
	m.refresh()
}

func (m *model) switchTab(step int) {
	n := len(query.Charts)
	m.tab = (m.tab + step + n) % n
	m.brushing = false
	m.refresh()
}

// brush starts a date selection on the total chart at the cursor, or
// completes it and selects the days between anchor and cursor.
func (m *model) brush() tui.Cmd {
	if m.chartSpec().Dimension != "" {
		m.status = "brush a date range on the total chart"
		return nil
	}
	idx := m.list.Index()
	if !m.brushing {
		m.brushing = true
		m.brushAnchor = idx
		m.status = "brushing: move and press enter"
		return nil
	}
	m.brushing = false
	start, end := brushSpan(m.frame.Snapshot.Range, m.brushAnchor, idx)
	return m.dispatch(view.DateRangeSelected{Start: start, End: end})
}

// refresh rebuilds the list, the trend line and the plot for the active
// chart of the current frame.
func (m *model) refresh() {
	m.updateList()
	m.updateTrend()
	m.updatePlot()
}

func (m *model) updateList() {
	r, ok := m.result()
	if !ok || r.Hidden || r.Err != nil {
		m.list.SetItems(nil)
		return
	}
	var items []list.Item
	if r.Spec.Dimension == "" {
		items = dayItems(r)
	} else {
		items = m.seriesItems(r)
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx < len(items) {
		m.list.Select(idx)
	}
}

func dayItems(r view.ChartResult) []list.Item {
	if len(r.Series) == 0 {
		return nil
	}
	points := r.Series[0].Points
	items := make([]list.Item, len(points))
	for i, p := range points {
		items[i] = listItem{
			TitlePrefix: p.Date.Short(),
			title:       p.Date.String(),
			desc:        humanize.Comma(int64(math.Round(p.Attacks))) + " attacks",
			key:         p.Date.String(),
		}
	}
	return items
}

func (m *model) seriesItems(r view.ChartResult) []list.Item {
	numDecimals := 1 + int(math.Ceil(math.Log10(float64(len(r.Series)+1))))
	itemRankFormat := "#%-" + fmt.Sprint(numDecimals) + "d"
	active, _ := m.frame.Snapshot.Filter(r.Spec.Dimension)

	items := make([]list.Item, len(r.Series))
	for i, s := range r.Series {
		var marks []string
		if s.Key == r.Highlight {
			marks = append(marks, "●")
		}
		if s.Key == active {
			marks = append(marks, "filtered")
		}
		if m.coord.Suppressed(r.Spec.Chart, s.Key) {
			marks = append(marks, "hidden")
		}
		desc := humanize.Comma(int64(math.Round(s.Total))) + " attacks"
		if len(marks) > 0 {
			desc += " · " + strings.Join(marks, " ")
		}
		items[i] = listItem{
			TitlePrefix: fmt.Sprintf(itemRankFormat, i+1),
			title:       entityLabel(r.Spec.Dimension, s.Key),
			desc:        desc,
			key:         s.Key,
		}
	}
	return items
}

func (m *model) updateTrend() {
	dim := m.chartSpec().Dimension
	r, ok := m.result()
	if dim == "" {
		// The total chart trends by country.
		dim = dataset.Country
		r, ok = m.frame.Chart(query.Countries)
	}
	if !ok || r.Hidden || r.Err != nil {
		m.trending = nil
		return
	}
	m.trending = m.tracker.Compute(r.Series)
}

func (m *model) updatePlot() {
	r, ok := m.result()
	if !ok || r.Hidden || r.Err != nil {
		return
	}
	highlight, dim := lineColors()
	data, colors := plotSeries(m.coord.Visible(r), r.Highlight, m.logScale, highlight, dim)
	// Start from a clean canvas so hidden series do not linger.
	m.resizePlot(m.plotW, m.plotH)
	if len(data) == 0 {
		return
	}
	m.plot.NumDataPoints = m.frame.Snapshot.Range.Days()
	m.plot.LineColors = colors
	m.plot.Fill(data)
}

func (m *model) View() string {
	if m.showDiscovery {
		return m.discovery.View()
	}

	header := tabBar(m.tab)
	summary := m.frame.Summary
	if m.loading {
		summary += borderFg.Render("  loading…")
	}

	left := m.listStyle.Render(m.list.View())
	right := plotStyle.Render(styles.JoinVertical(styles.Top, m.plotView(), m.labels()))
	body := styles.JoinHorizontal(styles.Top, left, right)

	dim := m.chartSpec().Dimension
	if dim == "" {
		dim = dataset.Country
	}
	lines := []string{header, summary, body, trendLine(dim, m.trending, m.tracker.Options().WindowDays, 3)}
	if m.app.cfg.UI.Stats {
		lines = append(lines, m.statsView())
	}
	switch {
	case m.err != nil:
		lines = append(lines, errorFg.Render("ERROR: "+m.err.Error()))
	default:
		lines = append(lines, borderFg.Render(m.status))
	}
	lines = append(lines, m.help.View(keys))
	return styles.JoinVertical(styles.Left, lines...)
}

func (m *model) plotView() string {
	r, ok := m.result()
	switch {
	case !ok:
		return m.blank("")
	case r.Hidden:
		return m.blank("panel hidden while a country from the other panel is selected")
	case r.Err != nil:
		return m.blank(errorFg.Render("failed: " + r.Err.Error()))
	case len(r.Series) == 0:
		return m.blank("no data for the selected filters")
	case len(m.coord.Visible(r)) == 0:
		return m.blank("every series is hidden")
	}
	return m.plot.String()
}

// blank fills the plot area so the layout does not jump.
func (m *model) blank(msg string) string {
	w, h := max(1, m.plotW), max(1, m.plotH)
	lines := make([]string, h)
	lines[0] = styles.NewStyle().Width(w).MaxWidth(w).Render(msg)
	for i := 1; i < h; i++ {
		lines[i] = strings.Repeat(" ", w)
	}
	return strings.Join(lines, "\n")
}

func (m *model) labels() string {
	w := max(0, m.rightPaneWidth-2)
	rng := m.frame.Snapshot.Range
	if m.brushing {
		start, end := brushSpan(rng, m.brushAnchor, m.list.Index())
		return selectedFg.Render(fmt.Sprintf("brush %s → %s", start, end))
	}
	if rng.Start.IsZero() {
		return ""
	}
	return plotLabels(w, rng, m.logScale)
}

func (m *model) statsView() string {
	snap := m.app.metrics.Snapshot()
	lines := []string{
		fmt.Sprintf("FETCH STATS (session %s)", m.coord.Session()[:8]),
		fmt.Sprintf("requests: %d  failed: %d  cache hits: %d", snap.Requests, snap.Failures, snap.CacheHits),
		fmt.Sprintf("request latency avg/max: %s / %s", formatMetricDuration(snap.Latency.Avg), formatMetricDuration(snap.Latency.Max)),
		fmt.Sprintf("reloads: %d  stale: %d  last: %s", snap.Reloads, snap.Stale, formatMetricDuration(snap.Reload.Last)),
	}
	return errorFg.Render(strings.Join(lines, "\n"))
}

type listItem struct {
	TitlePrefix string
	title       string
	desc        string
	key         string
}

func (i listItem) Title() string       { return fmt.Sprintf("%s %s", i.TitlePrefix, i.title) }
func (i listItem) Description() string { return i.desc }
func (i listItem) FilterValue() string { return i.key }

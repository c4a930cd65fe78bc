package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/discovery"
	"github.com/keilerkonzept/sshdash/internal/filter"
	"github.com/keilerkonzept/sshdash/internal/logging"
	"github.com/keilerkonzept/sshdash/internal/query"
	"github.com/keilerkonzept/sshdash/internal/rank"
	"github.com/keilerkonzept/sshdash/internal/view"
)

var (
	headerColor  = color.New(color.FgBlue, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// cliTimeout bounds the non-interactive commands.
const cliTimeout = 2 * time.Minute

// setupCLI loads the config and builds the app with a console logger.
func setupCLI(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	log, err := logging.Console(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, log)
}

func startSpinner(w io.Writer, suffix string, enabled bool) *spinner.Spinner {
	if !enabled {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	return s
}

func stopSpinner(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}

type discoverOptions struct {
	dimension string
	sort      []string
	order     string
	search    string
	limit     int
	breakdown bool
	progress  bool
}

func newDiscoverCmd(v *viper.Viper) *cobra.Command {
	var opts discoverOptions

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Rank the entities of one dimension",
		Long: `Rank the countries, IPs, usernames or ASNs of the date range by one or more
summary columns. With several --sort columns, rows are ordered by their
average rank across those columns.`,
		Example: `  sshdash discover --dimension ip --sort total_attacks,persistence_pct --breakdown
  sshdash discover --dimension username --search root --start 2022-11-01 --end 2022-11-30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
			defer cancel()

			a, err := setupCLI(ctx, v)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			return runDiscover(ctx, a, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dimension, "dimension", "country", "country, ip, username or asn")
	f.StringSliceVar(&opts.sort, "sort", []string{"total_attacks"}, "Sort columns; several rank by average rank")
	f.StringVar(&opts.order, "order", "desc", "desc or asc (asc lists worst first for multi-column sorts)")
	f.StringVar(&opts.search, "search", "", "Only rows whose name contains this text")
	f.IntVar(&opts.limit, "limit", 20, "Rows to print")
	f.BoolVar(&opts.breakdown, "breakdown", false, "Print the per-column ranks of a multi-column sort")
	f.BoolVar(&opts.progress, "progress", true, "Show a progress indicator")
	return cmd
}

func runDiscover(ctx context.Context, a *app, out, errOut io.Writer, opts discoverOptions) error {
	dim, err := dataset.ParseDimension(opts.dimension)
	if err != nil {
		return err
	}
	cols, err := rank.ParseColumns(strings.Join(opts.sort, ","))
	if err != nil {
		return err
	}
	dir, err := rank.ParseDirection(opts.order)
	if err != nil {
		return err
	}
	if opts.limit < 1 {
		return fmt.Errorf("--limit must be >= 1")
	}

	rng := a.initialRange(ctx)
	s := startSpinner(errOut, "Loading "+string(dim)+" summary...", opts.progress)
	rows, err := discovery.NewLoader(a.client, dim, rng, a.cfg.UI.Batch, a.log).All(ctx)
	stopSpinner(s)
	if err != nil {
		return fmt.Errorf("failed to load summary: %w", err)
	}

	desc := dataset.MustDescribe(dim)
	distinct := len(rows)
	if req, err := query.CountRequest(rng, dim); err == nil {
		if n, err := a.client.Count(ctx, req, desc.CountField); err == nil {
			distinct = n
		} else {
			a.log.Warn("count lookup failed", zap.String("dimension", string(dim)), zap.Error(err))
		}
	}

	t := discovery.NewTable(dim)
	t.SetRows(rows)
	t.SetSort(cols, dir)
	t.SetSearch(opts.search)
	if err := t.SetPageSize(opts.limit); err != nil {
		return err
	}

	headerColor.Fprintf(out, "%s ranking, %s\n", desc.Label, rng)
	infoColor.Fprintf(out, "%s distinct, %d matching\n", humanize.Comma(int64(distinct)), t.Len())
	renderTable(out, t)
	if opts.breakdown {
		renderBreakdown(out, t, opts.limit)
	}
	return nil
}

func renderTable(w io.Writer, t *discovery.Table) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.Header())
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	for _, r := range t.Page() {
		table.Append(t.Cells(r))
	}
	table.Render()
}

func renderBreakdown(w io.Writer, t *discovery.Table, limit int) {
	entries := t.Breakdown()
	if len(entries) == 0 {
		warningColor.Fprintln(w, "rank breakdown needs more than one --sort column")
		return
	}
	cols := t.SortColumns()
	header := []string{"#", dataset.MustDescribe(t.Dimension()).Label, "Avg Rank"}
	for _, c := range cols {
		header = append(header, c.Label)
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	for i, e := range entries {
		if i == limit {
			break
		}
		row := []string{fmt.Sprint(i + 1), e.Entity.ID(t.Dimension()), fmt.Sprintf("%.2f", e.AvgRank)}
		for _, r := range e.Ranks {
			row = append(row, fmt.Sprint(r))
		}
		table.Append(row)
	}
	table.Render()
}

type seriesOptions struct {
	filters  map[dataset.Dimension]*string
	volatile []string
	link     string
	progress bool
}

func newSeriesCmd(v *viper.Viper) *cobra.Command {
	opts := seriesOptions{filters: make(map[dataset.Dimension]*string)}

	cmd := &cobra.Command{
		Use:   "series",
		Short: "Print the chart data for a set of filters",
		Long: `Load every dashboard chart once for the given filters and print the daily
totals and the top series of each chart, followed by the shareable link.`,
		Example: `  sshdash series --country China --username root
  sshdash series --link "start=2022-11-01&end=2022-11-07&country=Brazil"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), cliTimeout)
			defer cancel()

			a, err := setupCLI(ctx, v)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			state := filter.New(a.initialRange(ctx))
			if err := applySeriesOptions(state, opts); err != nil {
				return err
			}
			coord := view.New(state, a.client,
				view.WithLogger(a.log),
				view.WithMetrics(a.metrics),
				view.WithTopN(a.cfg.UI.TopN))

			s := startSpinner(cmd.ErrOrStderr(), "Loading charts...", opts.progress)
			frame := coord.Reload(ctx)
			stopSpinner(s)
			renderFrame(cmd.OutOrStdout(), frame)
			if n := failedCharts(frame); n > 0 {
				return fmt.Errorf("%d chart(s) failed", n)
			}
			return nil
		},
	}

	f := cmd.Flags()
	for _, desc := range dataset.Dimensions {
		opts.filters[desc.Dimension] = f.String(desc.Param, "", "Filter by "+strings.ToLower(desc.Label))
	}
	f.StringSliceVar(&opts.volatile, "volatile", nil, "Dimensions to show in volatile mode (ip, username, asn, country)")
	f.StringVar(&opts.link, "link", "", "Restore start, end and country from a shared link")
	f.BoolVar(&opts.progress, "progress", true, "Show a progress indicator")
	return cmd
}

func applySeriesOptions(state *filter.State, opts seriesOptions) error {
	if opts.link != "" {
		if err := filter.ApplyLink(state, opts.link); err != nil {
			return err
		}
	}
	for _, desc := range dataset.Dimensions {
		v := opts.filters[desc.Dimension]
		if v == nil || *v == "" {
			continue
		}
		if desc.Dimension == dataset.Country {
			state.SetCountryFilter(*v, false)
		} else {
			state.SetDimensionFilter(desc.Dimension, *v)
		}
	}
	for _, name := range opts.volatile {
		dim, err := dataset.ParseDimension(name)
		if err != nil {
			return err
		}
		if state.Mode(dim) != filter.Volatile {
			state.ToggleViewMode(dim)
		}
	}
	return nil
}

func failedCharts(f view.Frame) int {
	n := 0
	for _, r := range f.Charts {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// renderFrame prints the total series day by day and the top series of
// every other chart.
func renderFrame(w io.Writer, f view.Frame) {
	headerColor.Fprintln(w, f.Summary)
	for _, r := range f.Charts {
		fmt.Fprintln(w)
		title := r.Spec.Title
		if r.Spec.Dimension != "" && r.Spec.Volatile(f.Snapshot) {
			title += " (volatile)"
		}
		headerColor.Fprintln(w, title)
		switch {
		case r.Hidden:
			warningColor.Fprintln(w, "hidden while a country from the other panel is selected")
			continue
		case r.Err != nil:
			errorColor.Fprintf(w, "failed: %v\n", r.Err)
			continue
		case len(r.Series) == 0:
			warningColor.Fprintln(w, "no data")
			continue
		}

		table := tablewriter.NewWriter(w)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetAutoFormatHeaders(false)
		if r.Spec.Dimension == "" {
			table.SetHeader([]string{"Date", "Attacks"})
			for _, p := range r.Series[0].Points {
				table.Append([]string{p.Date.String(), humanize.Comma(int64(math.Round(p.Attacks)))})
			}
		} else {
			table.SetHeader([]string{"#", dataset.MustDescribe(r.Spec.Dimension).Label, "Attacks", "Peak Day"})
			for i, s := range r.Series {
				name := entityLabel(r.Spec.Dimension, s.Key)
				if s.Key == r.Highlight {
					name = "* " + name
				}
				table.Append([]string{fmt.Sprint(i + 1), name, humanize.Comma(int64(math.Round(s.Total))), peakDay(s)})
			}
		}
		table.Render()
	}
	fmt.Fprintln(w)
	infoColor.Fprintf(w, "link: ?%s\n", f.Link)
}

func peakDay(s dataset.Series) string {
	best := -1
	for i, p := range s.Points {
		if best < 0 || p.Attacks > s.Points[best].Attacks {
			best = i
		}
	}
	if best < 0 || s.Points[best].Attacks == 0 {
		return "-"
	}
	p := s.Points[best]
	return fmt.Sprintf("%s (%s)", p.Date, humanize.Comma(int64(math.Round(p.Attacks))))
}

// Package view turns interaction events into filter changes and reloads
// every chart concurrently, dropping results that a newer reload has
// superseded.
package view

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/filter"
	"github.com/keilerkonzept/sshdash/internal/metrics"
	"github.com/keilerkonzept/sshdash/internal/query"
)

// Fetcher is the part of the backend client the coordinator needs.
type Fetcher interface {
	TotalAttacks(ctx context.Context, req query.Request) ([]dataset.DailyCount, error)
	SeriesRows(ctx context.Context, req query.Request, seriesKey string) ([]dataset.SeriesRow, error)
}

// TotalKey names the single series of the total chart.
const TotalKey = "Total"

const defaultTopN = 10

// ChartResult is the outcome of loading one chart. A failed chart carries
// Err and no series; a hidden chart was not fetched.
type ChartResult struct {
	Spec    query.ChartSpec
	Request query.Request
	Series  []dataset.Series
	// Highlight is the key drawn in the accent color, or "".
	Highlight string
	Hidden    bool
	Err       error
	Elapsed   time.Duration
}

// Frame is one complete reload, tagged with the generation it was issued
// for.
type Frame struct {
	Generation uint64
	Snapshot   filter.Snapshot
	Charts     []ChartResult
	Panels     filter.Panels
	Summary    string
	Link       string
	Elapsed    time.Duration
}

// Chart returns the result of chart c.
func (f Frame) Chart(c query.Chart) (ChartResult, bool) {
	for _, r := range f.Charts {
		if r.Spec.Chart == c {
			return r, true
		}
	}
	return ChartResult{}, false
}

// Pending is a reload that has been issued but not fetched.
type Pending struct {
	Generation uint64
	Snapshot   filter.Snapshot
}

// Coordinator owns the session's filter state. It is safe for concurrent
// use: events are applied on the UI goroutine while fetches run elsewhere.
type Coordinator struct {
	fetch   Fetcher
	log     *zap.Logger
	metrics *metrics.Fetch
	topN    int
	session string

	mu         sync.Mutex
	state      *filter.State
	generation uint64
	current    Frame
	suppressed map[query.Chart]map[string]bool
}

type Option func(*Coordinator)

func WithLogger(l *zap.Logger) Option { return func(c *Coordinator) { c.log = l } }

func WithMetrics(m *metrics.Fetch) Option { return func(c *Coordinator) { c.metrics = m } }

// WithTopN caps the number of series per chart; n <= 0 keeps all.
func WithTopN(n int) Option { return func(c *Coordinator) { c.topN = n } }

func New(state *filter.State, fetch Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetch:      fetch,
		log:        zap.NewNop(),
		topN:       defaultTopN,
		session:    uuid.NewString(),
		state:      state,
		suppressed: make(map[query.Chart]map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.With(zap.String("session", c.session))
	return c
}

func (c *Coordinator) Session() string { return c.session }

// Snapshot returns the current filter state.
func (c *Coordinator) Snapshot() filter.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// Handle applies ev and reports whether the charts must be reloaded.
func (c *Coordinator) Handle(ev Event) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev := ev.(type) {
	case DateRangeSelected:
		if err := c.state.SetDateRange(ev.Start, ev.End, true); err != nil {
			return false, err
		}
		c.log.Debug("date range selected", zap.Stringer("range", c.state.Range()))
		return true, nil

	case EntitySelected:
		cs, ok := query.Spec(ev.Chart)
		if !ok {
			return false, fmt.Errorf("unknown chart %q", ev.Chart)
		}
		if cs.Dimension == "" || ev.Key == "" {
			return false, nil
		}
		var active bool
		if cs.Dimension == dataset.Country {
			active = c.state.SetCountryFilter(ev.Key, cs.FixedVolatile)
		} else {
			active = c.state.SetDimensionFilter(cs.Dimension, ev.Key)
		}
		c.log.Debug("entity selected",
			zap.String("chart", string(ev.Chart)),
			zap.String("key", ev.Key),
			zap.Bool("active", active))
		return true, nil

	case EntitySuppressed:
		keys := c.suppressed[ev.Chart]
		if keys == nil {
			keys = make(map[string]bool)
			c.suppressed[ev.Chart] = keys
		}
		if keys[ev.Key] {
			delete(keys, ev.Key)
		} else {
			keys[ev.Key] = true
		}
		return false, nil

	case GoBack:
		return c.state.GoBack(), nil

	case Reset:
		c.state.Reset()
		return true, nil

	case ToggleViewMode:
		if _, err := dataset.Describe(ev.Dimension); err != nil {
			return false, err
		}
		mode := c.state.ToggleViewMode(ev.Dimension)
		c.log.Debug("view mode", zap.String("dimension", string(ev.Dimension)), zap.Stringer("mode", mode))
		return true, nil

	case ClearFilter:
		if _, ok := c.state.Filter(ev.Dimension); !ok {
			return false, nil
		}
		c.state.ClearDimensionFilter(ev.Dimension)
		return true, nil

	case ApplyLink:
		if err := filter.ApplyLink(c.state, ev.Query); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("unhandled event %T", ev)
}

// Prepare issues a new generation for the current state. Any frame of an
// earlier generation is stale from now on.
func (c *Coordinator) Prepare() Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return Pending{Generation: c.generation, Snapshot: c.state.Snapshot()}
}

// Reload is Fetch of a fresh Prepare.
func (c *Coordinator) Reload(ctx context.Context) Frame {
	return c.Fetch(ctx, c.Prepare())
}

// Fetch loads every visible chart of p concurrently. A failing chart does
// not affect its siblings.
func (c *Coordinator) Fetch(ctx context.Context, p Pending) Frame {
	start := time.Now()
	panels := p.Snapshot.PanelVisibility()
	results := make([]ChartResult, len(query.Charts))

	var g errgroup.Group
	for i, cs := range query.Charts {
		results[i] = ChartResult{Spec: cs, Request: query.Build(p.Snapshot, cs.Chart)}
		if hidden(cs, panels) {
			results[i].Hidden = true
			continue
		}
		g.Go(func() error {
			c.load(ctx, p.Snapshot, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	c.metrics.ObserveReload(elapsed)
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	c.log.Info("reload done",
		zap.Uint64("generation", p.Generation),
		zap.Stringer("range", p.Snapshot.Range),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed))

	return Frame{
		Generation: p.Generation,
		Snapshot:   p.Snapshot,
		Charts:     results,
		Panels:     panels,
		Summary:    p.Snapshot.Summary(),
		Link:       filter.EncodeLink(p.Snapshot),
		Elapsed:    elapsed,
	}
}

func hidden(cs query.ChartSpec, panels filter.Panels) bool {
	if cs.Dimension != dataset.Country {
		return false
	}
	if cs.FixedVolatile {
		return !panels.Volatile
	}
	return !panels.Attacking
}

func (c *Coordinator) load(ctx context.Context, snap filter.Snapshot, r *ChartResult) {
	start := time.Now()
	defer func() { r.Elapsed = time.Since(start) }()

	if r.Spec.Dimension == "" {
		points, err := c.fetch.TotalAttacks(ctx, r.Request)
		if err != nil {
			r.Err = err
			c.log.Warn("chart failed", zap.String("chart", string(r.Spec.Chart)), zap.Error(err))
			return
		}
		pts := query.ZeroFill(snap.Range, points)
		var total float64
		for _, p := range pts {
			total += p.Attacks
		}
		r.Series = []dataset.Series{{Key: TotalKey, Points: pts, Total: total}}
		return
	}

	desc := dataset.MustDescribe(r.Spec.Dimension)
	rows, err := c.fetch.SeriesRows(ctx, r.Request, desc.SeriesKey)
	if err != nil {
		r.Err = err
		c.log.Warn("chart failed", zap.String("chart", string(r.Spec.Chart)), zap.Error(err))
		return
	}
	series := query.GroupSeries(snap.Range, rows)
	if c.topN > 0 && len(series) > c.topN {
		series = series[:c.topN]
	}
	r.Series = series
	r.Highlight = highlight(r.Spec, snap, series)
}

// highlight picks the series matching the chart's own dimension filter,
// falling back to the largest series.
func highlight(cs query.ChartSpec, snap filter.Snapshot, series []dataset.Series) string {
	if len(series) == 0 {
		return ""
	}
	if v, ok := snap.Filter(cs.Dimension); ok {
		for _, s := range series {
			if s.Key == v {
				return s.Key
			}
		}
	}
	return series[0].Key
}

// Accept installs f as the current frame unless a newer generation has been
// issued since it was prepared. Accepting a frame clears suppressed series.
func (c *Coordinator) Accept(f Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f.Generation != c.generation {
		c.metrics.ObserveStale()
		c.log.Debug("dropping stale frame",
			zap.Uint64("generation", f.Generation),
			zap.Uint64("current", c.generation))
		return false
	}
	c.current = f
	c.suppressed = make(map[query.Chart]map[string]bool)
	return true
}

// Current returns the last accepted frame.
func (c *Coordinator) Current() Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Coordinator) Suppressed(chart query.Chart, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suppressed[chart][key]
}

// Visible returns the series of r that are not suppressed.
func (c *Coordinator) Visible(r ChartResult) []dataset.Series {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := c.suppressed[r.Spec.Chart]
	if len(keys) == 0 {
		return r.Series
	}
	out := make([]dataset.Series, 0, len(r.Series))
	for _, s := range r.Series {
		if !keys[s.Key] {
			out = append(out, s)
		}
	}
	return out
}

// CanClearCountry reports whether removing the country filter is allowed.
// With an IP filter set, it is allowed only when that IP was seen in more
// than one country; a failed lookup disallows it.
func (c *Coordinator) CanClearCountry(ctx context.Context) bool {
	snap := c.Snapshot()
	if _, ok := snap.Filter(dataset.Country); !ok {
		return false
	}
	ip, ok := snap.Filter(dataset.IP)
	if !ok {
		return true
	}
	desc := dataset.MustDescribe(dataset.Country)
	rows, err := c.fetch.SeriesRows(ctx, query.CountriesOfIPRequest(snap.Range, ip), desc.SeriesKey)
	if err != nil {
		c.log.Warn("country lookup failed", zap.String("ip", ip), zap.Error(err))
		return false
	}
	return len(query.DistinctCountries(rows)) > 1
}

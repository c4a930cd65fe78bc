package view

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/filter"
	"github.com/keilerkonzept/sshdash/internal/metrics"
	"github.com/keilerkonzept/sshdash/internal/query"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []query.Request
	total []dataset.DailyCount
	rows  map[string][]dataset.SeriesRow
	fail  map[string]error
}

func (f *fakeFetcher) record(req query.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	return f.fail[req.Path]
}

func (f *fakeFetcher) TotalAttacks(_ context.Context, req query.Request) ([]dataset.DailyCount, error) {
	if err := f.record(req); err != nil {
		return nil, err
	}
	return f.total, nil
}

func (f *fakeFetcher) SeriesRows(_ context.Context, req query.Request, _ string) ([]dataset.SeriesRow, error) {
	if err := f.record(req); err != nil {
		return nil, err
	}
	return f.rows[req.Path], nil
}

func (f *fakeFetcher) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.Path)
	}
	sort.Strings(out)
	return out
}

var week = dataset.DateRange{Start: dataset.MustParseDate("2022-11-01"), End: dataset.MustParseDate("2022-11-05")}

func row(date, key string, attacks float64) dataset.SeriesRow {
	return dataset.SeriesRow{Date: dataset.MustParseDate(date), Key: key, Country: key, Attacks: attacks}
}

func newCoordinator(f *fakeFetcher, opts ...Option) *Coordinator {
	return New(filter.New(week), f, opts...)
}

func TestReloadFetchesEveryChart(t *testing.T) {
	f := &fakeFetcher{
		total: []dataset.DailyCount{
			{Date: dataset.MustParseDate("2022-11-02"), Attacks: 5},
			{Date: dataset.MustParseDate("2022-11-04"), Attacks: 3},
		},
		rows: map[string][]dataset.SeriesRow{
			"country_attacks": {row("2022-11-01", "CN", 1), row("2022-11-03", "US", 4), row("2022-11-04", "CN", 1)},
		},
	}
	c := newCoordinator(f)
	frame := c.Reload(context.Background())

	assert.Equal(t, []string{
		"asn_attacks", "country_attacks", "ip_attacks", "total_attacks", "unusual_countries", "username_attacks",
	}, f.paths())
	require.Len(t, frame.Charts, len(query.Charts))

	total, ok := frame.Chart(query.Total)
	require.True(t, ok)
	require.Len(t, total.Series, 1)
	assert.Equal(t, []float64{0, 5, 0, 3, 0}, total.Series[0].Values())
	assert.Equal(t, 8.0, total.Series[0].Total)

	countries, _ := frame.Chart(query.Countries)
	require.Len(t, countries.Series, 2)
	assert.Equal(t, "US", countries.Series[0].Key)
	assert.Equal(t, "US", countries.Highlight)
	assert.Equal(t, filter.Panels{Attacking: true, Volatile: true}, frame.Panels)
	assert.Equal(t, "Active Filters: Date: 2022-11-01 to 2022-11-05", frame.Summary)
	assert.True(t, c.Accept(frame))
	assert.Equal(t, frame.Generation, c.Current().Generation)
}

func TestFailingChartIsIsolated(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeFetcher{
		rows: map[string][]dataset.SeriesRow{"username_attacks": {row("2022-11-01", "root", 9)}},
		fail: map[string]error{"ip_attacks": boom},
	}
	frame := newCoordinator(f).Reload(context.Background())

	ips, _ := frame.Chart(query.IPs)
	assert.ErrorIs(t, ips.Err, boom)
	assert.Empty(t, ips.Series)

	users, _ := frame.Chart(query.Usernames)
	assert.NoError(t, users.Err)
	require.Len(t, users.Series, 1)
	assert.Equal(t, "root", users.Series[0].Key)
}

func TestStaleFramesAreDropped(t *testing.T) {
	m := metrics.NewFetch(4)
	c := newCoordinator(&fakeFetcher{}, WithMetrics(m))
	ctx := context.Background()

	first := c.Prepare()
	second := c.Prepare()
	late := c.Fetch(ctx, first)
	fresh := c.Fetch(ctx, second)

	assert.True(t, c.Accept(fresh))
	assert.False(t, c.Accept(late))
	assert.Equal(t, second.Generation, c.Current().Generation)
	assert.Equal(t, uint64(1), m.Snapshot().Stale)
	assert.Equal(t, uint64(2), m.Snapshot().Reloads)
}

func TestEntitySelection(t *testing.T) {
	f := &fakeFetcher{}
	c := newCoordinator(f)

	reload, err := c.Handle(EntitySelected{Chart: query.VolatileCountries, Key: "RU"})
	require.NoError(t, err)
	assert.True(t, reload)
	snap := c.Snapshot()
	v, _ := snap.Filter(dataset.Country)
	assert.Equal(t, "RU", v)
	assert.True(t, snap.FromVolatile)

	frame := c.Reload(context.Background())
	assert.Equal(t, filter.Panels{Volatile: true}, frame.Panels)
	attacking, _ := frame.Chart(query.Countries)
	assert.True(t, attacking.Hidden)
	volatile, _ := frame.Chart(query.VolatileCountries)
	assert.Equal(t, "RU", volatile.Request.Params.Get("country"))
	assert.NotContains(t, f.paths(), "country_attacks")

	ips, _ := frame.Chart(query.IPs)
	assert.Equal(t, "RU", ips.Request.Params.Get("country"))

	// same country from the same panel toggles off
	_, err = c.Handle(EntitySelected{Chart: query.VolatileCountries, Key: "RU"})
	require.NoError(t, err)
	_, ok := c.Snapshot().Filter(dataset.Country)
	assert.False(t, ok)

	// and from the other panel as well
	_, err = c.Handle(EntitySelected{Chart: query.VolatileCountries, Key: "RU"})
	require.NoError(t, err)
	reload, err = c.Handle(EntitySelected{Chart: query.Countries, Key: "RU"})
	require.NoError(t, err)
	assert.True(t, reload)
	_, ok = c.Snapshot().Filter(dataset.Country)
	assert.False(t, ok)
	assert.False(t, c.Snapshot().FromVolatile)

	reload, err = c.Handle(EntitySelected{Chart: query.Total, Key: "Total"})
	require.NoError(t, err)
	assert.False(t, reload)

	_, err = c.Handle(EntitySelected{Chart: "nope", Key: "x"})
	assert.Error(t, err)
}

func TestHighlightFollowsOwnFilter(t *testing.T) {
	f := &fakeFetcher{
		rows: map[string][]dataset.SeriesRow{
			"ip_attacks": {row("2022-11-01", "1.1.1.1", 10), row("2022-11-01", "2.2.2.2", 1)},
		},
	}
	c := newCoordinator(f)
	_, err := c.Handle(EntitySelected{Chart: query.IPs, Key: "2.2.2.2"})
	require.NoError(t, err)

	ips, _ := c.Reload(context.Background()).Chart(query.IPs)
	assert.Empty(t, ips.Request.Params.Get("ip"))
	assert.Equal(t, "2.2.2.2", ips.Highlight)
}

func TestTopNCapsSeries(t *testing.T) {
	f := &fakeFetcher{
		rows: map[string][]dataset.SeriesRow{
			"asn_attacks": {row("2022-11-01", "a", 3), row("2022-11-01", "b", 2), row("2022-11-01", "c", 1)},
		},
	}
	asns, _ := newCoordinator(f, WithTopN(2)).Reload(context.Background()).Chart(query.ASNs)
	require.Len(t, asns.Series, 2)
	assert.Equal(t, "b", asns.Series[1].Key)
}

func TestSuppressionIsClearedByReload(t *testing.T) {
	f := &fakeFetcher{
		rows: map[string][]dataset.SeriesRow{
			"ip_attacks": {row("2022-11-01", "1.1.1.1", 10), row("2022-11-01", "2.2.2.2", 1)},
		},
	}
	c := newCoordinator(f)
	frame := c.Reload(context.Background())
	require.True(t, c.Accept(frame))
	ips, _ := frame.Chart(query.IPs)

	reload, err := c.Handle(EntitySuppressed{Chart: query.IPs, Key: "1.1.1.1"})
	require.NoError(t, err)
	assert.False(t, reload)
	assert.True(t, c.Suppressed(query.IPs, "1.1.1.1"))
	visible := c.Visible(ips)
	require.Len(t, visible, 1)
	assert.Equal(t, "2.2.2.2", visible[0].Key)
	_, ok := c.Snapshot().Filter(dataset.IP)
	assert.False(t, ok)

	require.True(t, c.Accept(c.Reload(context.Background())))
	assert.False(t, c.Suppressed(query.IPs, "1.1.1.1"))
	assert.Len(t, c.Visible(ips), 2)
}

func TestHistoryAndResetEvents(t *testing.T) {
	c := newCoordinator(&fakeFetcher{})

	reload, err := c.Handle(GoBack{})
	require.NoError(t, err)
	assert.False(t, reload)

	_, err = c.Handle(DateRangeSelected{Start: dataset.MustParseDate("2022-11-03"), End: dataset.MustParseDate("2022-11-02")})
	require.NoError(t, err)
	assert.Equal(t, "2022-11-02 to 2022-11-03", c.Snapshot().Range.String())

	_, err = c.Handle(DateRangeSelected{})
	assert.ErrorIs(t, err, filter.ErrInvalidRange)

	reload, err = c.Handle(GoBack{})
	require.NoError(t, err)
	assert.True(t, reload)
	assert.Equal(t, week, c.Snapshot().Range)

	_, err = c.Handle(ToggleViewMode{Dimension: dataset.IP})
	require.NoError(t, err)
	assert.Equal(t, filter.Volatile, c.Snapshot().Mode(dataset.IP))
	_, err = c.Handle(ToggleViewMode{Dimension: "planet"})
	assert.ErrorIs(t, err, dataset.ErrUnknownDimension)

	_, err = c.Handle(EntitySelected{Chart: query.Usernames, Key: "admin"})
	require.NoError(t, err)
	reload, err = c.Handle(ClearFilter{Dimension: dataset.Username})
	require.NoError(t, err)
	assert.True(t, reload)
	reload, err = c.Handle(ClearFilter{Dimension: dataset.Username})
	require.NoError(t, err)
	assert.False(t, reload)

	_, err = c.Handle(Reset{})
	require.NoError(t, err)
	assert.Equal(t, filter.Attacking, c.Snapshot().Mode(dataset.IP))
}

func TestApplyLinkEvent(t *testing.T) {
	c := newCoordinator(&fakeFetcher{})
	reload, err := c.Handle(ApplyLink{Query: "http://localhost/?start=2022-11-02&end=2022-11-03&country=China"})
	require.NoError(t, err)
	assert.True(t, reload)
	snap := c.Snapshot()
	v, _ := snap.Filter(dataset.Country)
	assert.Equal(t, "China", v)
	assert.Equal(t, 0, snap.HistoryDepth)
	assert.Equal(t, "country=China&end=2022-11-03&start=2022-11-02", c.Reload(context.Background()).Link)
}

func TestCanClearCountry(t *testing.T) {
	ctx := context.Background()
	f := &fakeFetcher{rows: map[string][]dataset.SeriesRow{}}
	c := newCoordinator(f)

	assert.False(t, c.CanClearCountry(ctx), "nothing to clear")

	_, err := c.Handle(EntitySelected{Chart: query.Countries, Key: "CN"})
	require.NoError(t, err)
	assert.True(t, c.CanClearCountry(ctx))

	_, err = c.Handle(EntitySelected{Chart: query.IPs, Key: "1.2.3.4"})
	require.NoError(t, err)

	f.rows["country_attacks"] = []dataset.SeriesRow{row("2022-11-01", "CN", 1), row("2022-11-02", "CN", 2)}
	assert.False(t, c.CanClearCountry(ctx))

	f.rows["country_attacks"] = append(f.rows["country_attacks"], row("2022-11-02", "HK", 2))
	assert.True(t, c.CanClearCountry(ctx))

	f.fail = map[string]error{"country_attacks": errors.New("down")}
	assert.False(t, c.CanClearCountry(ctx))
}

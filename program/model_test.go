package main

import (
	"context"
	"testing"

	tui "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/query"
)

func newTestModel(t *testing.T, routes map[string]string) *model {
	t.Helper()
	a := testApp(t, routes)
	ctx := context.Background()
	m := newModel(ctx, a, a.coordinator(ctx))
	m.resize(120, 40)
	run(t, m, m.Init())
	return m
}

// run executes cmd and feeds its message back into the model, the way the
// program loop would.
func run(t *testing.T, m *model, cmd tui.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if msg == nil {
		return
	}
	_, next := m.Update(msg)
	if _, ok := msg.(frameMsg); ok {
		run(t, m, next)
	}
}

func press(t *testing.T, m *model, k tui.KeyMsg) {
	t.Helper()
	_, cmd := m.Update(k)
	run(t, m, cmd)
}

func runes(s string) tui.KeyMsg { return tui.KeyMsg{Type: tui.KeyRunes, Runes: []rune(s)} }

var (
	enter     = tui.KeyMsg{Type: tui.KeyEnter}
	down      = tui.KeyMsg{Type: tui.KeyDown}
	tab       = tui.KeyMsg{Type: tui.KeyTab}
	backspace = tui.KeyMsg{Type: tui.KeyBackspace}
)

func TestModelShowsFirstFrame(t *testing.T) {
	m := newTestModel(t, fixture)
	assert.False(t, m.loading)
	assert.Equal(t, uint64(1), m.frame.Generation)
	assert.Len(t, m.list.Items(), 5)

	press(t, m, tab)
	assert.Equal(t, query.Countries, m.chartSpec().Chart)
	items := m.list.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "China", items[0].(listItem).key)
	assert.Contains(t, items[0].(listItem).Description(), "●")
	assert.NotEmpty(t, m.trending)
	assert.Contains(t, m.View(), "Top Attacking Countries")
}

func TestModelSelectsEntity(t *testing.T) {
	m := newTestModel(t, fixture)
	press(t, m, tab)
	press(t, m, enter)

	c, ok := m.frame.Snapshot.Filter(dataset.Country)
	require.True(t, ok)
	assert.Equal(t, "China", c)
	vol, _ := m.frame.Chart(query.VolatileCountries)
	assert.True(t, vol.Hidden)
	// No IP filter, so the country may be cleared.
	assert.True(t, m.canClearCountry)

	press(t, m, runes("c"))
	_, ok = m.frame.Snapshot.Filter(dataset.Country)
	assert.False(t, ok)
}

func TestModelBrushSelectsRange(t *testing.T) {
	m := newTestModel(t, fixture)
	press(t, m, down)
	press(t, m, runes("b"))
	assert.True(t, m.brushing)
	press(t, m, down)
	press(t, m, down)
	assert.Contains(t, m.labels(), "2022-11-02 → 2022-11-04")
	press(t, m, enter)

	r := m.frame.Snapshot.Range
	assert.Equal(t, "2022-11-02", r.Start.String())
	assert.Equal(t, "2022-11-04", r.End.String())
	assert.Equal(t, 1, m.frame.Snapshot.HistoryDepth)
	assert.Len(t, m.list.Items(), 3)

	press(t, m, backspace)
	assert.Equal(t, 5, m.frame.Snapshot.Range.Days())
	press(t, m, backspace)
	assert.Equal(t, "no earlier date range", m.status)
}

func TestModelSuppressDoesNotReload(t *testing.T) {
	m := newTestModel(t, fixture)
	press(t, m, tab)
	gen := m.frame.Generation
	press(t, m, runes("x"))
	assert.Equal(t, gen, m.frame.Generation)
	assert.True(t, m.coord.Suppressed(query.Countries, "China"))
	assert.Contains(t, m.list.Items()[0].(listItem).Description(), "hidden")
}

func TestModelDropsStaleFrames(t *testing.T) {
	m := newTestModel(t, fixture)
	first := m.reload()
	second := m.reload()

	_, _ = m.Update(first())
	assert.Equal(t, uint64(1), m.frame.Generation)
	assert.True(t, m.loading)

	_, _ = m.Update(second())
	assert.Equal(t, uint64(3), m.frame.Generation)
	assert.False(t, m.loading)
}

func TestModelViewModeAndErrors(t *testing.T) {
	m := newTestModel(t, without(fixture, "/api/ip_attacks_volatile"))
	press(t, m, tab)
	press(t, m, tab)
	assert.Equal(t, query.VolatileCountries, m.chartSpec().Chart)
	press(t, m, runes("v"))
	assert.Equal(t, "this panel always shows volatile countries", m.status)

	press(t, m, tab)
	press(t, m, runes("v"))
	r, _ := m.result()
	assert.Equal(t, "ip_attacks_volatile", r.Request.Path)
	require.Error(t, r.Err)
	assert.Contains(t, m.plotView(), "failed")
	assert.Empty(t, m.list.Items())
}

func TestModelDiscoverySelectsIntoDashboard(t *testing.T) {
	m := newTestModel(t, fixture)
	press(t, m, runes("d"))
	require.True(t, m.showDiscovery)
	assert.Equal(t, 3, m.discovery.table.Len())
	assert.Contains(t, m.View(), "DISCOVERY")

	press(t, m, down)
	press(t, m, enter)
	assert.False(t, m.showDiscovery)
	assert.Equal(t, query.Countries, m.chartSpec().Chart)
	c, _ := m.frame.Snapshot.Filter(dataset.Country)
	assert.Equal(t, "Brazil", c)
}

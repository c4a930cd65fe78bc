package main

import (
	"math"
	"testing"

	plot "github.com/chriskim06/drawille-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/sshdash/internal/dataset"
)

func TestComputePaneWidths(t *testing.T) {
	cases := []struct {
		total, split, left, right int
	}{
		{100, 35, 35, 65},
		{100, 10, 18, 82},
		{100, 95, 82, 18},
		{30, 50, 15, 15},
		{1, 50, 1, 1},
	}
	for _, c := range cases {
		left, right := computePaneWidths(c.total, c.split)
		assert.Equal(t, c.left, left, "left of %d@%d%%", c.total, c.split)
		assert.Equal(t, c.right, right, "right of %d@%d%%", c.total, c.split)
	}
}

func TestBrushSpanOrdersIndexes(t *testing.T) {
	r := dataset.DateRange{Start: dataset.MustParseDate("2022-11-29"), End: dataset.MustParseDate("2022-12-05")}
	start, end := brushSpan(r, 4, 1)
	assert.Equal(t, "2022-11-30", start.String())
	assert.Equal(t, "2022-12-03", end.String())
}

func TestEntityLabel(t *testing.T) {
	assert.Equal(t, "1.2.3.4", entityLabel(dataset.IP, "1.2.3.4"))
	assert.Equal(t, "Atlantis", entityLabel(dataset.Country, "Atlantis"))
	assert.Equal(t, "China (CN)", entityLabel(dataset.Country, "China"))
	assert.Contains(t, entityLabel(dataset.Country, "CN"), "China")
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "▁▅█", sparkline([]float64{0, 5, 10}))
	assert.Equal(t, "▁▁", sparkline([]float64{0, 0}))
	assert.Empty(t, sparkline(nil))
}

func TestPlotSeriesDrawsHighlightLast(t *testing.T) {
	mk := func(key string, v ...float64) dataset.Series {
		s := dataset.Series{Key: key}
		for _, x := range v {
			s.Points = append(s.Points, dataset.DailyCount{Attacks: x})
		}
		return s
	}
	series := []dataset.Series{mk("a", 1, 2), mk("b", 0, math.E), mk("c", 3, 4)}

	data, colors := plotSeries(series, "b", false, plot.Red, plot.DimGray)
	require.Len(t, data, 3)
	assert.Equal(t, []float64{1, 2}, data[0])
	assert.Equal(t, []float64{3, 4}, data[1])
	assert.Equal(t, []float64{0, math.E}, data[2])
	assert.Equal(t, []plot.Color{plot.DimGray, plot.DimGray, plot.Red}, colors)

	data, _ = plotSeries(series, "b", true, plot.Red, plot.DimGray)
	assert.InDelta(t, 0, data[2][0], 1e-9)
	assert.InDelta(t, 1, data[2][1], 1e-9)

	_, colors = plotSeries(series, "missing", false, plot.Red, plot.DimGray)
	assert.NotContains(t, colors, plot.Red)
}

func TestPlotLabelsFallBackWhenNarrow(t *testing.T) {
	r := dataset.DateRange{Start: dataset.MustParseDate("2022-11-01"), End: dataset.MustParseDate("2022-11-30")}
	wide := plotLabels(80, r, false)
	assert.Contains(t, wide, "2022-11-01")
	assert.Contains(t, wide, "2022-11-30")

	medium := plotLabels(24, r, false)
	assert.Contains(t, medium, "11/01")
	assert.NotContains(t, medium, "2022")

	narrow := plotLabels(8, r, true)
	assert.Contains(t, narrow, "LOG")
	assert.NotContains(t, narrow, "11/01")
}

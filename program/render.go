package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/biter777/countries"
	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"
	"github.com/dustin/go-humanize"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/query"
	"github.com/keilerkonzept/sshdash/internal/trend"
)

var (
	selectedColor = styles.AdaptiveColor{Light: "0", Dark: "9"}
	borderColor   = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	selectedFg    = styles.NewStyle().Foreground(selectedColor)
	borderFg      = styles.NewStyle().Foreground(borderColor)
	errorFg       = styles.NewStyle().Foreground(styles.AdaptiveColor{Light: "1", Dark: "9"})
	plotStyle     = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)
)

// lineColors returns the accent and the muted line color for the
// terminal's background.
func lineColors() (highlight, dim plot.Color) {
	if styles.DefaultRenderer().HasDarkBackground() {
		return plot.Red, plot.DimGray
	}
	return plot.Black, plot.LightGray
}

// plotSeries lays the series out for the canvas. The highlighted series is
// drawn last so it stays on top.
func plotSeries(series []dataset.Series, highlightKey string, logScale bool, highlight, dim plot.Color) ([][]float64, []plot.Color) {
	data := make([][]float64, 0, len(series))
	colors := make([]plot.Color, 0, len(series))
	var top []float64
	for _, s := range series {
		values := scaled(s.Values(), logScale)
		if s.Key == highlightKey && top == nil {
			top = values
			continue
		}
		data = append(data, values)
		colors = append(colors, dim)
	}
	if top != nil {
		data = append(data, top)
		colors = append(colors, highlight)
	}
	return data, colors
}

func scaled(values []float64, logScale bool) []float64 {
	if !logScale {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Log(max(1, v))
	}
	return out
}

// plotLabels renders the range ends around the scale indicator, falling
// back to shorter labels when the pane is narrow.
func plotLabels(w int, r dataset.DateRange, logScale bool) string {
	linColor, logColor := selectedFg, borderFg
	if logScale {
		linColor, logColor = borderFg, selectedFg
	}
	linLog := linColor.Render("LIN") + " " + logColor.Render("LOG")

	leftLabel, rightLabel := r.Start.String(), r.End.String()
	minWidth := len(leftLabel) + len(rightLabel) + len("LIN LOG") + 4
	if w < minWidth {
		leftLabel, rightLabel = r.Start.Short(), r.End.Short()
		minWidth = len(leftLabel) + len(rightLabel) + len("LIN LOG") + 4
	}
	if w < minWidth {
		return " " + linLog
	}
	spaceTotal := max(2, w-(len(leftLabel)+len(rightLabel)+len("LIN LOG")))
	leftGap := spaceTotal / 2
	rightGap := spaceTotal - leftGap
	return borderFg.Render(leftLabel) +
		strings.Repeat(" ", leftGap) +
		linLog +
		strings.Repeat(" ", rightGap) +
		borderFg.Render(rightLabel)
}

// brushSpan orders two day indexes of r into a date range.
func brushSpan(r dataset.DateRange, a, b int) (dataset.Date, dataset.Date) {
	if a > b {
		a, b = b, a
	}
	return r.Start.AddDays(a), r.Start.AddDays(b)
}

// entityLabel decorates country values with the resolved country name or
// code; other dimensions are shown as they are.
func entityLabel(dim dataset.Dimension, v string) string {
	if dim != dataset.Country {
		return v
	}
	c := countries.ByName(v)
	if c == countries.Unknown {
		return v
	}
	if code := c.Alpha2(); !strings.EqualFold(code, v) {
		return fmt.Sprintf("%s (%s)", v, code)
	}
	return fmt.Sprintf("%s (%s)", v, c.String())
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func sparkline(values []float64) string {
	var peak float64
	for _, v := range values {
		peak = max(peak, v)
	}
	var sb strings.Builder
	for _, v := range values {
		i := 0
		if peak > 0 {
			i = int(math.Round(v / peak * float64(len(sparkRunes)-1)))
		}
		sb.WriteRune(sparkRunes[i])
	}
	return sb.String()
}

func trendLine(dim dataset.Dimension, items []trend.Item, days, limit int) string {
	if len(items) == 0 {
		return borderFg.Render("trending: -")
	}
	parts := make([]string, 0, limit)
	for i, it := range items {
		if i == limit {
			break
		}
		parts = append(parts, fmt.Sprintf("%s %s %s",
			entityLabel(dim, it.Key), sparkline(it.Spark), humanize.Comma(int64(it.Count))))
	}
	return fmt.Sprintf("trending (last %dd): %s", days, strings.Join(parts, " | "))
}

func tabBar(active int) string {
	parts := make([]string, len(query.Charts))
	for i, cs := range query.Charts {
		label := fmt.Sprintf("%d %s", i+1, cs.Title)
		if i == active {
			parts[i] = selectedFg.Bold(true).Render(label)
		} else {
			parts[i] = borderFg.Render(label)
		}
	}
	return strings.Join(parts, borderFg.Render(" · "))
}

func formatMetricDuration(d time.Duration) string {
	if d <= 0 {
		return "0.000ms"
	}
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}

func computePaneWidths(totalWidth int, splitPercent int) (left, right int) {
	if totalWidth <= 1 {
		return 1, 1
	}
	left = min(totalWidth-1, max(1, totalWidth*splitPercent/100))
	right = totalWidth - left

	// Keep panes readable when the terminal is wide enough.
	const minPane = 18
	if totalWidth >= minPane*2 {
		if left < minPane {
			left = minPane
			right = totalWidth - left
		}
		if right < minPane {
			right = minPane
			left = totalWidth - right
		}
	}
	return max(1, left), max(1, right)
}

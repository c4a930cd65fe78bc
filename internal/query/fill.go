package query

import (
	"sort"

	"github.com/keilerkonzept/sshdash/internal/dataset"
)

// ZeroFill returns one point per day of r, in order. Values of points that
// share a date are summed, days without points are 0, and points outside r
// are dropped.
func ZeroFill(r dataset.DateRange, points []dataset.DailyCount) []dataset.DailyCount {
	sums := make(map[int64]float64, len(points))
	for _, p := range points {
		sums[p.Date.Ordinal()] += p.Attacks
	}
	out := make([]dataset.DailyCount, 0, r.Days())
	r.Each(func(d dataset.Date) {
		out = append(out, dataset.DailyCount{Date: d, Attacks: sums[d.Ordinal()]})
	})
	return out
}

// GroupSeries splits rows by entity key and zero-fills every group over r.
// Series are ordered by descending total, then key.
func GroupSeries(r dataset.DateRange, rows []dataset.SeriesRow) []dataset.Series {
	groups := make(map[string][]dataset.DailyCount)
	var keys []string
	for _, row := range rows {
		if row.Key == "" {
			continue
		}
		if _, ok := groups[row.Key]; !ok {
			keys = append(keys, row.Key)
		}
		groups[row.Key] = append(groups[row.Key], dataset.DailyCount{Date: row.Date, Attacks: row.Attacks})
	}

	out := make([]dataset.Series, 0, len(keys))
	for _, k := range keys {
		pts := ZeroFill(r, groups[k])
		var total float64
		for _, p := range pts {
			total += p.Attacks
		}
		out = append(out, dataset.Series{Key: k, Points: pts, Total: total})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// DistinctCountries returns the distinct non-empty country values of rows.
func DistinctCountries(rows []dataset.SeriesRow) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		if row.Country == "" {
			continue
		}
		if _, ok := seen[row.Country]; ok {
			continue
		}
		seen[row.Country] = struct{}{}
		out = append(out, row.Country)
	}
	return out
}

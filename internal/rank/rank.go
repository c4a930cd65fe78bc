// Package rank orders discovery-table rows by one column, or by the average
// of per-column tournament ranks when several columns are selected.
package rank

import (
	"sort"
	"strings"

	"github.com/keilerkonzept/sshdash/internal/dataset"
)

// IDFunc extracts the entity key used in rank maps.
type IDFunc func(dataset.RankEntity) string

// ByDimension keys entities by the dimension's own identifier.
func ByDimension(d dataset.Dimension) IDFunc {
	return func(e dataset.RankEntity) string { return e.ID(d) }
}

// Entry is the per-entity breakdown of a multi-column sort.
type Entry struct {
	Entity  dataset.RankEntity
	AvgRank float64
	// Ranks holds one rank per sort column, in column order.
	Ranks []int
}

// Result of Sort. Breakdown is nil for single-column sorts.
type Result struct {
	Rows      []dataset.RankEntity
	Breakdown []Entry
}

// key is a column value normalized for comparison: lower-cased strings,
// dates as day ordinals.
type key struct {
	missing bool
	num     float64
	str     string
}

func keyOf(e dataset.RankEntity, c Column) key {
	v, ok := e.Field(c.Key)
	if !ok {
		return key{missing: true}
	}
	switch c.Type {
	case String:
		s, _ := v.(string)
		return key{str: strings.ToLower(s)}
	case Date:
		d, _ := v.(dataset.Date)
		return key{num: float64(d.Ordinal())}
	default:
		f, _ := v.(float64)
		return key{num: f}
	}
}

func (k key) equal(o key) bool {
	if k.missing || o.missing {
		return k.missing == o.missing
	}
	return k.num == o.num && k.str == o.str
}

// less reports a < b. Both must be present.
func (k key) less(o key, t ValueType) bool {
	if t == String {
		return k.str < o.str
	}
	return k.num < o.num
}

// ranks computes the tournament rank of every row of data under c's
// semantic direction, indexed like data. Missing values rank last.
func ranks(data []dataset.RankEntity, c Column) []int {
	keys := make([]key, len(data))
	order := make([]int, len(data))
	for i := range data {
		keys[i] = keyOf(data[i], c)
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := keys[order[i]], keys[order[j]]
		if a.missing || b.missing {
			return !a.missing && b.missing
		}
		if c.AscendingIsBetter {
			return a.less(b, c.Type)
		}
		return b.less(a, c.Type)
	})

	out := make([]int, len(data))
	current := 0
	for pos, idx := range order {
		if pos == 0 || !keys[idx].equal(keys[order[pos-1]]) {
			current = pos + 1
		}
		out[idx] = current
	}
	return out
}

// RankColumn ranks data by c. Equal values share a rank and the next
// distinct value takes its 1-indexed position ("1224" ranking).
func RankColumn(data []dataset.RankEntity, c Column, id IDFunc) map[string]int {
	r := ranks(data, c)
	out := make(map[string]int, len(data))
	for i, e := range data {
		out[id(e)] = r[i]
	}
	return out
}

// Sort orders a copy of data. With one column the order follows dir
// literally; with several, rows are ordered by their mean rank, best first
// for Desc. Equal keys keep their input order. columns must not be empty.
func Sort(data []dataset.RankEntity, columns []Column, dir Direction) Result {
	if len(columns) == 1 {
		return Result{Rows: sortSingle(data, columns[0], dir)}
	}

	perColumn := make([][]int, len(columns))
	for i, c := range columns {
		perColumn[i] = ranks(data, c)
	}
	entries := make([]Entry, len(data))
	for i, e := range data {
		rs := make([]int, len(columns))
		sum := 0
		for j := range columns {
			rs[j] = perColumn[j][i]
			sum += rs[j]
		}
		entries[i] = Entry{
			Entity:  e,
			AvgRank: float64(sum) / float64(len(columns)),
			Ranks:   rs,
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if dir == Desc {
			return entries[i].AvgRank < entries[j].AvgRank
		}
		return entries[i].AvgRank > entries[j].AvgRank
	})

	rows := make([]dataset.RankEntity, len(entries))
	for i := range entries {
		rows[i] = entries[i].Entity
	}
	return Result{Rows: rows, Breakdown: entries}
}

func sortSingle(data []dataset.RankEntity, c Column, dir Direction) []dataset.RankEntity {
	keys := make([]key, len(data))
	idx := make([]int, len(data))
	for i := range data {
		idx[i] = i
		keys[i] = keyOf(data[i], c)
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		if a.missing || b.missing {
			return !a.missing && b.missing
		}
		if dir == Asc {
			return a.less(b, c.Type)
		}
		return b.less(a, c.Type)
	})
	out := make([]dataset.RankEntity, len(data))
	for i, j := range idx {
		out[i] = data[j]
	}
	return out
}

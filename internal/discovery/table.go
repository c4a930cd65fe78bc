// Package discovery holds the state of the ranked entity table: the active
// dimension, a name search, the sort columns and pagination.
package discovery

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/rank"
)

const DefaultPageSize = 50

// metricKeys are the table columns after the entity name, in display order.
var metricKeys = []string{
	"total_attacks",
	"avg_daily",
	"persistence_pct",
	"max_absolute_change",
	"max_pct_change",
	"recent_attacks",
	"first_seen",
	"last_seen",
	"max_daily",
}

// Row is one table row with its 1-based position in the sorted list.
type Row struct {
	Rank   int
	Entity dataset.RankEntity
}

type Table struct {
	dim    dataset.Dimension
	all    []dataset.RankEntity
	search string

	columns   []rank.Column
	dir       rank.Direction
	rows      []dataset.RankEntity
	breakdown []rank.Entry

	page     int
	pageSize int
}

func NewTable(dim dataset.Dimension) *Table {
	t := &Table{dim: dim, pageSize: DefaultPageSize}
	t.resetSort()
	return t
}

func (t *Table) resetSort() {
	t.columns = []rank.Column{rank.DefaultColumn}
	t.dir = rank.Desc
}

func (t *Table) Dimension() dataset.Dimension { return t.dim }

// SwitchDimension drops the loaded rows and starts over on page 1.
func (t *Table) SwitchDimension(dim dataset.Dimension) {
	t.dim = dim
	t.all = nil
	t.page = 0
	t.resetSort()
	t.apply()
}

// SetRows replaces the loaded rows and restores the default sort.
func (t *Table) SetRows(rows []dataset.RankEntity) {
	t.all = rows
	t.resetSort()
	t.apply()
}

// AppendRows adds a loaded batch, keeping the current sort and page.
func (t *Table) AppendRows(rows []dataset.RankEntity) {
	t.all = append(t.all, rows...)
	page := t.page
	t.apply()
	t.page = min(page, max(0, t.PageCount()-1))
}

// SetSearch filters rows by a case-insensitive substring of the entity name.
func (t *Table) SetSearch(term string) {
	t.search = strings.TrimSpace(term)
	t.apply()
}

func (t *Table) Search() string { return t.search }

// ToggleSort changes the sort columns for a click on key. With multi, key is
// added or removed, falling back to total_attacks when nothing is left.
// Otherwise a click on the sole sort column flips the direction and any
// other click sorts by key alone, descending.
func (t *Table) ToggleSort(key string, multi bool) error {
	col, ok := rank.Lookup(key)
	if !ok {
		return fmt.Errorf("unknown sort column %q", key)
	}
	if multi {
		if i := t.sortIndex(key); i >= 0 {
			t.columns = append(t.columns[:i:i], t.columns[i+1:]...)
			if len(t.columns) == 0 {
				t.columns = []rank.Column{rank.DefaultColumn}
			}
		} else {
			t.columns = append(t.columns, col)
		}
	} else if len(t.columns) == 1 && t.columns[0].Key == key {
		t.dir = t.dir.Flip()
	} else {
		t.columns = []rank.Column{col}
		t.dir = rank.Desc
	}
	t.sort()
	return nil
}

// SetSort replaces the sort columns and direction.
func (t *Table) SetSort(columns []rank.Column, dir rank.Direction) {
	if len(columns) == 0 {
		columns = []rank.Column{rank.DefaultColumn}
	}
	t.columns = append([]rank.Column(nil), columns...)
	t.dir = dir
	t.sort()
}

func (t *Table) sortIndex(key string) int {
	for i, c := range t.columns {
		if c.Key == key {
			return i
		}
	}
	return -1
}

func (t *Table) SortColumns() []rank.Column { return append([]rank.Column(nil), t.columns...) }

func (t *Table) Direction() rank.Direction { return t.dir }

// Indicator is the header suffix of key: an arrow for a single sort column,
// the 1-based position for multi-column sorts.
func (t *Table) Indicator(key string) string {
	i := t.sortIndex(key)
	switch {
	case i < 0:
		return ""
	case len(t.columns) == 1:
		return " " + t.dir.Arrow()
	default:
		return fmt.Sprintf(" [%d]", i+1)
	}
}

func (t *Table) apply() {
	needle := strings.ToLower(t.search)
	rows := make([]dataset.RankEntity, 0, len(t.all))
	for _, e := range t.all {
		if needle == "" || strings.Contains(strings.ToLower(e.ID(t.dim)), needle) {
			rows = append(rows, e)
		}
	}
	t.rows = rows
	t.page = 0
	t.sort()
}

func (t *Table) sort() {
	res := rank.Sort(t.rows, t.columns, t.dir)
	t.rows = res.Rows
	t.breakdown = res.Breakdown
}

// Rows returns every filtered row in sorted order.
func (t *Table) Rows() []dataset.RankEntity { return t.rows }

// Len is the number of rows after the search filter.
func (t *Table) Len() int { return len(t.rows) }

// Total is the number of loaded rows.
func (t *Table) Total() int { return len(t.all) }

// Breakdown is the per-column ranking of a multi-column sort, nil otherwise.
func (t *Table) Breakdown() []rank.Entry { return t.breakdown }

func (t *Table) PageSize() int { return t.pageSize }

func (t *Table) SetPageSize(n int) error {
	if n < 1 {
		return fmt.Errorf("page size must be positive, got %d", n)
	}
	t.pageSize = n
	t.page = 0
	return nil
}

// PageNumber is 1-based.
func (t *Table) PageNumber() int { return t.page + 1 }

func (t *Table) PageCount() int {
	return (len(t.rows) + t.pageSize - 1) / t.pageSize
}

func (t *Table) NextPage() bool {
	if t.page+1 >= t.PageCount() {
		return false
	}
	t.page++
	return true
}

func (t *Table) PrevPage() bool {
	if t.page == 0 {
		return false
	}
	t.page--
	return true
}

// Page returns the rows of the current page.
func (t *Table) Page() []Row {
	start := t.page * t.pageSize
	if start >= len(t.rows) {
		return nil
	}
	end := min(start+t.pageSize, len(t.rows))
	out := make([]Row, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, Row{Rank: i + 1, Entity: t.rows[i]})
	}
	return out
}

// Header returns the column labels of the table, sort indicators included.
func (t *Table) Header() []string {
	desc := dataset.MustDescribe(t.dim)
	out := []string{"Rank", desc.Label + t.Indicator(desc.SummaryKey)}
	for _, key := range metricKeys {
		c := rank.MustLookup(key)
		label := c.Label
		if key == "persistence_pct" {
			label = "Persistence"
		}
		out = append(out, label+t.Indicator(key))
	}
	return out
}

// SortKeys lists the sortable keys in header order, entity name first.
func (t *Table) SortKeys() []string {
	return append([]string{dataset.MustDescribe(t.dim).SummaryKey}, metricKeys...)
}

// Cells formats r for display in Header order.
func (t *Table) Cells(r Row) []string {
	e := r.Entity
	name := e.ID(t.dim)
	if name == "" {
		name = "-"
	}
	persistence := formatNumber(orZero(e.PersistencePct)) + "%"
	if e.ActiveDays != nil && *e.ActiveDays > 0 {
		persistence += fmt.Sprintf(" (%sd)", formatNumber(*e.ActiveDays))
	}
	return []string{
		fmt.Sprint(r.Rank),
		name,
		formatPtr(e.TotalAttacks),
		formatPtr(e.AvgDaily),
		persistence,
		formatNumber(orZero(e.MaxAbsoluteChange)),
		formatNumber(orZero(e.MaxPctChange)) + "%",
		formatNumber(orZero(e.RecentAttacks)),
		formatDate(e.FirstSeen),
		formatDate(e.LastSeen),
		formatNumber(orZero(e.MaxDaily)),
	}
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func formatPtr(p *float64) string {
	if p == nil {
		return "-"
	}
	return formatNumber(*p)
}

// formatNumber renders v with thousands separators and at most two
// decimals.
func formatNumber(v float64) string {
	return humanize.Commaf(math.Round(v*100) / 100)
}

func formatDate(d *dataset.Date) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	return d.String()
}

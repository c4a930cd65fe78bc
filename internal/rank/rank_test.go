package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/sshdash/internal/dataset"
)

func f(v float64) *float64 { return &v }

func d(s string) *dataset.Date {
	v := dataset.MustParseDate(s)
	return &v
}

func country(name string, total float64) dataset.RankEntity {
	return dataset.RankEntity{Country: name, TotalAttacks: f(total)}
}

func names(rows []dataset.RankEntity) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Country
	}
	return out
}

var byCountry = ByDimension(dataset.Country)

func TestRankColumnTournamentTies(t *testing.T) {
	data := []dataset.RankEntity{
		country("A", 100),
		country("B", 80),
		country("C", 80),
		country("D", 50),
		country("E", 10),
	}
	r := RankColumn(data, MustLookup("total_attacks"), byCountry)
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 2, "D": 4, "E": 5}, r)
}

func TestRankColumnHigherValueRanksBetter(t *testing.T) {
	data := []dataset.RankEntity{country("low", 1), country("high", 9), country("mid", 5), country("mid2", 5)}
	r := RankColumn(data, MustLookup("total_attacks"), byCountry)
	assert.LessOrEqual(t, r["high"], r["mid"])
	assert.LessOrEqual(t, r["mid"], r["low"])
	assert.Equal(t, r["mid"], r["mid2"])
}

func TestRankColumnMissingValuesRankLast(t *testing.T) {
	data := []dataset.RankEntity{
		{Country: "none"},
		country("A", 3),
		{Country: "none2"},
		country("B", 1),
	}
	r := RankColumn(data, MustLookup("total_attacks"), byCountry)
	assert.Equal(t, 1, r["A"])
	assert.Equal(t, 2, r["B"])
	assert.Equal(t, 3, r["none"])
	assert.Equal(t, 3, r["none2"])

	// ascending-better columns keep missing values last too
	data = []dataset.RankEntity{
		{Country: "unseen"},
		{Country: "late", FirstSeen: d("2022-12-01")},
		{Country: "early", FirstSeen: d("2022-11-01")},
	}
	r = RankColumn(data, MustLookup("first_seen"), byCountry)
	assert.Equal(t, map[string]int{"early": 1, "late": 2, "unseen": 3}, r)
}

func TestRankColumnDatesAndStrings(t *testing.T) {
	data := []dataset.RankEntity{
		{Country: "cn", LastSeen: d("2023-01-01")},
		{Country: "RU", LastSeen: d("2023-01-08")},
		{Country: "Br", LastSeen: d("2023-01-08")},
	}
	last := RankColumn(data, MustLookup("last_seen"), byCountry)
	assert.Equal(t, map[string]int{"RU": 1, "Br": 1, "cn": 3}, last)

	name := RankColumn(data, MustLookup("country"), byCountry)
	assert.Equal(t, map[string]int{"Br": 1, "cn": 2, "RU": 3}, name)

	// case-insensitive tie
	data = append(data, dataset.RankEntity{Country: "ru"})
	name = RankColumn(data, MustLookup("country"), byCountry)
	assert.Equal(t, 3, name["RU"])
	assert.Equal(t, 3, name["ru"])
}

func TestSortSingleColumnIsDirectionLiteralAndStable(t *testing.T) {
	data := []dataset.RankEntity{
		country("A", 5),
		{Country: "null"},
		country("B", 7),
		country("C", 5),
		country("D", 7),
	}
	res := Sort(data, []Column{MustLookup("total_attacks")}, Desc)
	assert.Equal(t, []string{"B", "D", "A", "C", "null"}, names(res.Rows))
	assert.Nil(t, res.Breakdown)

	res = Sort(data, []Column{MustLookup("total_attacks")}, Asc)
	assert.Equal(t, []string{"A", "C", "B", "D", "null"}, names(res.Rows))

	// first_seen is ascending-better for ranking, but a single-column sort
	// only follows the requested direction
	dates := []dataset.RankEntity{
		{Country: "early", FirstSeen: d("2022-11-01")},
		{Country: "late", FirstSeen: d("2022-12-24")},
	}
	res = Sort(dates, []Column{MustLookup("first_seen")}, Desc)
	assert.Equal(t, []string{"late", "early"}, names(res.Rows))

	// input is untouched
	assert.Equal(t, "A", data[0].Country)
}

func TestSortSingleStringColumnIgnoresCase(t *testing.T) {
	data := []dataset.RankEntity{{Country: "b"}, {Country: "A"}, {Country: "c"}}
	res := Sort(data, []Column{MustLookup("country")}, Asc)
	assert.Equal(t, []string{"A", "b", "c"}, names(res.Rows))
}

func TestSortAverageRank(t *testing.T) {
	// X is 1st and 3rd, Y is 2nd and 2nd: both average 2.0 and keep input order
	data := []dataset.RankEntity{
		{Country: "Z", TotalAttacks: f(10), MaxDaily: f(30)},
		{Country: "Y", TotalAttacks: f(20), MaxDaily: f(20)},
		{Country: "X", TotalAttacks: f(30), MaxDaily: f(10)},
	}
	cols := []Column{MustLookup("total_attacks"), MustLookup("max_daily")}
	res := Sort(data, cols, Desc)
	require.Len(t, res.Breakdown, 3)
	assert.Equal(t, []string{"Z", "Y", "X"}, names(res.Rows))
	for _, e := range res.Breakdown {
		assert.Equal(t, 2.0, e.AvgRank)
	}

	data = []dataset.RankEntity{
		{Country: "X", TotalAttacks: f(30), MaxDaily: f(10)},
		{Country: "Y", TotalAttacks: f(20), MaxDaily: f(20)},
		{Country: "W", TotalAttacks: f(40), MaxDaily: f(40)},
		{Country: "V", TotalAttacks: f(1), MaxDaily: f(1)},
	}
	res = Sort(data, cols, Desc)
	assert.Equal(t, []string{"W", "X", "Y", "V"}, names(res.Rows))
	assert.Equal(t, []int{1, 1}, res.Breakdown[0].Ranks)
	assert.Equal(t, []int{2, 3}, res.Breakdown[1].Ranks)
	assert.Equal(t, 2.5, res.Breakdown[1].AvgRank)
	assert.Equal(t, []int{3, 2}, res.Breakdown[2].Ranks)
	assert.Equal(t, 4.0, res.Breakdown[3].AvgRank)

	res = Sort(data, cols, Asc)
	assert.Equal(t, []string{"V", "X", "Y", "W"}, names(res.Rows))
}

func TestParseColumns(t *testing.T) {
	cols, err := ParseColumns("total_attacks, first_seen")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.True(t, cols[1].AscendingIsBetter)

	cols, err = ParseColumns("")
	require.NoError(t, err)
	assert.Equal(t, []Column{DefaultColumn}, cols)

	_, err = ParseColumns("nope")
	assert.Error(t, err)
}

func TestParseDirection(t *testing.T) {
	dir, err := ParseDirection("ASC")
	require.NoError(t, err)
	assert.Equal(t, Asc, dir)
	assert.Equal(t, Desc, dir.Flip())
	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/filter"
)

var date = dataset.MustParseDate

func TestZeroFillUsesCalendarDays(t *testing.T) {
	r := dataset.DateRange{Start: date("2022-11-01"), End: date("2022-11-05")}
	got := ZeroFill(r, []dataset.DailyCount{
		{Date: date("2022-11-02"), Attacks: 5},
		{Date: date("2022-11-04"), Attacks: 3},
	})
	want := []dataset.DailyCount{
		{Date: date("2022-11-01"), Attacks: 0},
		{Date: date("2022-11-02"), Attacks: 5},
		{Date: date("2022-11-03"), Attacks: 0},
		{Date: date("2022-11-04"), Attacks: 3},
		{Date: date("2022-11-05"), Attacks: 0},
	}
	assert.Equal(t, want, got)
}

func TestZeroFillSumsDuplicatesAndDropsOutOfRange(t *testing.T) {
	r := dataset.DateRange{Start: date("2022-12-31"), End: date("2023-01-01")}
	got := ZeroFill(r, []dataset.DailyCount{
		{Date: date("2022-12-31"), Attacks: 2},
		{Date: date("2022-12-31"), Attacks: 3},
		{Date: date("2023-01-02"), Attacks: 99},
	})
	require.Len(t, got, 2)
	assert.Equal(t, 5.0, got[0].Attacks)
	assert.Equal(t, 0.0, got[1].Attacks)
	assert.Equal(t, "2023-01-01", got[1].Date.String())
}

func TestGroupSeries(t *testing.T) {
	r := dataset.DateRange{Start: date("2022-11-01"), End: date("2022-11-03")}
	rows := []dataset.SeriesRow{
		{Date: date("2022-11-01"), Key: "admin", Attacks: 1},
		{Date: date("2022-11-02"), Key: "root", Attacks: 4},
		{Date: date("2022-11-02"), Key: "root", Attacks: 6, Country: "CN"},
		{Date: date("2022-11-03"), Key: "admin", Attacks: 2},
		{Date: date("2022-11-03"), Key: "", Attacks: 50},
	}
	series := GroupSeries(r, rows)
	require.Len(t, series, 2)
	assert.Equal(t, "root", series[0].Key)
	assert.Equal(t, 10.0, series[0].Total)
	assert.Equal(t, []float64{0, 10, 0}, series[0].Values())
	assert.Equal(t, []float64{1, 0, 2}, series[1].Values())

	assert.Equal(t, []string{"CN"}, DistinctCountries(rows))
}

func TestBuildTotalCarriesEveryFilter(t *testing.T) {
	s := filter.New(dataset.DefaultRange)
	s.SetDimensionFilter(dataset.Country, "RU")
	s.SetDimensionFilter(dataset.IP, "1.2.3.4")
	s.SetDimensionFilter(dataset.ASN, "AS 4134")

	req := Build(s.Snapshot(), Total)
	assert.Equal(t, "total_attacks", req.Path)
	assert.Equal(t, "asn=AS+4134&country=RU&end=2023-01-08&ip=1.2.3.4&start=2022-11-01", req.Params.Encode())
	assert.Equal(t, "http://x/api/total_attacks?"+req.Params.Encode(), req.URL("http://x/api"))
}

func TestBuildOmitsOwnDimension(t *testing.T) {
	s := filter.New(dataset.DefaultRange)
	s.SetDimensionFilter(dataset.IP, "1.2.3.4")
	s.SetDimensionFilter(dataset.Username, "root")

	req := Build(s.Snapshot(), IPs)
	assert.Equal(t, "ip_attacks", req.Path)
	assert.Empty(t, req.Params.Get("ip"))
	assert.Equal(t, "root", req.Params.Get("username"))

	req = Build(s.Snapshot(), Usernames)
	assert.Empty(t, req.Params.Get("username"))
	assert.Equal(t, "1.2.3.4", req.Params.Get("ip"))
}

func TestBuildCountryPanelsKeepTheirOwnSelection(t *testing.T) {
	s := filter.New(dataset.DefaultRange)
	s.SetCountryFilter("RU", false)
	assert.Equal(t, "RU", Build(s.Snapshot(), Countries).Params.Get("country"))
	assert.Empty(t, Build(s.Snapshot(), VolatileCountries).Params.Get("country"))

	s.SetCountryFilter("RU", true)
	assert.Empty(t, Build(s.Snapshot(), Countries).Params.Get("country"))
	assert.Equal(t, "RU", Build(s.Snapshot(), VolatileCountries).Params.Get("country"))
	assert.Equal(t, "RU", Build(s.Snapshot(), ASNs).Params.Get("country"))
}

func TestBuildFollowsViewMode(t *testing.T) {
	s := filter.New(dataset.DefaultRange)
	assert.Equal(t, "unusual_countries", Build(s.Snapshot(), VolatileCountries).Path)
	assert.Equal(t, "asn_attacks", Build(s.Snapshot(), ASNs).Path)

	s.ToggleViewMode(dataset.ASN)
	s.ToggleViewMode(dataset.Country)
	assert.Equal(t, "asn_attacks_volatile", Build(s.Snapshot(), ASNs).Path)
	assert.Equal(t, "unusual_countries", Build(s.Snapshot(), Countries).Path)
	assert.Equal(t, "ip_attacks", Build(s.Snapshot(), IPs).Path)
}

func TestBuildIsDeterministic(t *testing.T) {
	s := filter.New(dataset.DefaultRange)
	s.SetDimensionFilter(dataset.Username, "a b&c")
	a := Build(s.Snapshot(), Total)
	b := Build(s.Snapshot(), Total)
	assert.Equal(t, a.Key(), b.Key())
	assert.Contains(t, a.Key(), "username=a+b%26c")
}

func TestSummaryAndCountRequests(t *testing.T) {
	req, err := SummaryRequest(dataset.DefaultRange, dataset.ASN, 500, 1000)
	require.NoError(t, err)
	assert.Equal(t, "asn_summary", req.Path)
	assert.Equal(t, "500", req.Params.Get("limit"))
	assert.Equal(t, "1000", req.Params.Get("offset"))

	req, err = SummaryRequest(dataset.DefaultRange, dataset.Country, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, req.Params.Get("limit"))

	req, err = CountRequest(dataset.DefaultRange, dataset.Username)
	require.NoError(t, err)
	assert.Equal(t, "username_count", req.Path)

	_, err = CountRequest(dataset.DefaultRange, "port")
	assert.ErrorIs(t, err, dataset.ErrUnknownDimension)
}

func TestDistinctCountriesKeepsFirstSeenOrder(t *testing.T) {
	rows := []dataset.SeriesRow{
		{Date: date("2022-11-01"), Key: "1.2.3.4", Country: "RU", Attacks: 1},
		{Date: date("2022-11-02"), Key: "1.2.3.4", Country: "", Attacks: 1},
		{Date: date("2022-11-02"), Key: "1.2.3.4", Country: "CN", Attacks: 1},
		{Date: date("2022-11-03"), Key: "1.2.3.4", Country: "RU", Attacks: 1},
	}
	assert.Equal(t, []string{"RU", "CN"}, DistinctCountries(rows))
	assert.Empty(t, DistinctCountries(nil))

	cs, ok := Spec(Countries)
	require.True(t, ok)
	assert.Equal(t, dataset.Country, cs.Dimension)
}

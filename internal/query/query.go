// Package query turns a filter snapshot into backend requests and rebuilds
// dense daily series from the sparse rows the backend returns.
package query

import (
	"net/url"
	"strconv"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/filter"
)

// Chart identifies one of the six dashboard charts.
type Chart string

const (
	Total             Chart = "total"
	Countries         Chart = "countries"
	VolatileCountries Chart = "volatile"
	IPs               Chart = "ips"
	Usernames         Chart = "usernames"
	ASNs              Chart = "asns"
)

// ChartSpec describes how a chart is queried.
type ChartSpec struct {
	Chart Chart
	Title string
	// Dimension is empty for the total chart.
	Dimension dataset.Dimension
	// FixedVolatile pins the chart to the volatile endpoint regardless of
	// the dimension's view mode.
	FixedVolatile bool
}

// Charts lists every chart in display order.
var Charts = []ChartSpec{
	{Chart: Total, Title: "Total Attacks Over Time"},
	{Chart: Countries, Title: "Top Attacking Countries", Dimension: dataset.Country},
	{Chart: VolatileCountries, Title: "Most Volatile Countries", Dimension: dataset.Country, FixedVolatile: true},
	{Chart: IPs, Title: "Top Attacking IPs", Dimension: dataset.IP},
	{Chart: Usernames, Title: "Top Attacked Usernames", Dimension: dataset.Username},
	{Chart: ASNs, Title: "Top Attacking ASN Organizations", Dimension: dataset.ASN},
}

// Spec returns the ChartSpec of c.
func Spec(c Chart) (ChartSpec, bool) {
	for _, s := range Charts {
		if s.Chart == c {
			return s, true
		}
	}
	return ChartSpec{}, false
}

// Volatile reports whether the chart queries its volatile endpoint under snap.
func (cs ChartSpec) Volatile(snap filter.Snapshot) bool {
	if cs.Dimension == "" {
		return false
	}
	return cs.FixedVolatile || snap.Mode(cs.Dimension) == filter.Volatile
}

// Request is an endpoint path relative to the API root plus its parameters.
type Request struct {
	Path   string
	Params url.Values
}

// URL joins the request onto base, e.g. "http://localhost:5000/api".
func (r Request) URL(base string) string {
	u := base + "/" + r.Path
	if q := r.Params.Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// Key is a stable identity for caching; url.Values encodes in key order.
func (r Request) Key() string {
	return r.Path + "?" + r.Params.Encode()
}

func rangeParams(r dataset.DateRange) url.Values {
	p := url.Values{}
	p.Set("start", r.Start.String())
	p.Set("end", r.End.String())
	return p
}

// Build returns the request for chart c. The date range is always sent and
// every active filter is added, except a chart's own dimension filter,
// which would reduce it to a single series. The country panels are the
// exception: a panel keeps the country filter it set itself so it shows
// that country's detail.
func Build(snap filter.Snapshot, c Chart) Request {
	cs, ok := Spec(c)
	if !ok {
		cs = Charts[0]
	}
	p := rangeParams(snap.Range)
	for _, desc := range dataset.Dimensions {
		v, ok := snap.Filter(desc.Dimension)
		if !ok {
			continue
		}
		if desc.Dimension == cs.Dimension && !keepsOwnFilter(cs, snap) {
			continue
		}
		p.Set(desc.Param, v)
	}

	if cs.Dimension == "" {
		return Request{Path: "total_attacks", Params: p}
	}
	desc := dataset.MustDescribe(cs.Dimension)
	path := desc.AttackingPath
	if cs.Volatile(snap) {
		path = desc.VolatilePath
	}
	return Request{Path: path, Params: p}
}

func keepsOwnFilter(cs ChartSpec, snap filter.Snapshot) bool {
	if cs.Dimension != dataset.Country {
		return false
	}
	return cs.FixedVolatile == snap.FromVolatile
}

// SummaryRequest pages through the discovery rows of dim. A non-positive
// limit requests everything.
func SummaryRequest(r dataset.DateRange, dim dataset.Dimension, limit, offset int) (Request, error) {
	desc, err := dataset.Describe(dim)
	if err != nil {
		return Request{}, err
	}
	p := rangeParams(r)
	if limit > 0 {
		p.Set("limit", strconv.Itoa(limit))
		p.Set("offset", strconv.Itoa(max(0, offset)))
	}
	return Request{Path: desc.SummaryPath, Params: p}, nil
}

// CountRequest asks for the number of distinct entities of dim in r.
func CountRequest(r dataset.DateRange, dim dataset.Dimension) (Request, error) {
	desc, err := dataset.Describe(dim)
	if err != nil {
		return Request{}, err
	}
	return Request{Path: desc.CountPath, Params: rangeParams(r)}, nil
}

// DateRangeRequest asks for the dataset's first and last day.
func DateRangeRequest() Request {
	return Request{Path: "date_range", Params: url.Values{}}
}

// CountriesOfIPRequest lists the per-country rows of a single IP.
func CountriesOfIPRequest(r dataset.DateRange, ip string) Request {
	p := rangeParams(r)
	p.Set("ip", ip)
	return Request{Path: dataset.MustDescribe(dataset.Country).AttackingPath, Params: p}
}

package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Dimension is an axis along which attacks are grouped and filtered.
type Dimension string

const (
	Country  Dimension = "country"
	IP       Dimension = "ip"
	Username Dimension = "username"
	ASN      Dimension = "asn"
)

var ErrUnknownDimension = errors.New("unknown dimension")

// Descriptor is one row of the dimension table. Every per-dimension
// difference (JSON keys, endpoint names, labels) lives here so callers
// never branch on the dimension themselves.
type Descriptor struct {
	Dimension Dimension
	Label     string
	// Param is the query parameter used when filtering by this dimension.
	Param string
	// SeriesKey names the entity field in {dim}_attacks rows.
	SeriesKey string
	// SummaryKey names the entity field in {dim}_summary rows.
	SummaryKey    string
	AttackingPath string
	VolatilePath  string
	SummaryPath   string
	CountPath     string
	// CountField is the member of the {dim}_count response.
	CountField string
}

// Dimensions lists the dimensions in display order.
var Dimensions = []Descriptor{
	{
		Dimension:     Country,
		Label:         "Country",
		Param:         "country",
		SeriesKey:     "country",
		SummaryKey:    "country",
		AttackingPath: "country_attacks",
		VolatilePath:  "unusual_countries",
		SummaryPath:   "country_summary",
		CountPath:     "country_count",
		CountField:    "total_countrys",
	},
	{
		Dimension:     IP,
		Label:         "IP Address",
		Param:         "ip",
		SeriesKey:     "IP",
		SummaryKey:    "ip",
		AttackingPath: "ip_attacks",
		VolatilePath:  "ip_attacks_volatile",
		SummaryPath:   "ip_summary",
		CountPath:     "ip_count",
		CountField:    "total_ips",
	},
	{
		Dimension:     Username,
		Label:         "Username",
		Param:         "username",
		SeriesKey:     "username",
		SummaryKey:    "username",
		AttackingPath: "username_attacks",
		VolatilePath:  "username_attacks_volatile",
		SummaryPath:   "username_summary",
		CountPath:     "username_count",
		CountField:    "total_usernames",
	},
	{
		Dimension:     ASN,
		Label:         "ASN Name",
		Param:         "asn",
		SeriesKey:     "asn_name",
		SummaryKey:    "asn_name",
		AttackingPath: "asn_attacks",
		VolatilePath:  "asn_attacks_volatile",
		SummaryPath:   "asn_summary",
		CountPath:     "asn_count",
		CountField:    "total_asns",
	},
}

// Describe returns the descriptor of d.
func Describe(d Dimension) (Descriptor, error) {
	for _, desc := range Dimensions {
		if desc.Dimension == d {
			return desc, nil
		}
	}
	return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownDimension, string(d))
}

// MustDescribe panics on an unknown dimension; for package-internal tables.
func MustDescribe(d Dimension) Descriptor {
	desc, err := Describe(d)
	if err != nil {
		panic(err)
	}
	return desc
}

// ParseDimension accepts the dimension name case-insensitively.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	if _, err := Describe(d); err != nil {
		return "", err
	}
	return d, nil
}

func (d Dimension) String() string { return string(d) }

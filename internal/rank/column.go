package rank

import (
	"fmt"
	"strings"
)

type ValueType int

const (
	Number ValueType = iota
	Date
	String
)

func (t ValueType) String() string {
	switch t {
	case Date:
		return "date"
	case String:
		return "string"
	default:
		return "number"
	}
}

// Direction of a sort. The zero value is Desc, the table default.
type Direction int

const (
	Desc Direction = iota
	Asc
)

func (d Direction) String() string {
	if d == Asc {
		return "asc"
	}
	return "desc"
}

func (d Direction) Flip() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// Arrow is the header indicator for a single-column sort.
func (d Direction) Arrow() string {
	if d == Asc {
		return "▲"
	}
	return "▼"
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc", "descending":
		return Desc, nil
	case "asc", "ascending":
		return Asc, nil
	}
	return Desc, fmt.Errorf("unknown sort direction %q", s)
}

// Column describes a rankable field of a summary row. AscendingIsBetter
// models "better/worse" for ranking and is independent of the table's
// display direction.
type Column struct {
	Key               string
	Label             string
	Type              ValueType
	AscendingIsBetter bool
}

// Columns is the fixed column table.
var Columns = []Column{
	{Key: "country", Label: "Country", Type: String, AscendingIsBetter: true},
	{Key: "ip", Label: "IP Address", Type: String, AscendingIsBetter: true},
	{Key: "asn_name", Label: "ASN Name", Type: String, AscendingIsBetter: true},
	{Key: "username", Label: "Username", Type: String, AscendingIsBetter: true},
	{Key: "total_attacks", Label: "Total Attacks", Type: Number},
	{Key: "avg_daily", Label: "Avg Daily", Type: Number},
	{Key: "persistence_pct", Label: "Persistence %", Type: Number},
	{Key: "active_days", Label: "Active Days", Type: Number},
	{Key: "max_absolute_change", Label: "Max Absolute Δ", Type: Number},
	{Key: "max_pct_change", Label: "Max % Δ", Type: Number},
	{Key: "recent_attacks", Label: "Recent (7d)", Type: Number},
	// earlier first sighting marks a more established source
	{Key: "first_seen", Label: "First Seen", Type: Date, AscendingIsBetter: true},
	{Key: "last_seen", Label: "Last Seen", Type: Date},
	{Key: "max_daily", Label: "Max Daily", Type: Number},
	{Key: "volatility", Label: "Volatility", Type: Number},
}

// DefaultColumn is total volume.
var DefaultColumn = MustLookup("total_attacks")

func Lookup(key string) (Column, bool) {
	for _, c := range Columns {
		if c.Key == key {
			return c, true
		}
	}
	return Column{}, false
}

func MustLookup(key string) Column {
	c, ok := Lookup(key)
	if !ok {
		panic(fmt.Sprintf("rank: unknown column %q", key))
	}
	return c
}

// ParseColumns resolves a comma separated key list.
func ParseColumns(s string) ([]Column, error) {
	var out []Column
	for _, key := range strings.Split(s, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		c, ok := Lookup(key)
		if !ok {
			return nil, fmt.Errorf("unknown sort column %q", key)
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		out = []Column{DefaultColumn}
	}
	return out, nil
}

package dataset

// RankEntity is one discovery-table row as returned by {dim}_summary.
// Metric pointers are nil when the backend sent null or omitted the field.
type RankEntity struct {
	Country  string `json:"country,omitempty"`
	IP       string `json:"ip,omitempty"`
	ASNName  string `json:"asn_name,omitempty"`
	Username string `json:"username,omitempty"`

	TotalAttacks      *float64 `json:"total_attacks"`
	AvgDaily          *float64 `json:"avg_daily"`
	PersistencePct    *float64 `json:"persistence_pct"`
	ActiveDays        *float64 `json:"active_days"`
	MaxAbsoluteChange *float64 `json:"max_absolute_change"`
	MaxPctChange      *float64 `json:"max_pct_change"`
	RecentAttacks     *float64 `json:"recent_attacks"`
	FirstSeen         *Date    `json:"first_seen"`
	LastSeen          *Date    `json:"last_seen"`
	MaxDaily          *float64 `json:"max_daily"`
	Volatility        *float64 `json:"volatility"`
}

// ID is the entity key for the given dimension.
func (e RankEntity) ID(d Dimension) string {
	switch d {
	case IP:
		return e.IP
	case ASN:
		return e.ASNName
	case Username:
		return e.Username
	default:
		return e.Country
	}
}

// Field returns the raw value stored under a summary JSON key. The second
// return is false when the key is unknown or the value is absent.
func (e RankEntity) Field(key string) (any, bool) {
	num := func(p *float64) (any, bool) {
		if p == nil {
			return nil, false
		}
		return *p, true
	}
	date := func(p *Date) (any, bool) {
		if p == nil || p.IsZero() {
			return nil, false
		}
		return *p, true
	}
	str := func(s string) (any, bool) {
		return s, s != ""
	}
	switch key {
	case "country":
		return str(e.Country)
	case "ip":
		return str(e.IP)
	case "asn_name":
		return str(e.ASNName)
	case "username":
		return str(e.Username)
	case "total_attacks":
		return num(e.TotalAttacks)
	case "avg_daily":
		return num(e.AvgDaily)
	case "persistence_pct":
		return num(e.PersistencePct)
	case "active_days":
		return num(e.ActiveDays)
	case "max_absolute_change":
		return num(e.MaxAbsoluteChange)
	case "max_pct_change":
		return num(e.MaxPctChange)
	case "recent_attacks":
		return num(e.RecentAttacks)
	case "first_seen":
		return date(e.FirstSeen)
	case "last_seen":
		return date(e.LastSeen)
	case "max_daily":
		return num(e.MaxDaily)
	case "volatility":
		return num(e.Volatility)
	}
	return nil, false
}

// DailyCount is one point of a total_attacks style series.
type DailyCount struct {
	Date    Date    `json:"date"`
	Attacks float64 `json:"attacks"`
}

// SeriesRow is one {date, attacks, <key>} row of a per-dimension endpoint.
type SeriesRow struct {
	Date    Date
	Key     string
	Country string
	Attacks float64
}

// Series is a dense, zero-filled daily series of one entity.
type Series struct {
	Key    string
	Points []DailyCount
	Total  float64
}

// Values returns the attack counts in date order.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Attacks
	}
	return out
}

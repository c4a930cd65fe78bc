package filter

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/keilerkonzept/sshdash/internal/dataset"
)

// EncodeLink renders the shareable part of a snapshot as a query string.
// Only the date range and the country travel in links; the remaining
// filters are session-only.
func EncodeLink(s Snapshot) string {
	params := url.Values{}
	params.Set("start", s.Range.Start.String())
	params.Set("end", s.Range.End.String())
	if c, ok := s.Values[dataset.Country]; ok {
		params.Set("country", c)
	}
	return params.Encode()
}

// ApplyLink restores start, end and country from a query string or a full
// URL. Missing parameters keep their current value. The range change is not
// recorded in the history.
func ApplyLink(s *State, raw string) error {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[i+1:]
	}
	params, err := url.ParseQuery(raw)
	if err != nil {
		return fmt.Errorf("parse link: %w", err)
	}

	r := s.current
	if v := params.Get("start"); v != "" {
		if r.Start, err = dataset.ParseDate(v); err != nil {
			return fmt.Errorf("parse link start: %w", err)
		}
	}
	if v := params.Get("end"); v != "" {
		if r.End, err = dataset.ParseDate(v); err != nil {
			return fmt.Errorf("parse link end: %w", err)
		}
	}
	if err := s.SetDateRange(r.Start, r.End, false); err != nil {
		return err
	}
	if v := strings.TrimSpace(params.Get("country")); v != "" {
		s.values[dataset.Country] = v
		s.fromVolatile = false
	}
	return nil
}

// Package filter holds the dashboard's cross-filter state: the active date
// range with its back-navigation history, one optional value per dimension,
// and the attacking/volatile view mode of every dimension.
//
// A State is owned by one goroutine. Every mutation goes through a named
// method; readers that hand work to other goroutines take a Snapshot.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/keilerkonzept/sshdash/internal/dataset"
)

// ViewMode selects between ranking by volume and ranking by volatility.
type ViewMode int

const (
	Attacking ViewMode = iota
	Volatile
)

func (m ViewMode) String() string {
	if m == Volatile {
		return "volatile"
	}
	return "attacking"
}

var ErrInvalidRange = errors.New("invalid date range")

type State struct {
	defaults dataset.DateRange
	current  dataset.DateRange
	history  []dataset.DateRange

	values map[dataset.Dimension]string
	modes  map[dataset.Dimension]ViewMode

	// fromVolatile records which country panel set the country filter.
	fromVolatile bool
}

// New returns a State covering defaults with no filters set.
func New(defaults dataset.DateRange) *State {
	s := &State{defaults: defaults}
	s.Reset()
	return s
}

// Reset restores the default range, clears every filter and view mode, and
// empties the history.
func (s *State) Reset() {
	s.current = s.defaults
	s.history = nil
	s.values = make(map[dataset.Dimension]string, len(dataset.Dimensions))
	s.modes = make(map[dataset.Dimension]ViewMode, len(dataset.Dimensions))
	s.fromVolatile = false
}

// SetDateRange replaces the active range. With pushHistory the previous
// range is saved for GoBack first. A range given end-first is swapped.
func (s *State) SetDateRange(start, end dataset.Date, pushHistory bool) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: %q to %q", ErrInvalidRange, start, end)
	}
	if end.Before(start) {
		start, end = end, start
	}
	if pushHistory {
		s.history = append(s.history, s.current)
	}
	s.current = dataset.DateRange{Start: start, End: end}
	return nil
}

// GoBack restores the range that was active before the last pushed change.
// It reports false when there is no history.
func (s *State) GoBack() bool {
	n := len(s.history)
	if n == 0 {
		return false
	}
	s.current = s.history[n-1]
	s.history = s.history[:n-1]
	return true
}

// SetDimensionFilter sets a dimension filter with toggle semantics: setting
// the active value again clears it. Other dimensions are left alone. It
// reports whether the filter is active afterwards.
func (s *State) SetDimensionFilter(dim dataset.Dimension, value string) bool {
	if dim == dataset.Country {
		return s.SetCountryFilter(value, false)
	}
	value = strings.TrimSpace(value)
	if value == "" || s.values[dim] == value {
		delete(s.values, dim)
		return false
	}
	s.values[dim] = value
	return true
}

// SetCountryFilter is SetDimensionFilter for the country dimension, also
// recording which country panel the selection came from. Selecting the
// active country again clears it, whichever panel it is picked in.
func (s *State) SetCountryFilter(value string, fromVolatile bool) bool {
	value = strings.TrimSpace(value)
	current, ok := s.values[dataset.Country]
	if value == "" || (ok && current == value) {
		delete(s.values, dataset.Country)
		s.fromVolatile = false
		return false
	}
	s.values[dataset.Country] = value
	s.fromVolatile = fromVolatile
	return true
}

// ClearDimensionFilter removes one filter. View modes and history are kept.
func (s *State) ClearDimensionFilter(dim dataset.Dimension) {
	delete(s.values, dim)
	if dim == dataset.Country {
		s.fromVolatile = false
	}
}

// ToggleViewMode flips dim between Attacking and Volatile and returns the
// new mode.
func (s *State) ToggleViewMode(dim dataset.Dimension) ViewMode {
	if s.modes[dim] == Volatile {
		delete(s.modes, dim)
		return Attacking
	}
	s.modes[dim] = Volatile
	return Volatile
}

func (s *State) Range() dataset.DateRange { return s.current }

func (s *State) Filter(dim dataset.Dimension) (string, bool) {
	v, ok := s.values[dim]
	return v, ok
}

func (s *State) Mode(dim dataset.Dimension) ViewMode { return s.modes[dim] }

func (s *State) FromVolatile() bool { return s.fromVolatile }

func (s *State) HistoryDepth() int { return len(s.history) }

// History returns a copy of the saved ranges, oldest first.
func (s *State) History() []dataset.DateRange {
	out := make([]dataset.DateRange, len(s.history))
	copy(out, s.history)
	return out
}

// Snapshot is an immutable copy of a State.
type Snapshot struct {
	Range        dataset.DateRange
	Values       map[dataset.Dimension]string
	Modes        map[dataset.Dimension]ViewMode
	FromVolatile bool
	HistoryDepth int
}

func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Range:        s.current,
		Values:       make(map[dataset.Dimension]string, len(s.values)),
		Modes:        make(map[dataset.Dimension]ViewMode, len(s.modes)),
		FromVolatile: s.fromVolatile,
		HistoryDepth: len(s.history),
	}
	for k, v := range s.values {
		snap.Values[k] = v
	}
	for k, v := range s.modes {
		snap.Modes[k] = v
	}
	return snap
}

func (s Snapshot) Filter(dim dataset.Dimension) (string, bool) {
	v, ok := s.Values[dim]
	return v, ok
}

func (s Snapshot) Mode(dim dataset.Dimension) ViewMode { return s.Modes[dim] }

// Panels reports which of the two country panels are shown.
type Panels struct {
	Attacking bool
	Volatile  bool
}

// PanelVisibility shows both country panels when no country is selected,
// otherwise only the panel the selection came from.
func (s Snapshot) PanelVisibility() Panels {
	if _, ok := s.Values[dataset.Country]; !ok {
		return Panels{Attacking: true, Volatile: true}
	}
	return Panels{Attacking: !s.FromVolatile, Volatile: s.FromVolatile}
}

// Summary renders the active filters on one line.
func (s Snapshot) Summary() string {
	parts := []string{"Date: " + s.Range.String()}
	for _, desc := range dataset.Dimensions {
		if v, ok := s.Values[desc.Dimension]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", summaryLabel(desc), v))
		}
	}
	return "Active Filters: " + strings.Join(parts, " | ")
}

func summaryLabel(desc dataset.Descriptor) string {
	switch desc.Dimension {
	case dataset.IP:
		return "IP"
	case dataset.ASN:
		return "ASN"
	}
	return desc.Label
}

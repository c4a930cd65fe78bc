package view

import (
	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/query"
)

// Event is an interaction emitted by the rendering layer.
type Event interface {
	event()
}

// DateRangeSelected is a brush over the total chart.
type DateRangeSelected struct {
	Start, End dataset.Date
}

// EntitySelected is a click on a series or its legend entry.
type EntitySelected struct {
	Chart query.Chart
	Key   string
}

// EntitySuppressed hides or unhides one series of a chart until the next
// reload.
type EntitySuppressed struct {
	Chart query.Chart
	Key   string
}

type GoBack struct{}

type Reset struct{}

type ToggleViewMode struct {
	Dimension dataset.Dimension
}

type ClearFilter struct {
	Dimension dataset.Dimension
}

// ApplyLink restores the range and country of a shared link.
type ApplyLink struct {
	Query string
}

func (DateRangeSelected) event() {}
func (EntitySelected) event()    {}
func (EntitySuppressed) event()  {}
func (GoBack) event()            {}
func (Reset) event()             {}
func (ToggleViewMode) event()    {}
func (ClearFilter) event()       {}
func (ApplyLink) event()         {}

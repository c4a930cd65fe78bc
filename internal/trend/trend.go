// Package trend finds the entities with the most attacks in the trailing
// days of a loaded range, using a sliding-window top-K sketch with one tick
// per day.
package trend

import (
	"math"
	"sort"

	"github.com/keilerkonzept/topk"
	"github.com/keilerkonzept/topk/heap"
	"github.com/keilerkonzept/topk/sliding"

	"github.com/keilerkonzept/sshdash/internal/dataset"
)

type Options struct {
	K          int
	WindowDays int
	Width      int
	Depth      int
	Decay      float64
}

func DefaultOptions() Options {
	return Options{K: 10, WindowDays: 7, Width: 1024, Depth: 3, Decay: 0.9}
}

func (o Options) normalize() Options {
	d := DefaultOptions()
	if o.K < 1 {
		o.K = d.K
	}
	if o.WindowDays < 1 {
		o.WindowDays = d.WindowDays
	}
	if o.Width < 1 {
		o.Width = d.Width
	}
	if o.Depth < 1 {
		o.Depth = d.Depth
	}
	if o.Decay <= 0 || o.Decay >= 1 {
		o.Decay = d.Decay
	}
	return o
}

// Item is one trending entity. Spark holds its daily counts over the
// window, oldest first.
type Item struct {
	Key   string
	Count uint32
	Spark []float64
}

// Tracker holds the sketch of the last Compute call.
type Tracker struct {
	opts   Options
	sketch *sliding.Sketch
}

func New(opts Options) *Tracker {
	return &Tracker{opts: opts.normalize()}
}

func (t *Tracker) Options() Options { return t.opts }

// Compute rebuilds the sketch from zero-filled series and returns the top
// entities of the last WindowDays days, largest first.
func (t *Tracker) Compute(series []dataset.Series) []Item {
	t.sketch = sliding.New(t.opts.K, t.opts.WindowDays,
		sliding.WithWidth(t.opts.Width),
		sliding.WithDepth(t.opts.Depth),
		sliding.WithDecay(float32(t.opts.Decay)),
	)

	days := 0
	for _, s := range series {
		days = max(days, len(s.Points))
	}
	for d := 0; d < days; d++ {
		if d > 0 {
			t.sketch.Ticks(1)
		}
		for _, s := range series {
			if d >= len(s.Points) {
				continue
			}
			if v := math.Round(s.Points[d].Attacks); v >= 1 {
				t.sketch.Add(s.Key, uint32(min(v, math.MaxUint32)))
			}
		}
	}

	items := t.sketch.SortedSlice()
	out := make([]Item, 0, len(items))
	for _, it := range t.rankItems(items) {
		if it.Count == 0 {
			continue
		}
		out = append(out, Item{Key: it.Item, Count: it.Count, Spark: t.spark(it)})
		if len(out) == t.opts.K {
			break
		}
	}
	return out
}

// rankItems refreshes counts from the sketch and orders by count, then key.
func (t *Tracker) rankItems(items []heap.Item) []heap.Item {
	for i := range items {
		items[i].Count = t.sketch.Count(items[i].Item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		return items[i].Item < items[j].Item
	})
	return items
}

// spark reads the per-tick counters of item from the buckets holding its
// fingerprint, taking the largest count per day across rows.
func (t *Tracker) spark(item heap.Item) []float64 {
	series := make([]float64, t.opts.WindowDays)
	var buckets []int
	for k := 0; k < t.sketch.Depth; k++ {
		idx := topk.BucketIndex(item.Item, k, t.sketch.Width)
		b := t.sketch.Buckets[idx]
		if b.Fingerprint == item.Fingerprint && len(b.Counts) > 0 {
			buckets = append(buckets, idx)
		}
	}
	if len(buckets) == 0 {
		return series
	}
	for j := range series {
		var c uint32
		for _, idx := range buckets {
			b := t.sketch.Buckets[idx]
			c = max(c, b.Counts[(int(b.First)+j)%len(b.Counts)])
		}
		series[len(series)-1-j] = float64(c)
	}
	return series
}

// Count is the windowed count of key in the last computed sketch.
func (t *Tracker) Count(key string) uint32 {
	if t.sketch == nil {
		return 0
	}
	return t.sketch.Count(key)
}

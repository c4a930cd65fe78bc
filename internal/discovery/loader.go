package discovery

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/keilerkonzept/sshdash/internal/dataset"
	"github.com/keilerkonzept/sshdash/internal/query"
)

// ErrBusy is returned by Loader.Next while a batch is in flight.
var ErrBusy = errors.New("batch load already in progress")

// SummaryFetcher is the part of the backend client the loader needs.
type SummaryFetcher interface {
	Summary(ctx context.Context, req query.Request) ([]dataset.RankEntity, error)
}

// Loader pages through {dim}_summary. Only one batch may be in flight.
type Loader struct {
	fetch SummaryFetcher
	dim   dataset.Dimension
	rng   dataset.DateRange
	batch int
	log   *zap.Logger

	mu      sync.Mutex
	loading bool
	offset  int
	done    bool
}

// NewLoader returns a loader fetching batch rows per request; batch <= 0
// fetches everything in one request.
func NewLoader(fetch SummaryFetcher, dim dataset.Dimension, rng dataset.DateRange, batch int, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{fetch: fetch, dim: dim, rng: rng, batch: batch, log: log}
}

// Next fetches the next batch. It returns no rows and no error once the
// last batch has been loaded. A failed batch can be retried by calling Next
// again.
func (l *Loader) Next(ctx context.Context) ([]dataset.RankEntity, error) {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return nil, ErrBusy
	}
	if l.done {
		l.mu.Unlock()
		return nil, nil
	}
	l.loading = true
	offset := l.offset
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.loading = false
		l.mu.Unlock()
	}()

	req, err := query.SummaryRequest(l.rng, l.dim, l.batch, offset)
	if err != nil {
		return nil, err
	}
	rows, err := l.fetch.Summary(ctx, req)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.offset += len(rows)
	l.done = l.batch <= 0 || len(rows) < l.batch
	l.mu.Unlock()
	l.log.Debug("summary batch",
		zap.String("dimension", string(l.dim)),
		zap.Int("offset", offset),
		zap.Int("rows", len(rows)))
	return rows, nil
}

// All drains the remaining batches into one slice.
func (l *Loader) All(ctx context.Context) ([]dataset.RankEntity, error) {
	var out []dataset.RankEntity
	for !l.Done() {
		rows, err := l.Next(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func (l *Loader) Done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Loaded is the number of rows fetched so far.
func (l *Loader) Loaded() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

func (l *Loader) Dimension() dataset.Dimension { return l.dim }

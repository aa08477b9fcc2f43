package replay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/wellsgz/pingheat/internal/heatmap"
)

// Refresher periodically rebuilds the aggregate tree from the data
// directory and publishes it into a store
type Refresher struct {
	aggregator *Aggregator
	fs         afero.Fs
	dir        string
	store      *heatmap.Store
	interval   time.Duration

	mu   sync.Mutex // one rebuild at a time
	last DirResult
}

// NewRefresher creates a refresher; an interval <= 0 disables periodic rebuilds
func NewRefresher(aggregator *Aggregator, fs afero.Fs, dir string, store *heatmap.Store, interval time.Duration) *Refresher {
	return &Refresher{
		aggregator: aggregator,
		fs:         fs,
		dir:        dir,
		store:      store,
		interval:   interval,
	}
}

// Refresh replays the whole directory into a fresh tree and swaps it in.
// On error the previously published tree stays in place.
func (r *Refresher) Refresh(ctx context.Context) (DirResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	tree := heatmap.NewTree()
	res, err := r.aggregator.ReplayDir(ctx, r.fs, r.dir, "", tree)
	if err != nil {
		return res, err
	}

	gen := r.store.Swap(tree)
	r.last = res
	log.Printf("[Replay] Rebuilt heatmap generation %d from %d files: %d lines, %d buckets, %d skipped (%s)",
		gen, res.Files, res.Totals.Lines, res.Totals.Buckets, res.Totals.Skipped, time.Since(start).Round(time.Millisecond))
	return res, nil
}

// Last returns the result of the most recent successful rebuild
func (r *Refresher) Last() DirResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Run rebuilds immediately and then on every interval until ctx is done
func (r *Refresher) Run(ctx context.Context) error {
	if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Printf("[Replay] Initial rebuild failed: %v", err)
	}
	if r.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
				log.Printf("[Replay] Rebuild failed: %v", err)
			}
		}
	}
}

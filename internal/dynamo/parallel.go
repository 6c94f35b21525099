package dynamo

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent jobs concurrently. Jobs must not share mutable
// state; the first failure cancels the context handed to the others.
type Ensemble struct {
	workers int
}

func NewEnsemble(workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{workers: workers}
}

func (e *Ensemble) Workers() int { return e.workers }

// Run calls job for every index in [0, n) and waits for all of them.
func (e *Ensemble) Run(ctx context.Context, n int, job func(ctx context.Context, idx int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return job(gctx, idx)
		})
	}

	return g.Wait()
}

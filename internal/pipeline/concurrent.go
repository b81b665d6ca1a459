package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// RunConcurrently runs independent pipelines with at most limit in flight
// (limit <= 0 means no limit). One run failing does not cancel the others;
// the returned error joins the Run errors of every pipeline.
func RunConcurrently(ctx context.Context, limit int, pipelines ...*Pipeline) error {
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	errs := make([]error, len(pipelines))
	for i, p := range pipelines {
		i, p := i, p
		g.Go(func() error {
			errs[i] = p.Run(ctx)
			return errs[i]
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

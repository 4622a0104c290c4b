package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/archvision/entgate/internal/domain"
	"github.com/archvision/entgate/internal/metrics"
	"github.com/archvision/entgate/internal/observability"
)

// CheckPermissionBatch evaluates the contexts concurrently and returns
// decisions in input order: decisions[i] answers contexts[i]. The
// evaluations are independent; a denial or store fault in one never
// aborts the others. Typical caller is menu filtering, which zips the
// result slice back against its item list.
func (e *Engine) CheckPermissionBatch(ctx context.Context, contexts []domain.EvaluationContext) []*domain.Decision {
	decisions := make([]*domain.Decision, len(contexts))
	if len(contexts) == 0 {
		return decisions
	}

	ctx, span := observability.StartSpan(ctx, "engine.CheckPermissionBatch",
		observability.AttrBatchSize.Int(len(contexts)),
	)
	defer span.End()

	metrics.RecordBatch(len(contexts))

	var g errgroup.Group
	g.SetLimit(e.batchConcurrency)
	for i, ec := range contexts {
		g.Go(func() error {
			decisions[i] = e.checkPermission(ctx, ec, true)
			return nil
		})
	}
	// Evaluations report denials as data, so Wait never returns an error.
	_ = g.Wait()

	observability.SetSpanOK(span)
	return decisions
}

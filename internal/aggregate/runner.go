package aggregate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Query - параметры одного запроса агрегации. Label игнорируется для общих метрик.
type Query struct {
	Label  string
	Mode   Mode
	Window int
}

type Result struct {
	Query  Query
	Series Series
}

// RunQueries выполняет независимые запросы параллельно, не более workers одновременно.
// Результаты возвращаются в порядке запросов.
func RunQueries(ctx context.Context, v View, queries []Query, workers int) ([]Result, error) {
	results := make([]Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			s, err := Aggregate(gctx, v, q.Window, q.Label, q.Mode)
			if err != nil {
				return fmt.Errorf("aggregate %s %q: %w", q.Mode, q.Label, err)
			}
			results[i] = Result{Query: q, Series: s}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Package retry re-runs connection attempts that fail for transient reasons.
//
// It is used only while a pool is being established. Bulk inserts are never
// retried: a failed table load is reported as is.
//
//	exec := retry.NewExecutor(retry.NewConnectClassifier(), retry.NewBackoff(3))
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
package retry

// Package middleware provides observability for state trees.
//
// This package includes:
//   - OpenTelemetry tracing of validated writes
//   - Prometheus metrics for writes and the propagation engine
//   - Hook helpers for logging and combining engine hooks
//
// # OpenTelemetry Middleware
//
// OpenTelemetry returns an observable.Middleware creating one span per write,
// with the operation, the cell path and the number of recorded diffs:
//
//	root.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("inventory"),
//	))
//
// # Prometheus Metrics
//
// NewMetrics registers:
//   - statetree_writes_total: writes by operation and outcome
//   - statetree_write_duration_seconds: write duration histogram
//   - statetree_write_errors_total: failed writes by error category
//   - statetree_computations_marked_stale_total
//   - statetree_pruned_edges_total
//   - statetree_reactions_scheduled_total
//   - statetree_diffs_recorded_total: diffs by kind
//
// Write metrics come from the middleware, engine metrics from hooks:
//
//	m := middleware.NewMetrics()
//	root.Use(m.Middleware())
//	restore := observable.SetHooks(middleware.Chain(m.Hooks(), middleware.LogHooks(logger)))
//	defer restore()
package middleware

// Package executor fans remote calls out over many items with one process-wide
// concurrency ceiling, retrying transient failures with exponential backoff.
//
// An Executor owns a fixed pool of workers and an admission gate. Every
// attempt of every call holds a gate slot only while the work function runs;
// backoff waits happen outside the gate, so a call sleeping before its next
// retry never blocks its siblings.
//
// # Basic Usage
//
// Create one executor at startup and share it:
//
//	exec := executor.NewExecutor(executor.WithCapacity(16), executor.WithLogger(logger))
//	defer exec.Shutdown(true)
//
//	pods, err := executor.FlatMap(ctx, exec, listPods, clusters)
//
// # Retries
//
// Each item gets its own retry budget. The default policy retries twice,
// starting at 500ms and doubling up to 8s, with ±25% jitter:
//
//	policy := executor.DefaultRetryPolicy()
//	policy.MaxRetries = 4
//
//	names, err := executor.Map(ctx, exec, fetch, items, executor.WithRetryPolicy(policy))
//
// Network failures and HTTP statuses 408, 429, 502, 503 and 504 are retried.
// When the server declares a wait (Retry-After, Retry-After-Ms,
// X-Ms-Retry-After-Ms or a Kubernetes retry-after detail) the call waits at
// least that long, capped at the policy's MaxDelay.
//
// # Error Handling
//
// By default a failed item is dropped and its siblings are unaffected. With
// WithIgnoreErrors(false) the first failure is returned as an *ItemError and
// the remaining items are abandoned. MapOutcomes never drops anything:
//
//	outcomes, err := executor.MapOutcomes(ctx, exec, fetch, items)
//	for _, o := range executor.FilterFailed(outcomes) {
//	    log.Printf("item %d failed after %d attempts: %v", o.Index, o.Attempts, o.Err)
//	}
//
// # Ordering
//
// Results arrive in completion order. Use SortByIndex on outcomes when input
// order matters.
//
// # Shutdown
//
// Shutdown(true) drains queued work and waits for the workers. Shutdown(false)
// cancels work that has not started and returns at once; running calls stop
// before their next retry. Submitting after shutdown fails with util.ErrShutdown.
package executor

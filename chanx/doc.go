// Package chanx provides context-aware channel operations.
//
// In jobtree, cancellation is cooperative: a job body observes a
// cancellation request only at a suspension point. The operations in
// this package are those suspension points — channel sends and receives
// that unblock when the job's context is cancelled instead of leaking
// the goroutine:
//
//   - [Send] and [Recv]: context-aware send and receive.
//   - [TrySend] and [TryRecv]: non-blocking variants.
//   - [SendTimeout] and [RecvTimeout]: variants with a deadline.
//   - [Merge]: fan-in that combines multiple channels into one.
//   - [Closable]: an idempotent-close channel wrapper that converts
//     send-on-closed panics to errors, for concurrent teardown.
//
// All functions that spawn goroutines tie them to a [context.Context],
// ensuring they terminate when the context is cancelled.
package chanx

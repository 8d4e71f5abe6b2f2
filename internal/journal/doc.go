// Package journal implements scribe's asynchronous persistence-journal
// front end and its resequencer.
//
// # Overview
//
// A Journal accepts write, batch-write, replay, confirm, delete, and loop
// submissions from many callers and dispatches each to a pluggable backend
// (internal/backend). The backend settles operations in arbitrary order;
// the resequencer buffers out-of-order completions and releases them to
// their destinations strictly in submission order.
//
// Sequence numbers are assigned from a per-Journal monotonic counter at
// submission time, on the single run-loop goroutine that owns the counter.
// A batch of N records consumes N consecutive numbers. Backend results are
// funneled through a single-consumer completion channel, so resequencer
// state is never touched by two goroutines at once and needs no lock.
//
// Ordering guarantees
//
//   - assignment order equals submission order, strictly and gaplessly,
//     per Journal instance
//   - delivery order to a destination equals assignment order for all
//     operations routed through the resequencer (write, batch, loop)
//   - replay delivers directly and carries no ordering relation to the
//     resequenced stream
//
// A backend operation that never settles leaves a permanent gap at its
// sequence number and withholds every later delivery; the journal offers
// no built-in timeout or recovery. Confirm and delete are fire-and-forget:
// their failures are logged and (when command publishing is enabled)
// published to the notification sink, never surfaced to a caller.
package journal

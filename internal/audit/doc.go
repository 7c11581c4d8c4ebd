// Package audit records account events (sign-ups, sign-ins, verification,
// recovery) without blocking the request that produced them.
//
// A Journal queues events in a bounded buffer and a single goroutine hands
// them to the Sink in batches, either when a batch fills or when the flush
// interval passes. Every event ends up delivered, failed or dropped, and
// the Recorder is told which, per event type. Close writes what is
// buffered.
package audit

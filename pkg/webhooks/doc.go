// Package webhooks applies asynchronous processor events to local billing
// state.
//
// # Overview
//
// Processors deliver events at-least-once and out of order. The Reconciler
// is therefore idempotent end to end: event ids are deduplicated (in-process
// LRU in front of a shared Redis store), updates are applied by absolute
// remote state rather than deltas, and events carrying state older than the
// record's last sync are discarded.
//
// The HTTP ingress always acknowledges events whose billing record cannot
// be found locally; processors retry failed acknowledgments indefinitely,
// so an unknown record must be logged and discarded, not failed.
//
// # Related Packages
//
//   - pkg/billing: the engine and stores events are applied through
//   - pkg/processor/stripe: parses and verifies Stripe deliveries
package webhooks

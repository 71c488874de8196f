// Package billing implements the billing state reconciliation core: it keeps
// a locally persisted billing record consistent with an external, eventually
// consistent payment processor.
//
// # Overview
//
// The central type is Engine. Every operation follows the same shape:
// resolve the remote customer, call the processor, classify the result
// through the Payment tracker, update local state, return an outcome the
// caller can act on. Outcomes that require a client-side step (3-D Secure
// style confirmation) carry the intent's client secret so a front end can
// finish the flow.
//
// # Records and Invariants
//
// A BillingRecord is created lazily on the first billing-relevant action.
// Its processor id is written exactly once, atomically with the processor
// name, right after the remote customer is created. Card display fields are
// always written or cleared as a unit, and never synchronized onto records
// that belong to a connected account.
//
// # Concurrency
//
// Operations on the same record are serialized through a per-record lock so
// a webhook cannot interleave with a request-driven charge and leave torn
// state. Operations on different records are independent.
//
// # Related Packages
//
//   - pkg/processor: the remote client contract and error taxonomy
//   - pkg/webhooks: asynchronous event application on top of this engine
//   - pkg/storage/postgres: persistent store implementations
package billing

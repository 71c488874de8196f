// Package processor defines the contract a payment processor client must
// satisfy and the error taxonomy the rest of the system programs against.
//
// # Overview
//
// The billing engine never talks to a processor's native SDK directly. It
// depends on the Client interface and on neutral wire types (Customer,
// PaymentIntent, Subscription, ...) so any processor can be plugged in.
// Concrete adapters live in subpackages (pkg/processor/stripe) and are
// responsible for mapping processor-native failures onto the taxonomy in
// errors.go before anything escapes the boundary.
//
// # Error Taxonomy
//
//	KindUnavailable - transport/timeout; safe to retry with the same idempotency key
//	KindRejected    - the processor refused the request; retrying without changed input is pointless
//	KindNotFound    - a referenced remote object does not exist
//
// Use the predicates:
//
//	if processor.IsUnavailable(err) { // schedule a retry
//	if processor.IsRejected(err)    { // surface decline to the user
//
// # Related Packages
//
//   - pkg/billing: reconciliation engine consuming this contract
//   - pkg/processor/stripe: Stripe-backed implementation
package processor

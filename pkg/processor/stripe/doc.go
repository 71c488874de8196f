// Package stripe implements processor.Client against the Stripe REST API.
//
// # Overview
//
// Calls go through a plain *http.Client with form-encoded bodies rather than
// the full SDK surface, which keeps the adapter testable with httptest and
// keeps the error mapping in one place. The stripe-go module is used for the
// pinned API version constant and for webhook signature verification.
//
// Every failure is mapped onto the processor error taxonomy before it leaves
// this package: declined cards and invalid requests become KindRejected,
// rate limits and 5xx responses become KindUnavailable, missing resources
// become KindNotFound.
//
// # Related Packages
//
//   - pkg/processor: the contract this package implements
//   - pkg/webhooks: consumes events constructed by EventVerifier
package stripe

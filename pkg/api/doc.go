// Package api provides the HTTP REST API server for the payforge billing service.
//
// # Overview
//
// This package exposes billing operations as RESTful endpoints. It handles
// billing record management, customer resolution, one-off charges,
// subscriptions, payment method updates, invoicing, and webhook ingress.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into handler groups:
//
//   - Record Management: Create and retrieve billing records
//   - Customer Resolution: Create-or-fetch the remote processor customer
//   - Charges: One-off payments with idempotent retries
//   - Subscriptions: Plan activation with trial and payment follow-up handling
//   - Payment Methods: Default card updates and setup intents
//   - Invoices: Ad-hoc invoicing and upcoming invoice previews
//   - Webhooks: Signed processor event deliveries
//
// # Error Mapping
//
// Handler responses translate the billing error taxonomy to HTTP statuses:
// unavailable processors map to 503 so callers know a retry with the same
// idempotency key is safe, rejected payments map to 422, version conflicts
// and missing remote customers map to 409, and missing records map to 404.
package api

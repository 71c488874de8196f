package api

import (
	"errors"
	"net/http"

	"github.com/payforge/payforge/pkg/billing"
	"github.com/payforge/payforge/pkg/httputil"
	"github.com/payforge/payforge/pkg/processor"
)

// writeBillingError maps the billing error taxonomy to HTTP statuses. The
// status is the retry contract: 503 means the same call with the same
// idempotency key is safe to repeat, 4xx means it is not.
func writeBillingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, billing.ErrRecordNotFound),
		errors.Is(err, billing.ErrSubscriptionNotFound),
		errors.Is(err, billing.ErrChargeNotFound):
		httputil.WriteNotFoundError(w, err.Error())

	case errors.Is(err, billing.ErrVersionConflict):
		httputil.WriteConflict(w, err.Error())

	case billing.IsCustomerNotFound(err):
		// The local record points at a remote customer that no longer
		// exists. Recreating it silently would detach payment history, so
		// the conflict is surfaced to the operator.
		httputil.WriteConflict(w, err.Error())

	case processor.IsUnavailable(err):
		httputil.WriteServiceUnavailable(w, err.Error())

	case processor.IsRejected(err):
		httputil.WriteErrorMessage(w, http.StatusUnprocessableEntity, err.Error())

	case billing.IsInvalidIntentState(err):
		httputil.WriteErrorMessage(w, http.StatusBadGateway, err.Error())

	default:
		httputil.WriteInternalError(w, err)
	}
}

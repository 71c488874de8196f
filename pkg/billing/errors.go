package billing

import (
	"errors"
	"fmt"

	"github.com/payforge/payforge/pkg/processor"
)

// ErrRecordNotFound is returned by a RecordStore when no record matches.
var ErrRecordNotFound = errors.New("billing record not found")

// ErrSubscriptionNotFound is returned by a SubscriptionStore when no
// subscription matches.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ErrChargeNotFound is returned by a ChargeStore when no charge matches.
var ErrChargeNotFound = errors.New("charge not found")

// ErrVersionConflict is returned by a RecordStore update when the record was
// modified concurrently. The caller reloads and retries.
var ErrVersionConflict = errors.New("billing record version conflict")

// CustomerNotFoundError means the local record references a remote customer
// id the processor no longer knows. This is a data-consistency fault; the
// engine never silently recreates the customer.
type CustomerNotFoundError struct {
	RecordID    int64
	ProcessorID string
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("record %d references missing remote customer %s", e.RecordID, e.ProcessorID)
}

// IsCustomerNotFound reports whether err is a CustomerNotFoundError.
func IsCustomerNotFound(err error) bool {
	var cnf *CustomerNotFoundError
	return errors.As(err, &cnf)
}

// InvalidIntentStateError means the processor's response is internally
// inconsistent, e.g. a succeeded payment intent without a charge reference.
// Fatal to the current operation; local state is left untouched.
type InvalidIntentStateError struct {
	IntentID string
	Status   processor.IntentStatus
	Reason   string
}

func (e *InvalidIntentStateError) Error() string {
	return fmt.Sprintf("intent %s in state %q is inconsistent: %s", e.IntentID, e.Status, e.Reason)
}

// IsInvalidIntentState reports whether err is an InvalidIntentStateError.
func IsInvalidIntentState(err error) bool {
	var iis *InvalidIntentStateError
	return errors.As(err, &iis)
}

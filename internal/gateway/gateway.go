package gateway

import (
	"errors"

	"github.com/courtbook/webhook-service/internal/model"
)

// ErrMalformedPayload is returned when a payload cannot be given the shape
// the provider documents. Callers treat it as retryable: a partially written
// body is indistinguishable from a transient delivery fault.
var ErrMalformedPayload = errors.New("malformed gateway payload")

// Interpretation is the provider-neutral reading of one payload. Adapters
// only translate; the effect on Payment/Booking is applied in one place.
type Interpretation struct {
	// OrderNo is the correlation key: the order reference we attached to the
	// charge, echoed back by the gateway.
	OrderNo string
	// Succeeded is the gateway's own verdict on the underlying payment.
	Succeeded bool
	// TransactionID is the gateway's identifier for the charge.
	TransactionID string
	// FailureCode and FailureReason carry the gateway's diagnostics when
	// Succeeded is false.
	FailureCode   string
	FailureReason string
	// Response is a JSON diagnostic blob persisted onto the payment record.
	Response string
}

// Adapter understands one gateway's payload dialect. Adding a gateway means
// adding one implementation and listing it in All.
type Adapter interface {
	Provider() model.Provider
	// NotificationID extracts the provider's canonical identifier for this
	// delivery, the dedup key for storage.
	NotificationID(payload []byte) (string, error)
	// Interpret reads the payload into the provider-neutral form.
	Interpret(payload []byte) (*Interpretation, error)
}

// All returns one adapter per supported gateway.
func All() []Adapter {
	return []Adapter{OmiseAdapter{}, ChillPayAdapter{}, TwoCTwoPAdapter{}}
}

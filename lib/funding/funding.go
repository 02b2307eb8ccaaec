package funding

import (
	"context"

	"github.com/pkg/errors"
)

// ErrPaymentFailed is returned when a payment could not be routed or was
// rejected by the node.
var ErrPaymentFailed = errors.New("payment failed")

type InvoiceResponse struct {
	PaymentHash    string
	PaymentRequest string
}

type PaymentResponse struct {
	FeeMsat  int64
	Preimage string
}

type InvoiceStatus struct {
	Paid bool
}

// Source is the lightning node backing the ledger.
type Source interface {
	CreateInvoice(ctx context.Context, amountSat int64, memo string) (*InvoiceResponse, error)
	PayInvoice(ctx context.Context, bolt11 string, feeLimitMsat int64) (*PaymentResponse, error)
	InvoiceStatus(ctx context.Context, paymentHash string) (InvoiceStatus, error)
	Close() error
}

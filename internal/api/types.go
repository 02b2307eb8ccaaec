package api

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	walletKey    contextKey = "wallet"
)

// ErrorResponse is the body of every non-2xx answer outside the lndhub
// routes.
type ErrorResponse struct {
	Message string `json:"message"`
}

type PaywallInvoiceRequest struct {
	Amount *int64 `json:"amount"`
}

type PaywallCheckRequest struct {
	PaymentHash string `json:"payment_hash"`
}

type PayInvoiceRequest struct {
	Invoice string `json:"invoice"`
}

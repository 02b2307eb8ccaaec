package bridgedb

import "time"

// KeyType is the permission level an API key grants.
type KeyType string

const (
	KeyTypeAdmin   KeyType = "admin"
	KeyTypeInvoice KeyType = "invoice"
)

type Wallet struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	User       string `json:"user"`
	AdminKey   string `json:"adminkey"`
	InvoiceKey string `json:"inkey"`
}

type Payment struct {
	PaymentHash string    `json:"payment_hash"`
	WalletID    string    `json:"wallet_id"`
	AmountMsat  int64     `json:"amount"`
	FeeMsat     int64     `json:"fee"`
	Memo        string    `json:"memo"`
	Bolt11      string    `json:"bolt11"`
	Preimage    string    `json:"preimage"`
	Pending     bool      `json:"pending"`
	CreatedAt   time.Time `json:"time"`
}

func (p Payment) IsOut() bool {
	return p.AmountMsat < 0
}

func (p Payment) IsIn() bool {
	return p.AmountMsat > 0
}

// PaymentFilter selects payments by state and direction. A query with
// neither Pending nor Complete, or neither Incoming nor Outgoing, matches
// nothing.
type PaymentFilter struct {
	Pending  bool
	Complete bool
	Outgoing bool
	Incoming bool
}

type Paywall struct {
	ID          string  `json:"id"`
	Wallet      string  `json:"wallet"`
	URL         string  `json:"url"`
	Memo        string  `json:"memo"`
	Description *string `json:"description"`
	Amount      int64   `json:"amount"`
	Remembers   bool    `json:"remembers"`
}

type WithdrawTarget struct {
	ID     string `json:"id"`
	Wallet string `json:"wallet"`
	LNURL  string `json:"lnurl"`
	ATime  int64  `json:"atime"`
	Amount int64  `json:"amount"`
}

package bridgedb

import (
	"gorm.io/gorm"
)

// SQLiteWallet is a ledger wallet with its two API keys
type SQLiteWallet struct {
	gorm.Model
	WalletID   string `gorm:"uniqueIndex"`
	Name       string
	UserID     string `gorm:"index"`
	AdminKey   string `gorm:"uniqueIndex"`
	InvoiceKey string `gorm:"uniqueIndex"`
}

// SQLitePayment is one incoming or outgoing lightning payment of a wallet.
// Incoming amounts are positive, outgoing negative.
type SQLitePayment struct {
	gorm.Model
	WalletID    string `gorm:"uniqueIndex:idx_wallet_hash"`
	PaymentHash string `gorm:"uniqueIndex:idx_wallet_hash;index"`
	AmountMsat  int64
	FeeMsat     int64
	Memo        string
	Bolt11      string
	Preimage    string
	Pending     bool `gorm:"index"`
}

// SQLitePaywall represents a pay-gated URL
type SQLitePaywall struct {
	gorm.Model
	PaywallID   string `gorm:"uniqueIndex"`
	WalletID    string `gorm:"index"`
	URL         string
	Memo        string
	Description *string
	Amount      int64
	Remembers   bool
}

// SQLiteWithdrawTarget represents an amilk record
type SQLiteWithdrawTarget struct {
	gorm.Model
	TargetID string `gorm:"uniqueIndex"`
	WalletID string `gorm:"index"`
	LNURL    string
	ATime    int64
	Amount   int64
}

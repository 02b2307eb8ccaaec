package bridgedb

// Database defines every persistence operation the bridge needs. Store is
// the SQLite implementation; flows depend on narrower slices of it.
type Database interface {
	// Wallet operations
	CreateWallet(userID, name string) (*Wallet, error)
	GetWallet(walletID string) (*Wallet, error)
	GetWalletForKey(key string, keyType KeyType) (*Wallet, KeyType, error)
	WalletIDsForUser(userID string) ([]string, error)

	// Payment operations
	CreatePayment(p Payment) error
	GetPayment(walletID, paymentHash string) (*Payment, error)
	GetIncomingPayment(paymentHash string) (*Payment, error)
	MarkPaymentSettled(walletID, paymentHash string) (bool, error)
	CompleteOutgoingPayment(walletID, paymentHash, preimage string, feeMsat int64) error
	DeletePayment(walletID, paymentHash string) error
	ListPayments(walletID string, filter PaymentFilter) ([]Payment, error)
	WalletBalanceMsat(walletID string) (int64, error)

	// Paywall operations
	CreatePaywall(p Paywall) (*Paywall, error)
	GetPaywall(id string) (*Paywall, error)
	ListPaywalls(walletIDs []string) ([]Paywall, error)
	DeletePaywall(id string) error

	// Withdraw target (amilk) operations
	CreateWithdrawTarget(t WithdrawTarget) (*WithdrawTarget, error)
	GetWithdrawTarget(id string) (*WithdrawTarget, error)
	ListWithdrawTargets(walletIDs []string) ([]WithdrawTarget, error)
	DeleteWithdrawTarget(id string) error

	Close() error
}

var _ Database = (*Store)(nil)

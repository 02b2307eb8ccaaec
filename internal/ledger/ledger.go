package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/Maphikza/ln-settlement-bridge/internal/bridgeerr"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/Maphikza/ln-settlement-bridge/lib/bolt11"
	"github.com/Maphikza/ln-settlement-bridge/lib/funding"
)

const (
	minFeeReserveMsat = 2000
	feeReservePercent = 1
)

// Invoice is a freshly created incoming payment request.
type Invoice struct {
	PaymentHash    string
	PaymentRequest string
}

type Status struct {
	Paid bool
}

// Ledger books invoices and payments of bridge wallets against a funding
// source. Payments between two wallets of the same ledger never touch the
// funding source.
type Ledger struct {
	db     bridgedb.Database
	source funding.Source

	// Serializes the balance check and debit of each paying wallet.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(db bridgedb.Database, source funding.Source) *Ledger {
	return &Ledger{db: db, source: source, locks: make(map[string]*sync.Mutex)}
}

func (l *Ledger) walletLock(walletID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[walletID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[walletID] = m
	}
	return m
}

// FeeReserve is the routing fee limit held back from the balance while an
// outgoing payment is in flight.
func FeeReserve(amountMsat int64) int64 {
	reserve := amountMsat * feeReservePercent / 100
	if reserve < minFeeReserveMsat {
		return minFeeReserveMsat
	}
	return reserve
}

func (l *Ledger) CreateInvoice(ctx context.Context, walletID string, amountSat int64, memo string) (*Invoice, error) {
	if amountSat < 0 {
		return nil, bridgeerr.Validation("Amount must be positive.")
	}

	res, err := l.source.CreateInvoice(ctx, amountSat, memo)
	if err != nil {
		return nil, bridgeerr.Ledger("could not create invoice", err)
	}

	err = l.db.CreatePayment(bridgedb.Payment{
		PaymentHash: res.PaymentHash,
		WalletID:    walletID,
		AmountMsat:  amountSat * 1000,
		Memo:        memo,
		Bolt11:      res.PaymentRequest,
		Pending:     true,
	})
	if err != nil {
		return nil, bridgeerr.Ledger("could not store invoice", err)
	}

	logger.Debug("Invoice created", "wallet", walletID, "hash", res.PaymentHash, "sat", amountSat)
	return &Invoice{PaymentHash: res.PaymentHash, PaymentRequest: res.PaymentRequest}, nil
}

// PayInvoice pays a BOLT11 invoice from walletID and returns the settled
// outgoing payment.
func (l *Ledger) PayInvoice(ctx context.Context, walletID, invoice string) (*bridgedb.Payment, error) {
	decoded, err := bolt11.Decode(invoice)
	if err != nil {
		return nil, bridgeerr.Validation("Invalid bolt11 invoice.")
	}
	if decoded.AmountMsat <= 0 {
		return nil, bridgeerr.Validation("Amountless invoices are not supported.")
	}

	internal, err := l.db.GetIncomingPayment(decoded.PaymentHash)
	if err != nil {
		return nil, bridgeerr.Ledger("could not look up invoice", err)
	}

	reserve := int64(0)
	if internal == nil {
		reserve = FeeReserve(decoded.AmountMsat)
	}

	lock := l.walletLock(walletID)
	lock.Lock()
	if err := l.checkBalance(walletID, decoded.AmountMsat+reserve); err != nil {
		lock.Unlock()
		return nil, err
	}
	if internal != nil {
		defer lock.Unlock()
		return l.payInternal(walletID, invoice, decoded, internal)
	}

	// The pending row holds amount and reserve, so the lock can go before
	// the node routes the payment.
	err = l.reserveOutgoing(walletID, invoice, decoded, reserve)
	lock.Unlock()
	if err != nil {
		return nil, err
	}
	return l.payExternal(ctx, walletID, invoice, decoded, reserve)
}

func (l *Ledger) checkBalance(walletID string, needMsat int64) error {
	balance, err := l.db.WalletBalanceMsat(walletID)
	if err != nil {
		return bridgeerr.Ledger("could not read balance", err)
	}
	if balance < needMsat {
		return bridgeerr.Validation("Insufficient balance.")
	}
	return nil
}

func (l *Ledger) payInternal(walletID, invoice string, decoded *bolt11.Invoice, incoming *bridgedb.Payment) (*bridgedb.Payment, error) {
	if incoming.WalletID == walletID {
		return nil, bridgeerr.Validation("Cannot pay your own invoice.")
	}

	claimed, err := l.db.MarkPaymentSettled(incoming.WalletID, incoming.PaymentHash)
	if err != nil {
		return nil, bridgeerr.Ledger("could not settle invoice", err)
	}
	if !claimed {
		return nil, bridgeerr.Validation("Invoice already paid.")
	}

	out := bridgedb.Payment{
		PaymentHash: decoded.PaymentHash,
		WalletID:    walletID,
		AmountMsat:  -decoded.AmountMsat,
		Memo:        decoded.Description,
		Bolt11:      invoice,
	}
	if err := l.db.CreatePayment(out); err != nil {
		logger.Error("Internal payment settled without outgoing record", "wallet", walletID, "hash", decoded.PaymentHash, "error", err)
		return nil, bridgeerr.Ledger("could not store payment", err)
	}

	logger.Info("Internal payment settled", "from", walletID, "to", incoming.WalletID, "msat", decoded.AmountMsat)
	return &out, nil
}

func (l *Ledger) reserveOutgoing(walletID, invoice string, decoded *bolt11.Invoice, reserve int64) error {
	err := l.db.CreatePayment(bridgedb.Payment{
		PaymentHash: decoded.PaymentHash,
		WalletID:    walletID,
		AmountMsat:  -decoded.AmountMsat,
		FeeMsat:     reserve,
		Memo:        decoded.Description,
		Bolt11:      invoice,
		Pending:     true,
	})
	if err != nil {
		return bridgeerr.Ledger("could not store payment", err)
	}
	return nil
}

func (l *Ledger) payExternal(ctx context.Context, walletID, invoice string, decoded *bolt11.Invoice, reserve int64) (*bridgedb.Payment, error) {
	res, err := l.source.PayInvoice(ctx, invoice, reserve)
	if err != nil {
		if derr := l.db.DeletePayment(walletID, decoded.PaymentHash); derr != nil {
			logger.Error("Could not remove failed payment", "wallet", walletID, "hash", decoded.PaymentHash, "error", derr)
		}
		return nil, bridgeerr.Ledger("payment failed", err)
	}

	if err := l.db.CompleteOutgoingPayment(walletID, decoded.PaymentHash, res.Preimage, res.FeeMsat); err != nil {
		return nil, bridgeerr.Ledger("could not complete payment", err)
	}

	logger.Info("Payment sent", "wallet", walletID, "hash", decoded.PaymentHash, "msat", decoded.AmountMsat, "fee_msat", res.FeeMsat)
	return l.db.GetPayment(walletID, decoded.PaymentHash)
}

// CheckInvoiceStatus reports whether an invoice of walletID is paid. A
// payment already settled in the database is paid for good; otherwise the
// funding source decides.
func (l *Ledger) CheckInvoiceStatus(ctx context.Context, walletID, paymentHash string) (Status, error) {
	p, err := l.db.GetPayment(walletID, paymentHash)
	if err != nil {
		return Status{}, bridgeerr.Ledger("could not look up invoice", err)
	}
	if p == nil {
		return Status{}, bridgeerr.NotFound("Invoice does not exist.")
	}
	if !p.Pending {
		return Status{Paid: true}, nil
	}

	st, err := l.source.InvoiceStatus(ctx, paymentHash)
	if err != nil {
		return Status{}, bridgeerr.Ledger("could not check invoice", err)
	}
	return Status{Paid: st.Paid}, nil
}

// MarkSettled flips a pending invoice to settled. It is safe to call
// repeatedly and concurrently; only the first call reports true.
func (l *Ledger) MarkSettled(walletID, paymentHash string) (bool, error) {
	changed, err := l.db.MarkPaymentSettled(walletID, paymentHash)
	if err != nil {
		return false, bridgeerr.Ledger("could not settle invoice", err)
	}
	if changed {
		logger.Info("Invoice settled", "wallet", walletID, "hash", paymentHash)
	}
	return changed, nil
}

func (l *Ledger) BalanceMsat(walletID string) (int64, error) {
	balance, err := l.db.WalletBalanceMsat(walletID)
	if err != nil {
		return 0, bridgeerr.Ledger("could not read balance", err)
	}
	return balance, nil
}

// Payment returns nil, nil when walletID has no payment with that hash.
func (l *Ledger) Payment(walletID, paymentHash string) (*bridgedb.Payment, error) {
	p, err := l.db.GetPayment(walletID, paymentHash)
	if err != nil {
		return nil, bridgeerr.Ledger("could not look up payment", err)
	}
	return p, nil
}

func (l *Ledger) Payments(walletID string, filter bridgedb.PaymentFilter) ([]bridgedb.Payment, error) {
	payments, err := l.db.ListPayments(walletID, filter)
	if err != nil {
		return nil, bridgeerr.Ledger("could not list payments", err)
	}
	return payments, nil
}

// TopUp credits a wallet with a settled incoming payment that has no
// invoice behind it.
func (l *Ledger) TopUp(walletID string, amountSat int64) error {
	if amountSat <= 0 {
		return bridgeerr.Validation("Amount must be positive.")
	}
	w, err := l.db.GetWallet(walletID)
	if err != nil {
		return bridgeerr.Ledger("could not load wallet", err)
	}
	if w == nil {
		return bridgeerr.NotFound("Wallet does not exist.")
	}

	var hash [32]byte
	if _, err := rand.Read(hash[:]); err != nil {
		return bridgeerr.Ledger("could not generate topup id", err)
	}
	err = l.db.CreatePayment(bridgedb.Payment{
		PaymentHash: "topup_" + hex.EncodeToString(hash[:]),
		WalletID:    walletID,
		AmountMsat:  amountSat * 1000,
		Memo:        "topup",
	})
	if err != nil {
		return bridgeerr.Ledger("could not store topup", err)
	}

	logger.Info("Wallet topped up", "wallet", walletID, "sat", amountSat)
	return nil
}

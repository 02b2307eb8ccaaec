package paywall

import (
	"context"
	"strings"

	"github.com/Maphikza/ln-settlement-bridge/internal/bridgeerr"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/ledger"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
)

const memoPrefix = "#paywall "

type Store interface {
	CreatePaywall(p bridgedb.Paywall) (*bridgedb.Paywall, error)
	GetPaywall(id string) (*bridgedb.Paywall, error)
	ListPaywalls(walletIDs []string) ([]bridgedb.Paywall, error)
	DeletePaywall(id string) error
}

type Ledger interface {
	CreateInvoice(ctx context.Context, walletID string, amountSat int64, memo string) (*ledger.Invoice, error)
	CheckInvoiceStatus(ctx context.Context, walletID, paymentHash string) (ledger.Status, error)
	MarkSettled(walletID, paymentHash string) (bool, error)
	Payment(walletID, paymentHash string) (*bridgedb.Payment, error)
}

type Service struct {
	store  Store
	ledger Ledger
}

func NewService(store Store, l Ledger) *Service {
	return &Service{store: store, ledger: l}
}

type Invoice struct {
	PaymentHash    string `json:"payment_hash"`
	PaymentRequest string `json:"payment_request"`
}

// Unlock is the answer to a check. URL and Remembers are only set once the
// invoice is paid.
type Unlock struct {
	Paid      bool   `json:"paid"`
	URL       string `json:"url,omitempty"`
	Remembers *bool  `json:"remembers,omitempty"`
}

type CreateRequest struct {
	URL         string  `json:"url"`
	Memo        string  `json:"memo"`
	Description *string `json:"description"`
	Amount      *int64  `json:"amount"`
	Remembers   *bool   `json:"remembers"`
}

func (s *Service) get(id string) (*bridgedb.Paywall, error) {
	p, err := s.store.GetPaywall(id)
	if err != nil {
		return nil, bridgeerr.Ledger("could not load paywall", err)
	}
	if p == nil {
		return nil, bridgeerr.NotFound("Paywall does not exist.")
	}
	return p, nil
}

// CreateInvoice bills a visitor at least the paywall price. Paying more than
// the price is allowed.
func (s *Service) CreateInvoice(ctx context.Context, paywallID string, amount int64) (*Invoice, error) {
	p, err := s.get(paywallID)
	if err != nil {
		return nil, err
	}
	if amount < 1 {
		return nil, bridgeerr.Validation("amount must be at least 1.")
	}
	if amount < p.Amount {
		return nil, bridgeerr.Validation("Minimum amount is %d sat.", p.Amount)
	}

	inv, err := s.ledger.CreateInvoice(ctx, p.Wallet, max(amount, p.Amount), memoPrefix+p.Memo)
	if err != nil {
		return nil, err
	}
	return &Invoice{PaymentHash: inv.PaymentHash, PaymentRequest: inv.PaymentRequest}, nil
}

// CheckInvoice reveals the paywall URL once paymentHash is paid. Any
// failure to learn the status reads as not paid, and concurrent checks of
// the same invoice all unlock.
func (s *Service) CheckInvoice(ctx context.Context, paywallID, paymentHash string) (Unlock, error) {
	p, err := s.get(paywallID)
	if err != nil {
		return Unlock{}, err
	}
	if strings.TrimSpace(paymentHash) == "" {
		return Unlock{}, bridgeerr.Validation("payment_hash is required.")
	}

	payment, err := s.ledger.Payment(p.Wallet, paymentHash)
	if err != nil {
		logger.Debug("Paywall invoice lookup failed", "paywall", p.ID, "hash", paymentHash, "error", err)
		return Unlock{Paid: false}, nil
	}
	if !billedBy(p, payment) {
		return Unlock{Paid: false}, nil
	}

	status, err := s.ledger.CheckInvoiceStatus(ctx, p.Wallet, paymentHash)
	if err != nil {
		logger.Debug("Paywall invoice status unavailable", "paywall", p.ID, "hash", paymentHash, "error", err)
		return Unlock{Paid: false}, nil
	}
	if !status.Paid {
		return Unlock{Paid: false}, nil
	}

	if _, err := s.ledger.MarkSettled(p.Wallet, paymentHash); err != nil {
		logger.Error("Paid paywall invoice could not be marked settled", "paywall", p.ID, "hash", paymentHash, "error", err)
	}

	remembers := p.Remembers
	return Unlock{Paid: true, URL: p.URL, Remembers: &remembers}, nil
}

// billedBy reports whether payment is an invoice CreateInvoice issued for
// p: incoming, tagged with the paywall memo and covering its price.
func billedBy(p *bridgedb.Paywall, payment *bridgedb.Payment) bool {
	return payment != nil &&
		payment.IsIn() &&
		payment.Memo == memoPrefix+p.Memo &&
		payment.AmountMsat >= p.Amount*1000
}

func (s *Service) List(walletIDs []string) ([]bridgedb.Paywall, error) {
	paywalls, err := s.store.ListPaywalls(walletIDs)
	if err != nil {
		return nil, bridgeerr.Ledger("could not list paywalls", err)
	}
	return paywalls, nil
}

func (s *Service) Create(walletID string, req CreateRequest) (*bridgedb.Paywall, error) {
	switch {
	case strings.TrimSpace(req.URL) == "":
		return nil, bridgeerr.Validation("url is required.")
	case strings.TrimSpace(req.Memo) == "":
		return nil, bridgeerr.Validation("memo is required.")
	case req.Amount == nil || *req.Amount < 0:
		return nil, bridgeerr.Validation("amount must be a non-negative integer.")
	case req.Remembers == nil:
		return nil, bridgeerr.Validation("remembers is required.")
	}

	p, err := s.store.CreatePaywall(bridgedb.Paywall{
		Wallet:      walletID,
		URL:         req.URL,
		Memo:        req.Memo,
		Description: req.Description,
		Amount:      *req.Amount,
		Remembers:   *req.Remembers,
	})
	if err != nil {
		return nil, bridgeerr.Ledger("could not create paywall", err)
	}
	return p, nil
}

func (s *Service) Delete(walletID, id string) error {
	p, err := s.get(id)
	if err != nil {
		return err
	}
	if p.Wallet != walletID {
		return bridgeerr.Forbidden("Not your paywall.")
	}

	if err := s.store.DeletePaywall(id); err != nil {
		return bridgeerr.Ledger("could not delete paywall", err)
	}
	return nil
}

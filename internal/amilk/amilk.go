package amilk

import (
	"context"
	"strings"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/internal/bridgeerr"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/ledger"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/Maphikza/ln-settlement-bridge/internal/settlement"
	"github.com/Maphikza/ln-settlement-bridge/lib/lnurl"
)

const (
	DefaultConfirmAttempts = 10
	DefaultBackoffUnit     = time.Second
)

const errWithdrawLNURL = "Could not process withdraw LNURL."

type Store interface {
	CreateWithdrawTarget(t bridgedb.WithdrawTarget) (*bridgedb.WithdrawTarget, error)
	GetWithdrawTarget(id string) (*bridgedb.WithdrawTarget, error)
	ListWithdrawTargets(walletIDs []string) ([]bridgedb.WithdrawTarget, error)
	DeleteWithdrawTarget(id string) error
}

type Ledger interface {
	CreateInvoice(ctx context.Context, walletID string, amountSat int64, memo string) (*ledger.Invoice, error)
}

type Confirmer interface {
	Confirm(ctx context.Context, walletID, paymentHash string, maxAttempts int, backoff settlement.BackoffFunc) (settlement.Attempt, error)
}

// WithdrawClient talks to the remote LNURL-withdraw service.
type WithdrawClient interface {
	HandleWithdraw(ctx context.Context, lnurl string) (*lnurl.WithdrawResponse, error)
	SubmitInvoice(ctx context.Context, w *lnurl.WithdrawResponse, pr string) error
}

type Config struct {
	ConfirmAttempts int
	BackoffUnit     time.Duration
}

type Service struct {
	store    Store
	ledger   Ledger
	engine   Confirmer
	client   WithdrawClient
	attempts int
	backoff  settlement.BackoffFunc
}

func NewService(store Store, l Ledger, engine Confirmer, client WithdrawClient, cfg Config) *Service {
	if cfg.ConfirmAttempts <= 0 {
		cfg.ConfirmAttempts = DefaultConfirmAttempts
	}
	if cfg.BackoffUnit <= 0 {
		cfg.BackoffUnit = DefaultBackoffUnit
	}
	return &Service{
		store:    store,
		ledger:   l,
		engine:   engine,
		client:   client,
		attempts: cfg.ConfirmAttempts,
		backoff:  settlement.LinearBackoff(cfg.BackoffUnit),
	}
}

type Redemption struct {
	Paid bool `json:"paid"`
}

type CreateRequest struct {
	LNURL  string `json:"lnurl"`
	ATime  *int64 `json:"atime"`
	Amount *int64 `json:"amount"`
}

// Redeem pulls funds from the target's LNURL-withdraw link into its wallet
// and waits for the payment to land. The invoice stays in the ledger even
// when the service never pays it.
func (s *Service) Redeem(ctx context.Context, targetID string) (Redemption, error) {
	target, err := s.store.GetWithdrawTarget(targetID)
	if err != nil {
		return Redemption{}, bridgeerr.Ledger("could not load withdraw target", err)
	}
	if target == nil {
		return Redemption{}, bridgeerr.NotFound("Withdraw target does not exist.")
	}

	withdraw, err := s.client.HandleWithdraw(ctx, target.LNURL)
	if err != nil {
		logger.Warn("LNURL withdraw failed", "target", target.ID, "error", err)
		return Redemption{}, bridgeerr.Protocol(errWithdrawLNURL, err)
	}

	invoice, err := s.ledger.CreateInvoice(ctx, target.Wallet, withdraw.MaxSats(), target.ID)
	if err != nil {
		return Redemption{}, err
	}

	if err := s.client.SubmitInvoice(ctx, withdraw, invoice.PaymentRequest); err != nil {
		logger.Warn("LNURL callback failed", "target", target.ID, "hash", invoice.PaymentHash, "error", err)
		return Redemption{}, bridgeerr.Protocol(errWithdrawLNURL, err)
	}

	attempt, err := s.engine.Confirm(ctx, target.Wallet, invoice.PaymentHash, s.attempts, s.backoff)
	if err != nil {
		return Redemption{}, err
	}

	logger.Info("Withdraw redeemed", "target", target.ID, "hash", invoice.PaymentHash, "paid", attempt.Paid(), "checks", attempt.Checks)
	return Redemption{Paid: attempt.Paid()}, nil
}

func (s *Service) List(walletIDs []string) ([]bridgedb.WithdrawTarget, error) {
	targets, err := s.store.ListWithdrawTargets(walletIDs)
	if err != nil {
		return nil, bridgeerr.Ledger("could not list withdraw targets", err)
	}
	return targets, nil
}

func (s *Service) Create(walletID string, req CreateRequest) (*bridgedb.WithdrawTarget, error) {
	if strings.TrimSpace(req.LNURL) == "" {
		return nil, bridgeerr.Validation("lnurl is required.")
	}
	if req.ATime == nil || *req.ATime < 0 {
		return nil, bridgeerr.Validation("atime must be a non-negative integer.")
	}
	if req.Amount == nil || *req.Amount < 0 {
		return nil, bridgeerr.Validation("amount must be a non-negative integer.")
	}

	target, err := s.store.CreateWithdrawTarget(bridgedb.WithdrawTarget{
		Wallet: walletID,
		LNURL:  req.LNURL,
		ATime:  *req.ATime,
		Amount: *req.Amount,
	})
	if err != nil {
		return nil, bridgeerr.Ledger("could not create withdraw target", err)
	}
	return target, nil
}

func (s *Service) Delete(walletID, id string) error {
	target, err := s.store.GetWithdrawTarget(id)
	if err != nil {
		return bridgeerr.Ledger("could not load withdraw target", err)
	}
	if target == nil {
		return bridgeerr.NotFound("Withdraw target does not exist.")
	}
	if target.Wallet != walletID {
		return bridgeerr.Forbidden("Not your amilk.")
	}

	if err := s.store.DeleteWithdrawTarget(id); err != nil {
		return bridgeerr.Ledger("could not delete withdraw target", err)
	}
	return nil
}

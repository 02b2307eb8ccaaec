package settlement

import (
	"context"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/internal/ledger"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
)

type Outcome string

const (
	OutcomePaid     Outcome = "paid"
	OutcomeTimedOut Outcome = "timed_out"
)

// Attempt describes one confirmation run. Checks counts completed status
// lookups, Waited the total time slept before them.
type Attempt struct {
	Checks  int
	Waited  time.Duration
	Outcome Outcome
}

func (a Attempt) Paid() bool {
	return a.Outcome == OutcomePaid
}

// BackoffFunc returns the wait before the check with the given zero-based
// index.
type BackoffFunc func(attempt int) time.Duration

// LinearBackoff waits attempt*unit, so the first check runs immediately.
func LinearBackoff(unit time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * unit
	}
}

// Ledger is what the engine needs to observe and record a settlement.
type Ledger interface {
	CheckInvoiceStatus(ctx context.Context, walletID, paymentHash string) (ledger.Status, error)
	MarkSettled(walletID, paymentHash string) (bool, error)
}

// Engine polls the ledger until an invoice is paid or the attempt budget
// runs out.
type Engine struct {
	ledger Ledger
	sleep  func(time.Duration)
}

type Option func(*Engine)

// WithSleeper replaces time.Sleep, mostly for tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

func NewEngine(l Ledger, opts ...Option) *Engine {
	e := &Engine{ledger: l, sleep: time.Sleep}
	for _, opt := range opts {
		opt(e)
	}
	initMetrics()
	return e
}

// Confirm checks the invoice up to maxAttempts times, sleeping backoff(i)
// before check i. The sleeps ignore ctx: callers hand in a context that
// outlives the client connection. A failed lookup ends the run with an
// error and is not retried. Running out of attempts is not an error.
func (e *Engine) Confirm(ctx context.Context, walletID, paymentHash string, maxAttempts int, backoff BackoffFunc) (Attempt, error) {
	var a Attempt

	for i := 0; i < maxAttempts; i++ {
		wait := backoff(i)
		if wait > 0 {
			e.sleep(wait)
		}
		a.Waited += wait

		status, err := e.ledger.CheckInvoiceStatus(ctx, walletID, paymentHash)
		if err != nil {
			confirmations.WithLabelValues("error").Inc()
			return a, err
		}
		a.Checks++

		if status.Paid {
			if _, err := e.ledger.MarkSettled(walletID, paymentHash); err != nil {
				logger.Error("Paid invoice could not be marked settled", "wallet", walletID, "hash", paymentHash, "error", err)
			}
			a.Outcome = OutcomePaid
			e.observe(a)
			return a, nil
		}
	}

	a.Outcome = OutcomeTimedOut
	e.observe(a)
	logger.Info("Invoice not paid in time", "wallet", walletID, "hash", paymentHash, "checks", a.Checks, "waited", a.Waited)
	return a, nil
}

func (e *Engine) observe(a Attempt) {
	confirmations.WithLabelValues(string(a.Outcome)).Inc()
	checks.Observe(float64(a.Checks))
}

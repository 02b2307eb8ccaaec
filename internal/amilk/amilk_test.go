package amilk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/internal/bridgeerr"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/ledger"
	"github.com/Maphikza/ln-settlement-bridge/internal/settlement"
	"github.com/Maphikza/ln-settlement-bridge/lib/bolt11"
	"github.com/Maphikza/ln-settlement-bridge/lib/funding"
	"github.com/Maphikza/ln-settlement-bridge/lib/lnurl"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	store   *bridgedb.Store
	fake    *funding.FakeWallet
	service *Service
	wallet  *bridgedb.Wallet
	sleeps  int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store, err := bridgedb.InitSQLiteDB(filepath.Join(t.TempDir(), "amilk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fake, err := funding.NewFakeWallet("amilk-test", &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	e := &env{store: store, fake: fake}
	l := ledger.New(store, fake)
	engine := settlement.NewEngine(l, settlement.WithSleeper(func(time.Duration) { e.sleeps++ }))
	e.service = NewService(store, l, engine, lnurl.NewClient(5*time.Second, true), Config{})

	e.wallet, err = store.CreateWallet("", "milk")
	require.NoError(t, err)
	return e
}

// withdrawService serves a LNURL-withdraw endpoint offering maxMsat. When
// pay is set, the callback settles the submitted invoice.
func (e *env) withdrawService(t *testing.T, maxMsat int64, callbackStatus int, pay bool) string {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/withdraw":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"tag":             "withdrawRequest",
				"callback":        srv.URL + "/callback",
				"k1":              "k1",
				"minWithdrawable": 1000,
				"maxWithdrawable": maxMsat,
			})
		case "/callback":
			if callbackStatus != http.StatusOK {
				w.WriteHeader(callbackStatus)
				return
			}
			if pay {
				inv, err := bolt11.Decode(r.URL.Query().Get("pr"))
				if err == nil {
					e.fake.Settle(inv.PaymentHash)
				}
			}
			w.Write([]byte(`{"status":"OK"}`))
		}
	}))
	t.Cleanup(srv.Close)

	encoded, err := lnurl.Encode(srv.URL + "/withdraw")
	require.NoError(t, err)
	return encoded
}

func (e *env) target(t *testing.T, link string) *bridgedb.WithdrawTarget {
	t.Helper()
	atime, amount := int64(60), int64(0)
	target, err := e.service.Create(e.wallet.ID, CreateRequest{LNURL: link, ATime: &atime, Amount: &amount})
	require.NoError(t, err)
	return target
}

func (e *env) payments(t *testing.T) []bridgedb.Payment {
	t.Helper()
	p, err := e.store.ListPayments(e.wallet.ID, bridgedb.PaymentFilter{Pending: true, Complete: true, Incoming: true})
	require.NoError(t, err)
	return p
}

func TestRedeemPaid(t *testing.T) {
	e := newEnv(t)
	target := e.target(t, e.withdrawService(t, 25500, http.StatusOK, true))

	res, err := e.service.Redeem(context.Background(), target.ID)
	require.NoError(t, err)
	assert.True(t, res.Paid)
	assert.Zero(t, e.sleeps, "paid on the first check")

	payments := e.payments(t)
	require.Len(t, payments, 1)
	assert.False(t, payments[0].Pending)
	assert.Equal(t, int64(25000), payments[0].AmountMsat)
	assert.Equal(t, target.ID, payments[0].Memo)
}

func TestRedeemNeverPaid(t *testing.T) {
	e := newEnv(t)
	target := e.target(t, e.withdrawService(t, 5000, http.StatusOK, false))

	res, err := e.service.Redeem(context.Background(), target.ID)
	require.NoError(t, err)
	assert.False(t, res.Paid)
	assert.Equal(t, DefaultConfirmAttempts-1, e.sleeps)

	payments := e.payments(t)
	require.Len(t, payments, 1, "the unpaid invoice is left behind")
	assert.True(t, payments[0].Pending)
}

func TestRedeemUnknownTarget(t *testing.T) {
	e := newEnv(t)
	_, err := e.service.Redeem(context.Background(), "missing")
	assert.True(t, errors.Is(err, bridgeerr.ErrNotFound))
}

func TestRedeemBadLNURL(t *testing.T) {
	e := newEnv(t)
	target := e.target(t, "lnurl1notreally")

	_, err := e.service.Redeem(context.Background(), target.ID)
	assert.True(t, errors.Is(err, bridgeerr.ErrProtocol))
	assert.Equal(t, "Could not process withdraw LNURL.", bridgeerr.Message(err))
	assert.Empty(t, e.payments(t), "no invoice before the service answered")
}

func TestRedeemCallbackRejected(t *testing.T) {
	e := newEnv(t)
	target := e.target(t, e.withdrawService(t, 5000, http.StatusBadRequest, false))

	_, err := e.service.Redeem(context.Background(), target.ID)
	assert.True(t, errors.Is(err, bridgeerr.ErrProtocol))
	assert.Len(t, e.payments(t), 1)
	assert.Zero(t, e.sleeps)
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t)
	neg, zero := int64(-1), int64(0)

	for _, req := range []CreateRequest{
		{LNURL: "", ATime: &zero, Amount: &zero},
		{LNURL: "lnurl1x", ATime: nil, Amount: &zero},
		{LNURL: "lnurl1x", ATime: &neg, Amount: &zero},
		{LNURL: "lnurl1x", ATime: &zero, Amount: &neg},
	} {
		_, err := e.service.Create(e.wallet.ID, req)
		assert.True(t, errors.Is(err, bridgeerr.ErrValidation))
	}
}

func TestListAndDelete(t *testing.T) {
	e := newEnv(t)
	other, err := e.store.CreateWallet(e.wallet.User, "other")
	require.NoError(t, err)
	target := e.target(t, "lnurl1x")

	list, err := e.service.List([]string{e.wallet.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, target.ID, list[0].ID)

	err = e.service.Delete(other.ID, target.ID)
	assert.True(t, errors.Is(err, bridgeerr.ErrForbidden))

	require.NoError(t, e.service.Delete(e.wallet.ID, target.ID))
	err = e.service.Delete(e.wallet.ID, target.ID)
	assert.True(t, errors.Is(err, bridgeerr.ErrNotFound))
}

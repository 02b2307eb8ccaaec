package bridgedb

import (
	"bytes"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := InitSQLiteDB(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWalletKeys(t *testing.T) {
	store := newTestStore(t)

	w, err := store.CreateWallet("", "main")
	require.NoError(t, err)
	assert.Len(t, w.ID, 32)
	assert.NotEqual(t, w.AdminKey, w.InvoiceKey)

	got, kind, err := store.GetWalletForKey(w.InvoiceKey, KeyTypeInvoice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, KeyTypeInvoice, kind)

	got, kind, err = store.GetWalletForKey(w.AdminKey, KeyTypeInvoice)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, KeyTypeAdmin, kind)

	got, _, err = store.GetWalletForKey(w.InvoiceKey, KeyTypeAdmin)
	require.NoError(t, err)
	assert.Nil(t, got, "invoice key must not pass an admin check")

	got, _, err = store.GetWalletForKey("nope", KeyTypeInvoice)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestWalletIDsForUser(t *testing.T) {
	store := newTestStore(t)

	a, err := store.CreateWallet("", "a")
	require.NoError(t, err)
	b, err := store.CreateWallet(a.User, "b")
	require.NoError(t, err)
	_, err = store.CreateWallet("", "other")
	require.NoError(t, err)

	ids, err := store.WalletIDsForUser(a.User)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids)
}

func TestMarkPaymentSettledTransitionsOnce(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreatePayment(Payment{
		PaymentHash: "aa", WalletID: "w1", AmountMsat: 5000, Pending: true,
	}))

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := store.MarkPaymentSettled("w1", "aa")
			assert.NoError(t, err)
			results <- changed
		}()
	}
	wg.Wait()
	close(results)

	transitions := 0
	for changed := range results {
		if changed {
			transitions++
		}
	}
	assert.Equal(t, 1, transitions)

	p, err := store.GetPayment("w1", "aa")
	require.NoError(t, err)
	assert.False(t, p.Pending)
}

func TestListPaymentsFilter(t *testing.T) {
	store := newTestStore(t)
	for _, p := range []Payment{
		{PaymentHash: "in-done", WalletID: "w", AmountMsat: 1000},
		{PaymentHash: "in-pending", WalletID: "w", AmountMsat: 2000, Pending: true},
		{PaymentHash: "out-done", WalletID: "w", AmountMsat: -3000},
		{PaymentHash: "out-pending", WalletID: "w", AmountMsat: -4000, Pending: true},
		{PaymentHash: "elsewhere", WalletID: "x", AmountMsat: -1},
	} {
		require.NoError(t, store.CreatePayment(p))
	}

	hashes := func(ps []Payment) []string {
		out := []string{}
		for _, p := range ps {
			out = append(out, p.PaymentHash)
		}
		return out
	}

	out, err := store.ListPayments("w", PaymentFilter{Pending: true, Complete: true, Outgoing: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"out-done", "out-pending"}, hashes(out))

	in, err := store.ListPayments("w", PaymentFilter{Pending: true, Complete: true, Incoming: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"in-done", "in-pending"}, hashes(in))

	done, err := store.ListPayments("w", PaymentFilter{Complete: true, Incoming: true, Outgoing: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"in-done", "out-done"}, hashes(done))

	none, err := store.ListPayments("w", PaymentFilter{Pending: true, Complete: true})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWalletBalance(t *testing.T) {
	store := newTestStore(t)
	for _, p := range []Payment{
		{PaymentHash: "1", WalletID: "w", AmountMsat: 10000},
		{PaymentHash: "2", WalletID: "w", AmountMsat: 50000, Pending: true},
		{PaymentHash: "3", WalletID: "w", AmountMsat: -3000, FeeMsat: 10},
		{PaymentHash: "4", WalletID: "w", AmountMsat: -1000, Pending: true},
	} {
		require.NoError(t, store.CreatePayment(p))
	}

	balance, err := store.WalletBalanceMsat("w")
	require.NoError(t, err)
	assert.Equal(t, int64(10000-3000-10-1000), balance)

	empty, err := store.WalletBalanceMsat("nobody")
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestRecordsCRUD(t *testing.T) {
	store := newTestStore(t)

	desc := "members only"
	p, err := store.CreatePaywall(Paywall{Wallet: "w", URL: "https://example.com", Memo: "m", Description: &desc, Amount: 10, Remembers: true})
	require.NoError(t, err)

	got, err := store.GetPaywall(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	list, err := store.ListPaywalls([]string{"w", "z"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeletePaywall(p.ID))
	got, err = store.GetPaywall(p.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	target, err := store.CreateWithdrawTarget(WithdrawTarget{Wallet: "w", LNURL: "lnurl1xyz", ATime: 60, Amount: 100})
	require.NoError(t, err)

	targets, err := store.ListWithdrawTargets([]string{"w"})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, *target, targets[0])

	require.NoError(t, store.DeleteWithdrawTarget(target.ID))
	gone, err := store.GetWithdrawTarget(target.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMissingRowsAreNotLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := sqlLogOutput
	sqlLogOutput = &buf
	t.Cleanup(func() { sqlLogOutput = prev })
	store := newTestStore(t)

	w, err := store.GetWallet("missing")
	require.NoError(t, err)
	assert.Nil(t, w)
	p, err := store.GetPaywall("missing")
	require.NoError(t, err)
	assert.Nil(t, p)
	pay, err := store.GetPayment("missing", "hash")
	require.NoError(t, err)
	assert.Nil(t, pay)
	assert.Empty(t, buf.String())

	assert.Error(t, store.db.Exec("SELECT * FROM no_such_table").Error)
	assert.Contains(t, buf.String(), "no_such_table", "real SQL errors are still logged")
}

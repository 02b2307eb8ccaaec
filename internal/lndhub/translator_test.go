package lndhub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/internal/bridgeerr"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/ledger"
	"github.com/Maphikza/ln-settlement-bridge/lib/funding"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLedger struct {
	invoice   *ledger.Invoice
	createErr error
	payErr    error
	paid      string
	balance   int64
	payments  []bridgedb.Payment
}

func (s *stubLedger) CreateInvoice(_ context.Context, _ string, _ int64, _ string) (*ledger.Invoice, error) {
	return s.invoice, s.createErr
}

func (s *stubLedger) PayInvoice(_ context.Context, _, bolt11 string) (*bridgedb.Payment, error) {
	if s.payErr != nil {
		return nil, s.payErr
	}
	s.paid = bolt11
	return &bridgedb.Payment{}, nil
}

func (s *stubLedger) BalanceMsat(string) (int64, error) {
	return s.balance, nil
}

// Payments applies the direction part of the filter like the database does.
func (s *stubLedger) Payments(_ string, f bridgedb.PaymentFilter) ([]bridgedb.Payment, error) {
	var out []bridgedb.Payment
	for _, p := range s.payments {
		if (p.IsIn() && f.Incoming) || (p.IsOut() && f.Outgoing) {
			out = append(out, p)
		}
	}
	return out, nil
}

func fixedNow() time.Time {
	return time.Unix(1700000000, 0)
}

func newTranslator(l Ledger) *Translator {
	t := NewTranslator(l)
	t.now = fixedNow
	return t
}

func invoiceFor(t *testing.T, sat int64, memo string) (string, string) {
	t.Helper()
	w, err := funding.NewFakeWallet("lndhub-test", &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	res, err := w.CreateInvoice(context.Background(), sat, memo)
	require.NoError(t, err)
	return res.PaymentRequest, res.PaymentHash
}

func marshal(t *testing.T, r Result) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func strPtr(s string) *string { return &s }

func TestGetInfoAlwaysFails(t *testing.T) {
	out := marshal(t, newTranslator(&stubLedger{}).GetInfo())
	assert.Equal(t, map[string]interface{}{"error": true, "code": float64(1), "message": "bad auth"}, out)
}

func TestAuth(t *testing.T) {
	tr := newTranslator(&stubLedger{})

	res := tr.Auth(AuthRequest{Login: strPtr("a"), Password: strPtr("b")})
	require.False(t, res.IsError())
	want := base64.URLEncoding.EncodeToString([]byte("a:b"))
	assert.Equal(t, AuthResponse{RefreshToken: want, AccessToken: want}, res.Envelope())

	res = tr.Auth(AuthRequest{RefreshToken: strPtr("tok")})
	assert.Equal(t, AuthResponse{RefreshToken: "tok", AccessToken: "tok"}, res.Envelope())

	for _, req := range []AuthRequest{
		{},
		{Login: strPtr("a"), Password: strPtr("b"), RefreshToken: strPtr("tok")},
		{Login: strPtr("a"), RefreshToken: strPtr("tok")},
		{Login: strPtr("a")},
	} {
		res := tr.Auth(req)
		require.True(t, res.IsError())
		assert.Equal(t, CodeBadArguments, res.Err().Code)
	}
}

func TestAddInvoice(t *testing.T) {
	pr, hash := invoiceFor(t, 10, "x")
	tr := newTranslator(&stubLedger{invoice: &ledger.Invoice{PaymentHash: hash, PaymentRequest: pr}})

	res := tr.AddInvoice(context.Background(), "w", AddInvoiceRequest{Amt: decimal.NewFromInt(10), Memo: "x"})
	require.False(t, res.IsError())
	env := res.Envelope().(AddInvoiceResponse)
	assert.Equal(t, pr, env.PayReq)
	assert.Equal(t, pr, env.PaymentRequest)
	assert.Equal(t, "500", env.AddIndex)
	assert.Equal(t, hash, env.Hash)
	assert.Equal(t, "Buffer", env.RHash.Type)
	assert.Len(t, env.RHash.Data, 32)

	res = tr.AddInvoice(context.Background(), "w", AddInvoiceRequest{Amt: decimal.RequireFromString("1.5")})
	assert.Equal(t, CodeBadArguments, res.Err().Code)
}

func TestAddInvoiceAcceptsStringAmount(t *testing.T) {
	var req AddInvoiceRequest
	require.NoError(t, json.Unmarshal([]byte(`{"amt":"21","memo":"m"}`), &req))
	assert.Equal(t, int64(21), req.Amt.IntPart())
	require.NoError(t, json.Unmarshal([]byte(`{"amt":42,"memo":"m"}`), &req))
	assert.Equal(t, int64(42), req.Amt.IntPart())
}

func TestAddInvoiceLedgerFailure(t *testing.T) {
	tr := newTranslator(&stubLedger{createErr: errors.New("node offline")})

	out := marshal(t, tr.AddInvoice(context.Background(), "w", AddInvoiceRequest{Amt: decimal.NewFromInt(1)}))
	assert.Equal(t, true, out["error"])
	assert.Equal(t, float64(7), out["code"])
	assert.Equal(t, "Failed to create invoice: node offline", out["message"])
}

func TestPayInvoice(t *testing.T) {
	pr, hash := invoiceFor(t, 21, "pizza")
	l := &stubLedger{}
	tr := newTranslator(l)

	res := tr.PayInvoice(context.Background(), "w", pr)
	require.False(t, res.IsError())
	assert.Equal(t, pr, l.paid)

	out := marshal(t, res)
	assert.Equal(t, strings.Repeat("0", 64), out["payment_preimage"])
	assert.Equal(t, hash, out["payment_hash"])
	assert.Equal(t, "", out["payment_error"])
	assert.Equal(t, map[string]interface{}{}, out["route"])
	assert.Equal(t, float64(21), out["value"])
	assert.Equal(t, float64(0), out["fee"])
	assert.Equal(t, "paid_invoice", out["type"])
	assert.Equal(t, float64(1700000000), out["timestamp"])
	assert.Equal(t, "pizza", out["memo"])

	decoded := out["decoded"].(map[string]interface{})
	assert.Equal(t, hash, decoded["payment_hash"])
	assert.Equal(t, float64(21), decoded["num_satoshis"])
	assert.Equal(t, "", decoded["fallback_addr"])
}

func TestPayInvoiceFailure(t *testing.T) {
	pr, _ := invoiceFor(t, 21, "pizza")
	tr := newTranslator(&stubLedger{payErr: bridgeerr.Validation("Insufficient balance.")})

	res := tr.PayInvoice(context.Background(), "w", pr)
	require.True(t, res.IsError())
	assert.Equal(t, CodePaymentFailed, res.Err().Code)
	assert.Equal(t, "Payment failed: Insufficient balance.", res.Err().Message)

	res = tr.PayInvoice(context.Background(), "w", "lnbc1nope")
	assert.Equal(t, CodePaymentFailed, res.Err().Code)
}

func TestBalance(t *testing.T) {
	out := marshal(t, newTranslator(&stubLedger{balance: 12345}).Balance("w"))
	assert.Equal(t, map[string]interface{}{"BTC": map[string]interface{}{"AvailableBalance": float64(12)}}, out)
}

func TestHistoryDirectionSplit(t *testing.T) {
	created := time.Unix(1690000000, 0)
	l := &stubLedger{payments: []bridgedb.Payment{
		{PaymentHash: "in1", AmountMsat: 5000, Memo: "tip", Bolt11: "lnbcrt1in", CreatedAt: created},
		{PaymentHash: "out1", AmountMsat: -3000, FeeMsat: 1000, Memo: "coffee", CreatedAt: created},
		{PaymentHash: "out2", AmountMsat: -2500, Memo: "tea", Pending: true, CreatedAt: created},
		{PaymentHash: "in2", AmountMsat: 7000, Memo: "gift", Pending: true, CreatedAt: created},
	}}
	tr := newTranslator(l)

	txs := tr.GetTxs("w").Envelope().([]Transaction)
	require.Len(t, txs, 2)
	assert.Equal(t, Transaction{
		PaymentPreimage: strings.Repeat("0", 64),
		PaymentHash:     strings.Repeat("0", 64),
		FeeMsat:         1000,
		Type:            "paid_invoice",
		Fee:             1,
		Value:           -3,
		Timestamp:       1690000000,
		Memo:            "coffee",
	}, txs[0])
	assert.Equal(t, "Payment in transition", txs[1].Memo)
	assert.Equal(t, int64(-2), txs[1].Value)

	invoices := tr.GetUserInvoices("w").Envelope().([]UserInvoice)
	require.Len(t, invoices, 2)
	assert.Equal(t, "lnbcrt1in", invoices[0].PaymentRequest)
	assert.True(t, invoices[0].IsPaid)
	assert.Equal(t, int64(5), invoices[0].Amt)
	assert.Equal(t, int64(1700001800), invoices[0].ExpireTime)
	assert.Equal(t, "user_invoice", invoices[0].Type)
	assert.False(t, invoices[1].IsPaid)
	assert.Equal(t, "gift", invoices[1].Description)
}

func TestEmptyHistoriesAreArrays(t *testing.T) {
	tr := newTranslator(&stubLedger{})
	for _, r := range []Result{tr.GetTxs("w"), tr.GetUserInvoices("w"), tr.GetBtc(), tr.GetPending()} {
		raw, err := json.Marshal(r)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(raw))
	}
}

func TestDecodeInvoice(t *testing.T) {
	pr, hash := invoiceFor(t, 3, "decode me")
	tr := newTranslator(&stubLedger{})

	d, err := tr.DecodeInvoice(pr)
	require.NoError(t, err)
	assert.Equal(t, hash, d.PaymentHash)
	assert.Equal(t, "3", d.NumSatoshis.String())
	assert.Equal(t, "decode me", d.Description)
	assert.Len(t, d.Destination, 66)

	d, err = tr.DecodeInvoice("lnbc1garbage")
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, bridgeerr.ErrValidation))
}

func TestParseToken(t *testing.T) {
	keyType, key, err := ParseToken("Bearer " + Token(bridgedb.KeyTypeAdmin, "abc123"))
	require.NoError(t, err)
	assert.Equal(t, bridgedb.KeyTypeAdmin, keyType)
	assert.Equal(t, "abc123", key)

	keyType, key, err = ParseToken("Bearer " + base64.StdEncoding.EncodeToString([]byte("invoice:k")))
	require.NoError(t, err)
	assert.Equal(t, bridgedb.KeyTypeInvoice, keyType)
	assert.Equal(t, "k", key)

	for _, bad := range []string{"", "Bearer ", "Bearer !!!", "Bearer " + base64.StdEncoding.EncodeToString([]byte("root:k")), "Bearer " + base64.StdEncoding.EncodeToString([]byte("admin"))} {
		_, _, err := ParseToken(bad)
		assert.True(t, errors.Is(err, ErrBadToken), bad)
	}
}

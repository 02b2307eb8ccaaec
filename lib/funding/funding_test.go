package funding

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/Maphikza/ln-settlement-bridge/lib/bolt11"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestFakeWalletInvoices(t *testing.T) {
	w, err := NewFakeWallet("ToTheMoon1", &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	res, err := w.CreateInvoice(context.Background(), 21, "#paywall coffee")
	require.NoError(t, err)

	inv, err := bolt11.Decode(res.PaymentRequest)
	require.NoError(t, err)
	assert.Equal(t, res.PaymentHash, inv.PaymentHash)
	assert.Equal(t, int64(21000), inv.AmountMsat)
	assert.Equal(t, "#paywall coffee", inv.Description)
	assert.Equal(t, hex.EncodeToString(w.NodePubKey().SerializeCompressed()), inv.Payee)

	status, err := w.InvoiceStatus(context.Background(), res.PaymentHash)
	require.NoError(t, err)
	assert.False(t, status.Paid)

	w.Settle(res.PaymentHash)
	status, err = w.InvoiceStatus(context.Background(), res.PaymentHash)
	require.NoError(t, err)
	assert.True(t, status.Paid)
}

func TestFakeWalletKeyIsStable(t *testing.T) {
	a, err := NewFakeWallet("secret", &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	b, err := NewFakeWallet("secret", &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	c, err := NewFakeWallet("other", &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	assert.True(t, a.NodePubKey().IsEqual(b.NodePubKey()))
	assert.False(t, a.NodePubKey().IsEqual(c.NodePubKey()))

	_, err = NewFakeWallet("", &chaincfg.RegressionNetParams)
	assert.Error(t, err)
}

func TestFakeWalletCannotRoute(t *testing.T) {
	w, err := NewFakeWallet("secret", &chaincfg.RegressionNetParams)
	require.NoError(t, err)

	_, err = w.PayInvoice(context.Background(), "lnbcrt1x", 1000)
	assert.True(t, errors.Is(err, ErrPaymentFailed))
}

type stubLightning struct {
	lnrpc.LightningClient

	invoice  *lnrpc.Invoice
	sendReq  *lnrpc.SendRequest
	sendResp *lnrpc.SendResponse
	lookedUp string
	state    lnrpc.Invoice_InvoiceState
}

func (s *stubLightning) AddInvoice(_ context.Context, in *lnrpc.Invoice, _ ...grpc.CallOption) (*lnrpc.AddInvoiceResponse, error) {
	s.invoice = in
	return &lnrpc.AddInvoiceResponse{RHash: []byte{0xab, 0xcd}, PaymentRequest: "lnbcrt1stub"}, nil
}

func (s *stubLightning) SendPaymentSync(_ context.Context, in *lnrpc.SendRequest, _ ...grpc.CallOption) (*lnrpc.SendResponse, error) {
	s.sendReq = in
	return s.sendResp, nil
}

func (s *stubLightning) LookupInvoice(_ context.Context, in *lnrpc.PaymentHash, _ ...grpc.CallOption) (*lnrpc.Invoice, error) {
	s.lookedUp = in.RHashStr
	return &lnrpc.Invoice{State: s.state}, nil
}

func TestLndWallet(t *testing.T) {
	stub := &stubLightning{
		sendResp: &lnrpc.SendResponse{
			PaymentPreimage: []byte{0x01},
			PaymentRoute:    &lnrpc.Route{TotalFeesMsat: 1500},
		},
		state: lnrpc.Invoice_SETTLED,
	}
	w := newLndWallet(stub, nil)
	ctx := context.Background()

	res, err := w.CreateInvoice(ctx, 100, "memo")
	require.NoError(t, err)
	assert.Equal(t, "abcd", res.PaymentHash)
	assert.Equal(t, "lnbcrt1stub", res.PaymentRequest)
	assert.Equal(t, int64(100), stub.invoice.Value)
	assert.Equal(t, "memo", stub.invoice.Memo)

	pay, err := w.PayInvoice(ctx, "lnbcrt1other", 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), pay.FeeMsat)
	assert.Equal(t, "01", pay.Preimage)
	assert.Equal(t, int64(2000), stub.sendReq.FeeLimit.GetFixedMsat())

	status, err := w.InvoiceStatus(ctx, "abcd")
	require.NoError(t, err)
	assert.True(t, status.Paid)
	assert.Equal(t, "abcd", stub.lookedUp)

	stub.sendResp = &lnrpc.SendResponse{PaymentError: "no route"}
	_, err = w.PayInvoice(ctx, "lnbcrt1other", 2000)
	assert.True(t, errors.Is(err, ErrPaymentFailed))

	assert.NoError(t, w.Close())
}

func TestExpandPath(t *testing.T) {
	assert.Equal(t, "/tmp/tls.cert", expandPath("/tmp//tls.cert"))
	assert.NotContains(t, expandPath("~/.lnd/tls.cert"), "~")
}

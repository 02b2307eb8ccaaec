package funding

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"sync"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/lib/bolt11"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	fakeInvoiceExpiry = time.Hour
	fakeCltvExpiry    = 18
)

// FakeWallet is a local node that signs real BOLT11 invoices but never
// routes. Its invoices settle only through the ledger's internal payments
// or an explicit Settle call.
type FakeWallet struct {
	key *btcec.PrivateKey
	net *chaincfg.Params

	mu      sync.Mutex
	settled map[string]bool
}

// NewFakeWallet derives the node key from secret, so invoices keep the same
// payee across restarts.
func NewFakeWallet(secret string, net *chaincfg.Params) (*FakeWallet, error) {
	if secret == "" {
		return nil, errors.New("fake wallet secret is empty")
	}

	kdf := hkdf.New(sha256.New, []byte(secret), []byte("ln-settlement-bridge"), []byte("fake node key"))
	seed := make([]byte, 32)
	if _, err := io.ReadFull(kdf, seed); err != nil {
		return nil, errors.Wrap(err, "could not derive node key")
	}
	key, _ := btcec.PrivKeyFromBytes(seed)

	return &FakeWallet{
		key:     key,
		net:     net,
		settled: make(map[string]bool),
	}, nil
}

// NodePubKey is the payee of every invoice the wallet signs.
func (f *FakeWallet) NodePubKey() *btcec.PublicKey {
	return f.key.PubKey()
}

func (f *FakeWallet) CreateInvoice(_ context.Context, amountSat int64, memo string) (*InvoiceResponse, error) {
	var preimage lntypes.Preimage
	if _, err := rand.Read(preimage[:]); err != nil {
		return nil, errors.Wrap(err, "could not generate preimage")
	}
	var addr [32]byte
	if _, err := rand.Read(addr[:]); err != nil {
		return nil, errors.Wrap(err, "could not generate payment address")
	}

	hash := preimage.Hash()
	pr, err := bolt11.Encode(bolt11.EncodeParams{
		Net:         f.net,
		PaymentHash: hash,
		PaymentAddr: addr,
		AmountMsat:  amountSat * 1000,
		Memo:        memo,
		Expiry:      fakeInvoiceExpiry,
		CltvExpiry:  fakeCltvExpiry,
	}, f.key)
	if err != nil {
		return nil, err
	}

	return &InvoiceResponse{PaymentHash: hash.String(), PaymentRequest: pr}, nil
}

func (f *FakeWallet) PayInvoice(_ context.Context, _ string, _ int64) (*PaymentResponse, error) {
	return nil, errors.Wrap(ErrPaymentFailed, "fake wallet cannot route external payments")
}

func (f *FakeWallet) InvoiceStatus(_ context.Context, paymentHash string) (InvoiceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return InvoiceStatus{Paid: f.settled[paymentHash]}, nil
}

// Settle marks an invoice as paid by an outside payer.
func (f *FakeWallet) Settle(paymentHash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled[paymentHash] = true
}

func (f *FakeWallet) Close() error {
	return nil
}

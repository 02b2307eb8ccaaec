package bolt11

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/lightningnetwork/lnd/zpay32"
	"github.com/pkg/errors"
)

var ErrInvalidInvoice = errors.New("invalid bolt11 invoice")

// Invoice is the decoded, flattened view of a BOLT11 payment request.
type Invoice struct {
	PaymentHash        string
	AmountMsat         int64
	Description        string
	DescriptionHash    string
	Payee              string
	Date               int64
	Expiry             int64
	MinFinalCltvExpiry int64
	Network            string
}

// Ordered so that longer human readable parts win over their prefixes.
var prefixes = []struct {
	hrp    string
	params *chaincfg.Params
}{
	{"lnbcrt", &chaincfg.RegressionNetParams},
	{"lnbc", &chaincfg.MainNetParams},
	{"lntbs", &chaincfg.SigNetParams},
	{"lntb", &chaincfg.TestNet3Params},
	{"lnsb", &chaincfg.SimNetParams},
}

// NetworkParams maps a config network name to its chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "mainnet", "bitcoin", "":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	default:
		return nil, errors.Errorf("unknown network %q", name)
	}
}

// Normalize trims whitespace and a "lightning:" URI prefix and lowercases
// the invoice.
func Normalize(invoice string) string {
	invoice = strings.ToLower(strings.TrimSpace(invoice))
	return strings.TrimPrefix(invoice, "lightning:")
}

// Decode parses and verifies a BOLT11 string. It never returns a partially
// filled invoice: on error the invoice is nil.
func Decode(invoice string) (*Invoice, error) {
	invoice = Normalize(invoice)

	var params *chaincfg.Params
	for _, p := range prefixes {
		if strings.HasPrefix(invoice, p.hrp) {
			params = p.params
			break
		}
	}
	if params == nil {
		return nil, errors.Wrap(ErrInvalidInvoice, "unknown network prefix")
	}

	inv, err := zpay32.Decode(invoice, params)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInvoice, err.Error())
	}
	if inv.PaymentHash == nil {
		return nil, errors.Wrap(ErrInvalidInvoice, "missing payment hash")
	}

	decoded := &Invoice{
		PaymentHash:        hex.EncodeToString(inv.PaymentHash[:]),
		Date:               inv.Timestamp.Unix(),
		Expiry:             int64(inv.Expiry() / time.Second),
		MinFinalCltvExpiry: int64(inv.MinFinalCLTVExpiry()),
		Network:            params.Name,
	}
	if inv.MilliSat != nil {
		decoded.AmountMsat = int64(*inv.MilliSat)
	}
	if inv.Description != nil {
		decoded.Description = *inv.Description
	}
	if inv.DescriptionHash != nil {
		decoded.DescriptionHash = hex.EncodeToString(inv.DescriptionHash[:])
	}
	if inv.Destination != nil {
		decoded.Payee = hex.EncodeToString(inv.Destination.SerializeCompressed())
	}

	return decoded, nil
}

// EncodeParams describes an invoice to be signed by a local node key.
type EncodeParams struct {
	Net         *chaincfg.Params
	PaymentHash [32]byte
	PaymentAddr [32]byte
	AmountMsat  int64
	Memo        string
	Expiry      time.Duration
	CltvExpiry  uint64
	Timestamp   time.Time
}

// Encode builds and signs a BOLT11 invoice with key.
func Encode(p EncodeParams, key *btcec.PrivateKey) (string, error) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	opts := []func(*zpay32.Invoice){
		zpay32.Description(p.Memo),
		zpay32.PaymentAddr(p.PaymentAddr),
		zpay32.Features(lnwire.NewFeatureVector(
			lnwire.NewRawFeatureVector(lnwire.TLVOnionPayloadRequired, lnwire.PaymentAddrRequired),
			lnwire.Features,
		)),
	}
	if p.AmountMsat > 0 {
		opts = append(opts, zpay32.Amount(lnwire.MilliSatoshi(p.AmountMsat)))
	}
	if p.Expiry > 0 {
		opts = append(opts, zpay32.Expiry(p.Expiry))
	}
	if p.CltvExpiry > 0 {
		opts = append(opts, zpay32.CLTVExpiry(p.CltvExpiry))
	}

	inv, err := zpay32.NewInvoice(p.Net, p.PaymentHash, p.Timestamp, opts...)
	if err != nil {
		return "", errors.Wrap(err, "could not build invoice")
	}

	signer := zpay32.MessageSigner{
		SignCompact: func(msg []byte) ([]byte, error) {
			return ecdsa.SignCompact(key, chainhash.HashB(msg), true), nil
		},
	}

	encoded, err := inv.Encode(signer)
	if err != nil {
		return "", errors.Wrap(err, "could not sign invoice")
	}
	return encoded, nil
}

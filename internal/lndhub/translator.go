package lndhub

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/internal/bridgeerr"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/ledger"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/Maphikza/ln-settlement-bridge/lib/bolt11"
	"github.com/shopspring/decimal"
)

const (
	addIndex        = "500"
	inTransitMemo   = "Payment in transition"
	invoiceExpiry   = 1800 * time.Second
	typePaidInvoice = "paid_invoice"
	typeUserInvoice = "user_invoice"
)

var zeroHash = strings.Repeat("0", 64)

type Ledger interface {
	CreateInvoice(ctx context.Context, walletID string, amountSat int64, memo string) (*ledger.Invoice, error)
	PayInvoice(ctx context.Context, walletID, bolt11 string) (*bridgedb.Payment, error)
	BalanceMsat(walletID string) (int64, error)
	Payments(walletID string, filter bridgedb.PaymentFilter) ([]bridgedb.Payment, error)
}

// Translator reshapes ledger operations into the LndHub API. It keeps no
// state; the wallet is an argument of every call.
type Translator struct {
	ledger Ledger
	now    func() time.Time
}

func NewTranslator(l Ledger) *Translator {
	return &Translator{ledger: l, now: time.Now}
}

// Buffer is how LndHub renders raw bytes: a serialized node.js Buffer.
type Buffer struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

func toBuffer(hexHash string) Buffer {
	raw, _ := hex.DecodeString(hexHash)
	data := make([]int, len(raw))
	for i, b := range raw {
		data[i] = int(b)
	}
	return Buffer{Type: "Buffer", Data: data}
}

// sats renders msat as a possibly fractional satoshi amount.
func sats(msat int64) json.Number {
	return json.Number(decimal.New(msat, -3).String())
}

// wholeSats truncates msat towards zero.
func wholeSats(msat int64) int64 {
	return decimal.New(msat, -3).IntPart()
}

type AuthRequest struct {
	Login        *string `json:"login"`
	Password     *string `json:"password"`
	RefreshToken *string `json:"refresh_token"`
}

type AuthResponse struct {
	RefreshToken string `json:"refresh_token"`
	AccessToken  string `json:"access_token"`
}

type AddInvoiceRequest struct {
	Amt      decimal.Decimal `json:"amt"`
	Memo     string          `json:"memo"`
	Preimage string          `json:"preimage,omitempty"`
}

type AddInvoiceResponse struct {
	PayReq         string `json:"pay_req"`
	PaymentRequest string `json:"payment_request"`
	AddIndex       string `json:"add_index"`
	RHash          Buffer `json:"r_hash"`
	Hash           string `json:"hash"`
}

type DecodedInvoice struct {
	Destination  string      `json:"destination"`
	PaymentHash  string      `json:"payment_hash"`
	NumSatoshis  json.Number `json:"num_satoshis"`
	Timestamp    int64       `json:"timestamp"`
	Expiry       int64       `json:"expiry"`
	Description  string      `json:"description"`
	FallbackAddr string      `json:"fallback_addr"`
	CltvExpiry   int64       `json:"cltv_expiry"`
	RouteHints   string      `json:"route_hints"`
}

type PayInvoiceResponse struct {
	PaymentError    string         `json:"payment_error"`
	PaymentPreimage string         `json:"payment_preimage"`
	Route           struct{}       `json:"route"`
	PaymentHash     string         `json:"payment_hash"`
	Decoded         DecodedInvoice `json:"decoded"`
	FeeMsat         int64          `json:"fee_msat"`
	Type            string         `json:"type"`
	Fee             int64          `json:"fee"`
	Value           json.Number    `json:"value"`
	Timestamp       int64          `json:"timestamp"`
	Memo            string         `json:"memo"`
}

type BalanceResponse struct {
	BTC struct {
		AvailableBalance int64 `json:"AvailableBalance"`
	} `json:"BTC"`
}

type Transaction struct {
	PaymentPreimage string `json:"payment_preimage"`
	PaymentHash     string `json:"payment_hash"`
	FeeMsat         int64  `json:"fee_msat"`
	Type            string `json:"type"`
	Fee             int64  `json:"fee"`
	Value           int64  `json:"value"`
	Timestamp       int64  `json:"timestamp"`
	Memo            string `json:"memo"`
}

type UserInvoice struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
	AddIndex       string `json:"add_index"`
	Description    string `json:"description"`
	PaymentHash    string `json:"payment_hash"`
	IsPaid         bool   `json:"ispaid"`
	Amt            int64  `json:"amt"`
	ExpireTime     int64  `json:"expire_time"`
	Timestamp      int64  `json:"timestamp"`
	Type           string `json:"type"`
}

// GetInfo never succeeds; account discovery is not offered.
func (t *Translator) GetInfo() Result {
	return Fail(CodeBadAuth, "bad auth")
}

// Auth issues a token for login/password or echoes a refresh token. The
// same permanent token serves as access and refresh token.
func (t *Translator) Auth(req AuthRequest) Result {
	hasCreds := req.Login != nil || req.Password != nil
	hasRefresh := req.RefreshToken != nil

	var token string
	switch {
	case hasCreds && hasRefresh:
		return Fail(CodeBadArguments, "login/password and refresh_token are mutually exclusive")
	case hasRefresh:
		token = *req.RefreshToken
	case req.Login != nil && req.Password != nil:
		token = base64.URLEncoding.EncodeToString([]byte(*req.Login + ":" + *req.Password))
	default:
		return Fail(CodeBadArguments, "login and password or refresh_token required")
	}

	return Ok(AuthResponse{RefreshToken: token, AccessToken: token})
}

func (t *Translator) AddInvoice(ctx context.Context, walletID string, req AddInvoiceRequest) Result {
	if !req.Amt.IsInteger() || req.Amt.IsNegative() {
		return Fail(CodeBadArguments, "amt must be a whole number of satoshis")
	}

	inv, err := t.ledger.CreateInvoice(ctx, walletID, req.Amt.IntPart(), req.Memo)
	if err != nil {
		logger.Warn("LndHub addinvoice failed", "wallet", walletID, "error", err)
		return Fail(CodeInvoiceFailed, "Failed to create invoice: "+err.Error())
	}

	return Ok(AddInvoiceResponse{
		PayReq:         inv.PaymentRequest,
		PaymentRequest: inv.PaymentRequest,
		AddIndex:       addIndex,
		RHash:          toBuffer(inv.PaymentHash),
		Hash:           inv.PaymentHash,
	})
}

// PayInvoice pays through the ledger. The preimage is always reported as
// zeros.
func (t *Translator) PayInvoice(ctx context.Context, walletID, invoice string) Result {
	decoded, err := bolt11.Decode(invoice)
	if err != nil {
		return Fail(CodePaymentFailed, "Payment failed: "+err.Error())
	}

	if _, err := t.ledger.PayInvoice(ctx, walletID, invoice); err != nil {
		logger.Warn("LndHub payinvoice failed", "wallet", walletID, "hash", decoded.PaymentHash, "error", err)
		return Fail(CodePaymentFailed, "Payment failed: "+bridgeerr.Message(err))
	}

	return Ok(PayInvoiceResponse{
		PaymentPreimage: zeroHash,
		PaymentHash:     decoded.PaymentHash,
		Decoded:         decodedAsLndHub(decoded),
		Type:            typePaidInvoice,
		Value:           sats(decoded.AmountMsat),
		Timestamp:       t.now().Unix(),
		Memo:            decoded.Description,
	})
}

func (t *Translator) Balance(walletID string) Result {
	msat, err := t.ledger.BalanceMsat(walletID)
	if err != nil {
		return Fail(CodeServerError, err.Error())
	}
	var res BalanceResponse
	res.BTC.AvailableBalance = wholeSats(msat)
	return Ok(res)
}

// GetTxs lists outgoing payments. Pending ones carry a placeholder memo.
func (t *Translator) GetTxs(walletID string) Result {
	payments, err := t.ledger.Payments(walletID, bridgedb.PaymentFilter{
		Pending: true, Complete: true, Outgoing: true,
	})
	if err != nil {
		return Fail(CodeServerError, err.Error())
	}

	txs := make([]Transaction, 0, len(payments))
	for _, p := range payments {
		memo := p.Memo
		if p.Pending {
			memo = inTransitMemo
		}
		txs = append(txs, Transaction{
			PaymentPreimage: zeroHash,
			PaymentHash:     zeroHash,
			FeeMsat:         p.FeeMsat,
			Type:            typePaidInvoice,
			Fee:             wholeSats(p.FeeMsat),
			Value:           wholeSats(p.AmountMsat),
			Timestamp:       p.CreatedAt.Unix(),
			Memo:            memo,
		})
	}
	return Ok(txs)
}

// GetUserInvoices lists incoming invoices with zeroed hashes.
func (t *Translator) GetUserInvoices(walletID string) Result {
	payments, err := t.ledger.Payments(walletID, bridgedb.PaymentFilter{
		Pending: true, Complete: true, Incoming: true,
	})
	if err != nil {
		return Fail(CodeServerError, err.Error())
	}

	expires := t.now().Add(invoiceExpiry).Unix()
	invoices := make([]UserInvoice, 0, len(payments))
	for _, p := range payments {
		invoices = append(invoices, UserInvoice{
			RHash:          zeroHash,
			PaymentRequest: p.Bolt11,
			AddIndex:       addIndex,
			Description:    p.Memo,
			PaymentHash:    zeroHash,
			IsPaid:         !p.Pending,
			Amt:            wholeSats(p.AmountMsat),
			ExpireTime:     expires,
			Timestamp:      p.CreatedAt.Unix(),
			Type:           typeUserInvoice,
		})
	}
	return Ok(invoices)
}

// GetBtc and GetPending stand in for on-chain features, which are not
// offered.
func (t *Translator) GetBtc() Result {
	return Ok([]interface{}{})
}

func (t *Translator) GetPending() Result {
	return Ok([]interface{}{})
}

// DecodeInvoice never returns a partially filled invoice.
func (t *Translator) DecodeInvoice(invoice string) (*DecodedInvoice, error) {
	decoded, err := bolt11.Decode(invoice)
	if err != nil {
		return nil, bridgeerr.Validation("Invalid bolt11 invoice.")
	}
	d := decodedAsLndHub(decoded)
	return &d, nil
}

func decodedAsLndHub(inv *bolt11.Invoice) DecodedInvoice {
	return DecodedInvoice{
		Destination:  inv.Payee,
		PaymentHash:  inv.PaymentHash,
		NumSatoshis:  sats(inv.AmountMsat),
		Timestamp:    inv.Date,
		Expiry:       inv.Expiry,
		Description:  inv.Description,
		FallbackAddr: "",
		CltvExpiry:   inv.MinFinalCltvExpiry,
		RouteHints:   "",
	}
}

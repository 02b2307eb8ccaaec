package funding

import (
	"context"
	"encoding/hex"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"gopkg.in/macaroon.v2"
)

type LndConfig struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
}

// LndWallet funds the ledger from an lnd node over gRPC.
type LndWallet struct {
	client lnrpc.LightningClient
	conn   *grpc.ClientConn
}

func NewLndWallet(cfg LndConfig) (*LndWallet, error) {
	creds, err := credentials.NewClientTLSFromFile(expandPath(cfg.TLSCertPath), "")
	if err != nil {
		return nil, errors.Wrap(err, "failed to load TLS cert")
	}

	macBytes, err := os.ReadFile(expandPath(cfg.MacaroonPath))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read macaroon")
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal macaroon")
	}

	macCreds, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create macaroon credential")
	}

	conn, err := grpc.Dial(cfg.Host,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCreds),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial lnd")
	}

	return newLndWallet(lnrpc.NewLightningClient(conn), conn), nil
}

func newLndWallet(client lnrpc.LightningClient, conn *grpc.ClientConn) *LndWallet {
	return &LndWallet{client: client, conn: conn}
}

func (l *LndWallet) CreateInvoice(ctx context.Context, amountSat int64, memo string) (*InvoiceResponse, error) {
	resp, err := l.client.AddInvoice(ctx, &lnrpc.Invoice{
		Memo:  memo,
		Value: amountSat,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to add invoice")
	}

	return &InvoiceResponse{
		PaymentHash:    hex.EncodeToString(resp.RHash),
		PaymentRequest: resp.PaymentRequest,
	}, nil
}

func (l *LndWallet) PayInvoice(ctx context.Context, bolt11 string, feeLimitMsat int64) (*PaymentResponse, error) {
	resp, err := l.client.SendPaymentSync(ctx, &lnrpc.SendRequest{
		PaymentRequest: bolt11,
		FeeLimit: &lnrpc.FeeLimit{
			Limit: &lnrpc.FeeLimit_FixedMsat{FixedMsat: feeLimitMsat},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to send payment")
	}
	if resp.PaymentError != "" {
		return nil, errors.Wrap(ErrPaymentFailed, resp.PaymentError)
	}

	var fee int64
	if resp.PaymentRoute != nil {
		fee = resp.PaymentRoute.TotalFeesMsat
	}
	return &PaymentResponse{
		FeeMsat:  fee,
		Preimage: hex.EncodeToString(resp.PaymentPreimage),
	}, nil
}

func (l *LndWallet) InvoiceStatus(ctx context.Context, paymentHash string) (InvoiceStatus, error) {
	inv, err := l.client.LookupInvoice(ctx, &lnrpc.PaymentHash{RHashStr: paymentHash})
	if err != nil {
		return InvoiceStatus{}, errors.Wrap(err, "failed to look up invoice")
	}
	return InvoiceStatus{Paid: inv.State == lnrpc.Invoice_SETTLED}, nil
}

func (l *LndWallet) Close() error {
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// expandPath resolves a leading "~" the way lncli does for cert and
// macaroon paths.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return filepath.Clean(path)
	}

	var home string
	if u, err := user.Current(); err == nil {
		home = u.HomeDir
	} else {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, path[1:])
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Maphikza/ln-settlement-bridge/internal/config"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/ledger"
	"github.com/Maphikza/ln-settlement-bridge/internal/lndhub"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type walletInfo struct {
	*bridgedb.Wallet
	LndHubAdmin   string `json:"lndhub_admin"`
	LndHubInvoice string `json:"lndhub_invoice"`
	AdminToken    string `json:"admin_token"`
	InvoiceToken  string `json:"invoice_token"`
}

type balanceInfo struct {
	WalletID    string `json:"wallet_id"`
	BalanceMsat int64  `json:"balance_msat"`
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage bridge wallets",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Keep stdout clean for the JSON results.
		logger.SetOutput(os.Stderr)
	},
}

var createWalletCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a wallet and print its keys",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := "default"
		if len(args) == 1 {
			name = args[0]
		}
		userID, _ := cmd.Flags().GetString("user")
		baseURL, _ := cmd.Flags().GetString("url")
		copyKey, _ := cmd.Flags().GetBool("copy")

		settings := mustSettings()
		store := openStore(settings)
		defer store.Close()

		wallet, err := store.CreateWallet(userID, name)
		if err != nil {
			exitWithError(err)
		}
		logger.Info("Wallet created", "wallet", wallet.ID, "user", wallet.User)

		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost:%d", settings.APIPort)
		}
		printJSON(describeWallet(wallet, baseURL))

		if copyKey {
			if err := clipboard.WriteAll(wallet.AdminKey); err != nil {
				fmt.Fprintf(os.Stderr, "Could not copy admin key: %v\n", err)
				return
			}
			fmt.Fprintln(os.Stderr, "Admin key copied to clipboard")
		}
	},
}

var walletBalanceCmd = &cobra.Command{
	Use:   "balance <wallet-id>",
	Short: "Print the settled balance of a wallet",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l, closeFn := openLedger(mustSettings())
		defer closeFn()

		balance, err := l.BalanceMsat(args[0])
		if err != nil {
			exitWithError(err)
		}
		printJSON(balanceInfo{WalletID: args[0], BalanceMsat: balance})
	},
}

var walletTopUpCmd = &cobra.Command{
	Use:   "topup <wallet-id> <sat>",
	Short: "Credit a wallet without a lightning payment",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			exitWithError(errors.Wrapf(err, "invalid amount %q", args[1]))
		}

		l, closeFn := openLedger(mustSettings())
		defer closeFn()

		if err := l.TopUp(args[0], amount); err != nil {
			exitWithError(err)
		}
		balance, err := l.BalanceMsat(args[0])
		if err != nil {
			exitWithError(err)
		}
		printJSON(balanceInfo{WalletID: args[0], BalanceMsat: balance})
	},
}

var walletSettleCmd = &cobra.Command{
	Use:   "settle <wallet-id> <payment-hash>",
	Short: "Mark an invoice of the fake node as paid",
	Long: `The fake funding source cannot receive payments from outside the bridge.
settle records one as received so withdraw redemptions and paywall checks see it paid.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		settings := mustSettings()
		if err := settleFake(settings, args[0], args[1]); err != nil {
			exitWithError(err)
		}
	},
}

func init() {
	createWalletCmd.Flags().String("user", "", "Existing user id to attach the wallet to")
	createWalletCmd.Flags().String("url", "", "Public base URL used in the LndHub connection strings")
	createWalletCmd.Flags().Bool("copy", false, "Copy the admin key to the clipboard")

	walletCmd.AddCommand(createWalletCmd)
	walletCmd.AddCommand(walletBalanceCmd)
	walletCmd.AddCommand(walletTopUpCmd)
	walletCmd.AddCommand(walletSettleCmd)
}

type settleInfo struct {
	WalletID    string `json:"wallet_id"`
	PaymentHash string `json:"payment_hash"`
	Settled     bool   `json:"settled"`
}

func settleFake(settings config.Settings, walletID, paymentHash string) error {
	if settings.FundingSource != "" && settings.FundingSource != "fake" {
		return errors.Errorf("settle only applies to the fake funding source, not %q", settings.FundingSource)
	}

	l, closeFn := openLedger(settings)
	defer closeFn()

	p, err := l.Payment(walletID, paymentHash)
	if err != nil {
		return err
	}
	if p == nil || !p.IsIn() {
		return errors.Errorf("wallet %s has no invoice %s", walletID, paymentHash)
	}
	changed, err := l.MarkSettled(walletID, paymentHash)
	if err != nil {
		return err
	}
	printJSON(settleInfo{WalletID: walletID, PaymentHash: paymentHash, Settled: changed})
	return nil
}

func openLedger(settings config.Settings) (*ledger.Ledger, func()) {
	store := openStore(settings)
	source, err := newFundingSource(settings)
	if err != nil {
		store.Close()
		exitWithError(err)
	}
	return ledger.New(store, source), func() {
		source.Close()
		store.Close()
	}
}

// describeWallet adds the LndHub connection strings wallets like BlueWallet
// import: lndhub://<login>:<password>@<url>/lndhub/ext/.
func describeWallet(w *bridgedb.Wallet, baseURL string) walletInfo {
	hub := strings.TrimRight(baseURL, "/") + "/lndhub/ext/"
	return walletInfo{
		Wallet:        w,
		LndHubAdmin:   fmt.Sprintf("lndhub://admin:%s@%s", w.AdminKey, hub),
		LndHubInvoice: fmt.Sprintf("lndhub://invoice:%s@%s", w.InvoiceKey, hub),
		AdminToken:    lndhub.Token(bridgedb.KeyTypeAdmin, w.AdminKey),
		InvoiceToken:  lndhub.Token(bridgedb.KeyTypeInvoice, w.InvoiceKey),
	}
}

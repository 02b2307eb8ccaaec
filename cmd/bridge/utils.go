package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/internal/amilk"
	"github.com/Maphikza/ln-settlement-bridge/internal/config"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/Maphikza/ln-settlement-bridge/lib/bolt11"
	"github.com/Maphikza/ln-settlement-bridge/lib/funding"
	"github.com/pkg/errors"
)

// Slack for invoice creation, JSON encoding and the client on top of a
// redemption's confirmation waits.
const redemptionMargin = 15 * time.Second

func mustSettings() config.Settings {
	settings, err := config.Current()
	if err != nil {
		exitWithError(err)
	}
	return settings
}

func openStore(settings config.Settings) *bridgedb.Store {
	store, err := bridgedb.InitSQLiteDB(settings.DBPath)
	if err != nil {
		exitWithError(err)
	}
	return store
}

// newFundingSource picks the lightning backend named by funding_source.
func newFundingSource(settings config.Settings) (funding.Source, error) {
	switch settings.FundingSource {
	case "", "fake":
		net, err := bolt11.NetworkParams(settings.Network)
		if err != nil {
			return nil, err
		}
		wallet, err := funding.NewFakeWallet(settings.FakeWalletSecret, net)
		if err != nil {
			return nil, err
		}
		logger.Info("Using fake funding source", "network", net.Name)
		return wallet, nil
	case "lnd":
		wallet, err := funding.NewLndWallet(funding.LndConfig{
			Host:         settings.LndRPCServer,
			TLSCertPath:  settings.LndTLSCertPath,
			MacaroonPath: settings.LndMacaroonPath,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using LND funding source", "host", settings.LndRPCServer)
		return wallet, nil
	default:
		return nil, errors.Errorf("unknown funding source %q", settings.FundingSource)
	}
}

// writeTimeout bounds a response by the longest redemption: two LNURL
// round trips plus every confirmation wait of the linear backoff.
func writeTimeout(settings config.Settings) time.Duration {
	attempts := int64(settings.AmilkConfirmAttempts)
	if attempts <= 0 {
		attempts = amilk.DefaultConfirmAttempts
	}
	unit := settings.AmilkBackoffUnit
	if unit <= 0 {
		unit = amilk.DefaultBackoffUnit
	}
	waits := time.Duration(attempts*(attempts-1)/2) * unit
	return 2*settings.LnurlTimeout + waits + redemptionMargin
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Maphikza/ln-settlement-bridge/internal/amilk"
	"github.com/Maphikza/ln-settlement-bridge/internal/api"
	"github.com/Maphikza/ln-settlement-bridge/internal/ledger"
	"github.com/Maphikza/ln-settlement-bridge/internal/lndhub"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/Maphikza/ln-settlement-bridge/internal/paywall"
	"github.com/Maphikza/ln-settlement-bridge/internal/settlement"
	"github.com/Maphikza/ln-settlement-bridge/lib/lnurl"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Run: func(cmd *cobra.Command, args []string) {
		settings := mustSettings()

		store := openStore(settings)
		defer store.Close()

		source, err := newFundingSource(settings)
		if err != nil {
			exitWithError(err)
		}
		defer source.Close()

		l := ledger.New(store, source)
		engine := settlement.NewEngine(l)

		amilkSvc := amilk.NewService(store, l, engine, lnurl.NewClient(settings.LnurlTimeout, settings.LnurlAllowInsecure), amilk.Config{
			ConfirmAttempts: settings.AmilkConfirmAttempts,
			BackoffUnit:     settings.AmilkBackoffUnit,
		})
		paywallSvc := paywall.NewService(store, l)
		translator := lndhub.NewTranslator(l)

		proxies, err := api.ParseTrustedProxies(settings.TrustedProxies)
		if err != nil {
			exitWithError(err)
		}
		server := api.NewAPI(store, amilkSvc, paywallSvc, translator, api.Options{
			AllowedOrigin:  settings.AllowedOrigin,
			PaywallRate:    settings.PaywallCheckRate,
			PaywallBurst:   settings.PaywallCheckBurst,
			TrustedProxies: proxies,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		timeout := writeTimeout(settings)
		logger.Info("Bridge starting", "env", settings.Env, "funding", settings.FundingSource, "write_timeout", timeout.String())
		if err := server.Start(ctx, settings.APIPort, timeout); err != nil {
			logger.Error("HTTP server stopped", "error", err)
			exitWithError(err)
		}
		logger.Info("Bridge stopped")
	},
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Maphikza/ln-settlement-bridge/internal/amilk"
	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/lndhub"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/Maphikza/ln-settlement-bridge/internal/paywall"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const limiterIdleTimeout = 10 * time.Minute

// API serves the amilk, paywall and lndhub extensions.
type API struct {
	db            bridgedb.Database
	amilk         *amilk.Service
	paywall       *paywall.Service
	lndhub        *lndhub.Translator
	limiter       *IPRateLimiter
	proxies       TrustedProxies
	allowedOrigin string
}

type Options struct {
	AllowedOrigin string
	// PaywallRate and PaywallBurst bound unauthenticated paywall polling
	// per client IP.
	PaywallRate  float64
	PaywallBurst int
	// TrustedProxies may set forwarding headers for the rate limiter.
	TrustedProxies TrustedProxies
}

func NewAPI(db bridgedb.Database, amilkSvc *amilk.Service, paywallSvc *paywall.Service, translator *lndhub.Translator, opts Options) *API {
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.PaywallBurst <= 0 {
		opts.PaywallBurst = 1
	}
	return &API{
		db:            db,
		amilk:         amilkSvc,
		paywall:       paywallSvc,
		lndhub:        translator,
		limiter:       NewIPRateLimiter(rate.Limit(opts.PaywallRate), opts.PaywallBurst),
		proxies:       opts.TrustedProxies,
		allowedOrigin: opts.AllowedOrigin,
	}
}

func (a *API) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc, middleware ...Middleware) {
	h = ApplyMiddleware(h, middleware...)
	mux.HandleFunc(pattern, ApplyMiddleware(h, MetricsMiddleware(pattern)))
}

// Routes builds the full handler tree.
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	invoiceKey := a.APIKeyMiddleware(bridgedb.KeyTypeInvoice)

	a.handle(mux, "GET /amilk/api/v1/amilk", a.handleListAmilks, invoiceKey)
	a.handle(mux, "POST /amilk/api/v1/amilk", a.handleCreateAmilk, invoiceKey, JSONContentTypeMiddleware)
	a.handle(mux, "DELETE /amilk/api/v1/amilk/{id}", a.handleDeleteAmilk, invoiceKey)
	a.handle(mux, "GET /amilk/api/v1/amilk/milk/{id}", a.handleRedeemAmilk)

	a.handle(mux, "GET /paywall/api/v1/paywalls", a.handleListPaywalls, invoiceKey)
	a.handle(mux, "POST /paywall/api/v1/paywalls", a.handleCreatePaywall, invoiceKey, JSONContentTypeMiddleware)
	a.handle(mux, "DELETE /paywall/api/v1/paywalls/{id}", a.handleDeletePaywall, invoiceKey)
	a.handle(mux, "POST /paywall/api/v1/paywalls/{id}/invoice", a.handlePaywallInvoice,
		JSONContentTypeMiddleware, a.RateLimitMiddleware("paywall_invoice"))
	a.handle(mux, "POST /paywall/api/v1/paywalls/{id}/check_invoice", a.handlePaywallCheck,
		JSONContentTypeMiddleware, a.RateLimitMiddleware("paywall_check"))

	hubWallet := a.LndHubAuthMiddleware(false)
	hubAdmin := a.LndHubAuthMiddleware(true)

	a.handle(mux, "GET /lndhub/ext/getinfo", a.handleHubGetInfo)
	a.handle(mux, "POST /lndhub/ext/auth", a.handleHubAuth)
	a.handle(mux, "POST /lndhub/ext/addinvoice", a.handleHubAddInvoice, hubWallet)
	a.handle(mux, "POST /lndhub/ext/payinvoice", a.handleHubPayInvoice, hubAdmin)
	a.handle(mux, "GET /lndhub/ext/balance", a.handleHubBalance, hubWallet)
	a.handle(mux, "GET /lndhub/ext/gettxs", a.handleHubGetTxs, hubWallet)
	a.handle(mux, "GET /lndhub/ext/getuserinvoices", a.handleHubGetUserInvoices, hubWallet)
	a.handle(mux, "GET /lndhub/ext/getbtc", a.handleHubGetBtc, hubWallet)
	a.handle(mux, "GET /lndhub/ext/getpending", a.handleHubGetPending, hubWallet)
	a.handle(mux, "GET /lndhub/ext/decodeinvoice", a.handleHubDecodeInvoice)
	a.handle(mux, "GET /lndhub/ext/checkrouteinvoice", a.handleHubCheckRouteInvoice)

	mux.Handle("GET /metrics", promhttp.Handler())

	return ApplyMiddleware(mux.ServeHTTP,
		ErrorMiddleware,
		LoggingMiddleware,
		a.CORSMiddleware,
		RequestIDMiddleware,
	)
}

// Start serves on port until ctx is done, then drains open requests.
// writeTimeout must cover the longest withdraw redemption.
func (a *API) Start(ctx context.Context, port int, writeTimeout time.Duration) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      a.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go a.pruneLimiters(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "addr", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (a *API) pruneLimiters(ctx context.Context) {
	ticker := time.NewTicker(limiterIdleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Cleanup(limiterIdleTimeout); n > 0 {
				logger.Debug("Pruned idle rate limiters", "count", n)
			}
		}
	}
}

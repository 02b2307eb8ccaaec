package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	bridgedb "github.com/Maphikza/ln-settlement-bridge/internal/database"
	"github.com/Maphikza/ln-settlement-bridge/internal/lndhub"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
	"github.com/google/uuid"
)

type Middleware func(http.HandlerFunc) http.HandlerFunc

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func recordStatus(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// LoggingMiddleware logs information about each request
func LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := recordStatus(w)

		next.ServeHTTP(rec, r)

		logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", RequestID(r.Context()),
			"duration", time.Since(start),
		)
	}
}

// MetricsMiddleware counts requests of one route pattern.
func MetricsMiddleware(route string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recordStatus(w)

			next.ServeHTTP(rec, r)

			httpRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	}
}

// JSONContentTypeMiddleware ensures that requests have the correct content type
func JSONContentTypeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Method != http.MethodDelete {
			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				writeJSON(w, http.StatusUnsupportedMediaType, ErrorResponse{Message: "Content-Type must be application/json"})
				return
			}
		}
		next.ServeHTTP(w, r)
	}
}

// ErrorMiddleware wraps the handler and catches any panics, returning them as 500 errors
func ErrorMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				panicsRecovered.Inc()
				logger.Error("Panic occurred", "error", err, "path", r.URL.Path, "request_id", RequestID(r.Context()))
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	}
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (a *API) CORSMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// APIKeyMiddleware resolves the X-Api-Key header to a wallet at the given
// level. Admin keys pass invoice level checks.
func (a *API) APIKeyMiddleware(level bridgedb.KeyType) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Api-Key")
			if key == "" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "`X-Api-Key` header missing."})
				return
			}

			wallet, _, err := a.db.GetWalletForKey(key, level)
			if err != nil {
				logger.Error("Wallet key lookup failed", "error", err)
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
				return
			}
			if wallet == nil {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Message: "Invalid key for wallet."})
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), walletKey, wallet)))
		}
	}
}

// LndHubAuthMiddleware resolves the lndhub bearer token. Failures answer
// in-band with status 200, as lndhub clients expect.
func (a *API) LndHubAuthMiddleware(requiresAdmin bool) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			keyType, key, err := lndhub.ParseToken(r.Header.Get("Authorization"))
			if err != nil {
				writeJSON(w, http.StatusOK, lndhub.Fail(lndhub.CodeBadAuth, "bad auth"))
				return
			}
			if requiresAdmin && keyType != bridgedb.KeyTypeAdmin {
				writeJSON(w, http.StatusOK, lndhub.Fail(lndhub.CodeNoPermission, "insufficient permissions"))
				return
			}

			wallet, _, err := a.db.GetWalletForKey(key, keyType)
			if err != nil {
				logger.Error("Wallet key lookup failed", "error", err)
				writeJSON(w, http.StatusOK, lndhub.Fail(lndhub.CodeServerError, "Internal server error"))
				return
			}
			if wallet == nil {
				writeJSON(w, http.StatusOK, lndhub.Fail(lndhub.CodeNoPermission, "insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), walletKey, wallet)))
		}
	}
}

// RateLimitMiddleware applies the per-IP token bucket of the API.
func (a *API) RateLimitMiddleware(route string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := a.proxies.clientIP(r)
			if !a.limiter.GetLimiter(ip).Allow() {
				rateLimitRejected.WithLabelValues(route).Inc()
				logger.Warn("Per-IP rate limit exceeded", "client_ip", ip, "route", route)
				writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Message: "Too many requests."})
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}

func walletFrom(ctx context.Context) *bridgedb.Wallet {
	w, _ := ctx.Value(walletKey).(*bridgedb.Wallet)
	return w
}

// ApplyMiddleware applies a list of middleware to a handler
func ApplyMiddleware(h http.HandlerFunc, middleware ...Middleware) http.HandlerFunc {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

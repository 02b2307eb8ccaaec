package api

import (
	"net/http"

	"github.com/Maphikza/ln-settlement-bridge/internal/paywall"
)

func (a *API) handleListPaywalls(w http.ResponseWriter, r *http.Request) {
	ids, err := a.walletScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	paywalls, err := a.paywall.List(ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paywalls)
}

func (a *API) handleCreatePaywall(w http.ResponseWriter, r *http.Request) {
	var req paywall.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	p, err := a.paywall.Create(walletFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleDeletePaywall(w http.ResponseWriter, r *http.Request) {
	if err := a.paywall.Delete(walletFrom(r.Context()).ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePaywallInvoice(w http.ResponseWriter, r *http.Request) {
	var req PaywallInvoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var amount int64
	if req.Amount != nil {
		amount = *req.Amount
	}

	inv, err := a.paywall.CreateInvoice(r.Context(), r.PathValue("id"), amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (a *API) handlePaywallCheck(w http.ResponseWriter, r *http.Request) {
	var req PaywallCheckRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := a.paywall.CheckInvoice(r.Context(), r.PathValue("id"), req.PaymentHash)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

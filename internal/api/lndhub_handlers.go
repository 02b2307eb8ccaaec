package api

import (
	"net/http"

	"github.com/Maphikza/ln-settlement-bridge/internal/lndhub"
)

// lndhub answers 200 for success and failure alike.
func writeResult(w http.ResponseWriter, res lndhub.Result) {
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleHubGetInfo(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.lndhub.GetInfo())
}

func (a *API) handleHubAuth(w http.ResponseWriter, r *http.Request) {
	var req lndhub.AuthRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, lndhub.Fail(lndhub.CodeBadArguments, err.Error()))
		return
	}
	writeResult(w, a.lndhub.Auth(req))
}

func (a *API) handleHubAddInvoice(w http.ResponseWriter, r *http.Request) {
	var req lndhub.AddInvoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeResult(w, lndhub.Fail(lndhub.CodeBadArguments, err.Error()))
		return
	}
	writeResult(w, a.lndhub.AddInvoice(r.Context(), walletFrom(r.Context()).ID, req))
}

func (a *API) handleHubPayInvoice(w http.ResponseWriter, r *http.Request) {
	var req PayInvoiceRequest
	if err := decodeBody(r, &req); err != nil || req.Invoice == "" {
		writeResult(w, lndhub.Fail(lndhub.CodeBadArguments, "invoice is required"))
		return
	}
	writeResult(w, a.lndhub.PayInvoice(r.Context(), walletFrom(r.Context()).ID, req.Invoice))
}

func (a *API) handleHubBalance(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.lndhub.Balance(walletFrom(r.Context()).ID))
}

func (a *API) handleHubGetTxs(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.lndhub.GetTxs(walletFrom(r.Context()).ID))
}

func (a *API) handleHubGetUserInvoices(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.lndhub.GetUserInvoices(walletFrom(r.Context()).ID))
}

func (a *API) handleHubGetBtc(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.lndhub.GetBtc())
}

func (a *API) handleHubGetPending(w http.ResponseWriter, r *http.Request) {
	writeResult(w, a.lndhub.GetPending())
}

func (a *API) handleHubDecodeInvoice(w http.ResponseWriter, r *http.Request) {
	decoded, err := a.lndhub.DecodeInvoice(r.URL.Query().Get("invoice"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decoded)
}

// Not implemented by lndhub either.
func (a *API) handleHubCheckRouteInvoice(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

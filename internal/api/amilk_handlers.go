package api

import (
	"context"
	"net/http"

	"github.com/Maphikza/ln-settlement-bridge/internal/amilk"
	"github.com/Maphikza/ln-settlement-bridge/internal/bridgeerr"
)

// walletScope lists the caller's wallet, or every wallet of its user with
// ?all_wallets.
func (a *API) walletScope(r *http.Request) ([]string, error) {
	wallet := walletFrom(r.Context())
	if !r.URL.Query().Has("all_wallets") {
		return []string{wallet.ID}, nil
	}
	ids, err := a.db.WalletIDsForUser(wallet.User)
	if err != nil {
		return nil, bridgeerr.Ledger("could not list wallets", err)
	}
	return ids, nil
}

func (a *API) handleListAmilks(w http.ResponseWriter, r *http.Request) {
	ids, err := a.walletScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	targets, err := a.amilk.List(ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (a *API) handleCreateAmilk(w http.ResponseWriter, r *http.Request) {
	var req amilk.CreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	target, err := a.amilk.Create(walletFrom(r.Context()).ID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, target)
}

func (a *API) handleDeleteAmilk(w http.ResponseWriter, r *http.Request) {
	if err := a.amilk.Delete(walletFrom(r.Context()).ID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRedeemAmilk blocks until the withdrawal is confirmed or times out.
// The redemption keeps running when the client goes away.
func (a *API) handleRedeemAmilk(w http.ResponseWriter, r *http.Request) {
	res, err := a.amilk.Redeem(context.WithoutCancel(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

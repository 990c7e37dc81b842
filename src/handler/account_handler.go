package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"tradeclient/src/connectors"
)

// accountEngine is the balance/session intent surface.
// engine.SettlementEngine satisfies it.
type accountEngine interface {
	RefreshBalance(ctx context.Context) (decimal.Decimal, error)
	Deposit(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	Withdraw(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error)
	Logout(ctx context.Context)
}

type pairState interface {
	Pair() string
	SetPair(pair string)
}

type pairPersister interface {
	Put(ctx context.Context, key, value string) error
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// BalanceHandler returns the authoritative balance, refreshing the cache.
func BalanceHandler(eng accountEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := eng.RefreshBalance(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
	}
}

type amountPayload struct {
	Amount decimal.Decimal `json:"amount"`
}

// DepositHandler credits the account through the reconciler.
func DepositHandler(eng accountEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload amountPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
			return
		}

		balance, err := eng.Deposit(r.Context(), payload.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
	}
}

// WithdrawHandler debits the requested amount plus commission.
func WithdrawHandler(eng accountEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload amountPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
			return
		}

		balance, err := eng.Withdraw(r.Context(), payload.Amount)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, balanceResponse{Balance: balance})
	}
}

type pairPayload struct {
	Pair string `json:"pair"`
}

// SelectPairHandler switches the tracked instrument and persists the choice
// for the next reload.
func SelectPairHandler(state pairState, repo pairPersister, sessionKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload pairPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Pair == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
			return
		}

		state.SetPair(payload.Pair)
		if err := repo.Put(r.Context(), sessionKey, payload.Pair); err != nil {
			// Selection survives in memory; only reload continuity is lost.
			writeJSON(w, http.StatusOK, pairPayload{Pair: payload.Pair})
			return
		}

		writeJSON(w, http.StatusOK, pairPayload{Pair: payload.Pair})
	}
}

// historySource lists realized trades from the remote collaborator.
// connectors.LedgerClient satisfies it.
type historySource interface {
	TradeHistory(ctx context.Context) ([]connectors.HistoryEntry, error)
}

// TradeHistoryHandler proxies the realized-trade history for the history
// screen. A 401 from the collaborator surfaces as forced re-auth.
func TradeHistoryHandler(src historySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := src.TradeHistory(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if entries == nil {
			entries = []connectors.HistoryEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

// LogoutHandler ends the session: cancels pending triggers and discards
// local position state.
func LogoutHandler(eng accountEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng.Logout(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	}
}

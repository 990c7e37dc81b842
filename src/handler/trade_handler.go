package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"tradeclient/src/engine"
	"tradeclient/src/model"
	"tradeclient/src/pnl"
	"tradeclient/src/scheduler"
)

// tradeEngine is the intent surface the trade handlers forward to.
// engine.SettlementEngine satisfies it.
type tradeEngine interface {
	Open(ctx context.Context, req engine.OpenRequest) (*model.SimPosition, error)
	Settle(ctx context.Context, id string, trigger scheduler.Trigger) error
	LivePnL(id string) (pnl.Result, error)
}

type positionLister interface {
	List() []model.SimPosition
}

type openPayload struct {
	Pair            string          `json:"pair"`
	Direction       string          `json:"direction"`
	Amount          decimal.Decimal `json:"amount"`
	Leverage        int             `json:"leverage"`
	DurationSeconds int64           `json:"duration_seconds"`
}

// OpenPositionHandler opens a position from a user intent.
func OpenPositionHandler(eng tradeEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload openPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
			return
		}

		pos, err := eng.Open(r.Context(), engine.OpenRequest{
			Pair:      payload.Pair,
			Direction: model.Direction(payload.Direction),
			Margin:    payload.Amount,
			Leverage:  payload.Leverage,
			Duration:  time.Duration(payload.DurationSeconds) * time.Second,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, pos)
	}
}

type closePayload struct {
	PositionID string `json:"position_id"`
}

// ClosePositionHandler settles a position early on user request.
func ClosePositionHandler(eng tradeEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload closePayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.PositionID == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body."})
			return
		}

		if err := eng.Settle(r.Context(), payload.PositionID, scheduler.TriggerManual); err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
	}
}

type positionView struct {
	model.SimPosition
	Pnl        decimal.Decimal `json:"pnl"`
	PnlPercent decimal.Decimal `json:"pnl_percent"`
	ROI        decimal.Decimal `json:"roi"`
}

// ListPositionsHandler returns open positions with their live indicative
// PnL attached for display.
func ListPositionsHandler(eng tradeEngine, positions positionLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		open := positions.List()
		views := make([]positionView, 0, len(open))

		for _, p := range open {
			view := positionView{SimPosition: p}
			if res, err := eng.LivePnL(p.ID); err == nil {
				view.Pnl = res.Diff
				view.PnlPercent = res.Percentage
				view.ROI = res.ROI
			}
			views = append(views, view)
		}

		writeJSON(w, http.StatusOK, views)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeclient/src/engine"
	"tradeclient/src/model"
	"tradeclient/src/pnl"
	"tradeclient/src/scheduler"
)

type mockTradeEngine struct {
	openReq     engine.OpenRequest
	openPos     *model.SimPosition
	openErr     error
	settleID    string
	settleTrig  scheduler.Trigger
	settleErr   error
	pnlResults  map[string]pnl.Result
	settleCalls int
}

func (m *mockTradeEngine) Open(_ context.Context, req engine.OpenRequest) (*model.SimPosition, error) {
	m.openReq = req
	return m.openPos, m.openErr
}

func (m *mockTradeEngine) Settle(_ context.Context, id string, trigger scheduler.Trigger) error {
	m.settleCalls++
	m.settleID = id
	m.settleTrig = trigger
	return m.settleErr
}

func (m *mockTradeEngine) LivePnL(id string) (pnl.Result, error) {
	res, ok := m.pnlResults[id]
	if !ok {
		return pnl.Result{}, fmt.Errorf("position %s: %w", id, model.ErrInvalidPosition)
	}
	return res, nil
}

type mockLister struct {
	positions []model.SimPosition
}

func (m *mockLister) List() []model.SimPosition { return m.positions }

func TestOpenPositionHandler(t *testing.T) {
	eng := &mockTradeEngine{openPos: &model.SimPosition{ID: "p1", Pair: "BTCUSDT"}}
	h := OpenPositionHandler(eng)

	body := `{"pair":"BTCUSDT","direction":"long","amount":"10000","leverage":10,"duration_seconds":60}`
	req := httptest.NewRequest(http.MethodPost, "/api/trade/open", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rr.Code)
	}
	if eng.openReq.Direction != model.DirectionLong || eng.openReq.Pair != "BTCUSDT" {
		t.Fatalf("request not mapped: %+v", eng.openReq)
	}
	if eng.openReq.Duration != time.Minute {
		t.Fatalf("duration = %s, want 1m", eng.openReq.Duration)
	}
	if !eng.openReq.Margin.Equal(decimal.RequireFromString("10000")) {
		t.Fatalf("margin = %s", eng.openReq.Margin)
	}
}

func TestOpenPositionHandlerBadBody(t *testing.T) {
	h := OpenPositionHandler(&mockTradeEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/trade/open", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestOpenPositionHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"expired session", model.ErrSessionInvalid, http.StatusUnauthorized},
		{"insufficient balance", model.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{"invalid position", fmt.Errorf("%w: margin too small", model.ErrInvalidPosition), http.StatusUnprocessableEntity},
		{"network failure", model.ErrNetworkFailure, http.StatusBadGateway},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := OpenPositionHandler(&mockTradeEngine{openErr: tt.err})

			body := `{"pair":"BTCUSDT","direction":"long","amount":"10000","leverage":10,"duration_seconds":60}`
			req := httptest.NewRequest(http.MethodPost, "/api/trade/open", strings.NewReader(body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestClosePositionHandler(t *testing.T) {
	eng := &mockTradeEngine{}
	h := ClosePositionHandler(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/trade/close", strings.NewReader(`{"position_id":"p1"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if eng.settleID != "p1" || eng.settleTrig != scheduler.TriggerManual {
		t.Fatalf("settle not forwarded: id=%s trigger=%s", eng.settleID, eng.settleTrig)
	}
}

func TestClosePositionHandlerMissingID(t *testing.T) {
	eng := &mockTradeEngine{}
	h := ClosePositionHandler(eng)

	req := httptest.NewRequest(http.MethodPost, "/api/trade/close", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if eng.settleCalls != 0 {
		t.Fatal("settle must not be called without an id")
	}
}

func TestClosePositionHandlerConflict(t *testing.T) {
	h := ClosePositionHandler(&mockTradeEngine{settleErr: model.ErrSettlementConflict})

	req := httptest.NewRequest(http.MethodPost, "/api/trade/close", strings.NewReader(`{"position_id":"p1"}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
}

func TestListPositionsHandler(t *testing.T) {
	positions := &mockLister{positions: []model.SimPosition{
		{ID: "p1", Pair: "BTCUSDT", Direction: model.DirectionLong},
		{ID: "p2", Pair: "ETHUSDT", Direction: model.DirectionShort},
	}}
	eng := &mockTradeEngine{pnlResults: map[string]pnl.Result{
		"p1": {
			Diff:       decimal.RequireFromString("200"),
			Percentage: decimal.RequireFromString("2"),
			ROI:        decimal.RequireFromString("20"),
		},
	}}
	h := ListPositionsHandler(eng, positions)

	req := httptest.NewRequest(http.MethodGet, "/api/trade/positions", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var views []struct {
		ID  string          `json:"id"`
		Pnl decimal.Decimal `json:"pnl"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&views); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(views))
	}
	if !views[0].Pnl.Equal(decimal.RequireFromString("200")) {
		t.Fatalf("pnl = %s, want 200", views[0].Pnl)
	}
	// p2 has no live pnl; the view still renders with zeroes.
	if !views[1].Pnl.IsZero() {
		t.Fatalf("pnl = %s, want 0", views[1].Pnl)
	}
}

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeclient/src/connectors"
	"tradeclient/src/model"
)

func validOpenRequest() OpenRequest {
	return OpenRequest{
		Pair:      "BTCUSDT",
		Direction: model.DirectionLong,
		Margin:    decimal.RequireFromString("10000"),
		Leverage:  10,
		Duration:  time.Minute,
	}
}

func TestOpenValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OpenRequest)
		wantErr error
	}{
		{
			name:    "unknown direction",
			mutate:  func(r *OpenRequest) { r.Direction = "sideways" },
			wantErr: model.ErrInvalidPosition,
		},
		{
			name:    "unsupported pair",
			mutate:  func(r *OpenRequest) { r.Pair = "DOGEUSDT" },
			wantErr: model.ErrInvalidPosition,
		},
		{
			name:    "margin below minimum",
			mutate:  func(r *OpenRequest) { r.Margin = decimal.RequireFromString("9999") },
			wantErr: model.ErrInvalidPosition,
		},
		{
			name:    "zero leverage",
			mutate:  func(r *OpenRequest) { r.Leverage = 0 },
			wantErr: model.ErrInvalidPosition,
		},
		{
			name:    "leverage above maximum",
			mutate:  func(r *OpenRequest) { r.Leverage = 126 },
			wantErr: model.ErrInvalidPosition,
		},
		{
			name:    "duration below minimum",
			mutate:  func(r *OpenRequest) { r.Duration = 29 * time.Second },
			wantErr: model.ErrInvalidPosition,
		},
		{
			name:    "margin exceeds balance",
			mutate:  func(r *OpenRequest) { r.Margin = decimal.RequireFromString("200000") },
			wantErr: model.ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			led := &fakeLedger{}
			h := newHarness(t, led)
			h.state.SetAuthoritativeBalance(decimal.RequireFromString("100000"))
			h.feed.set("BTCUSDT", "50000")

			req := validOpenRequest()
			tt.mutate(&req)

			_, err := h.engine.Open(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}

			led.mu.Lock()
			opens := len(led.openReqs)
			led.mu.Unlock()
			if opens != 0 {
				t.Fatal("validation failure must not reach the ledger")
			}
		})
	}
}

func TestOpenRequiresAuthentication(t *testing.T) {
	led := &fakeLedger{}
	h := newHarness(t, led)
	h.state.Invalidate()

	_, err := h.engine.Open(context.Background(), validOpenRequest())
	if !errors.Is(err, model.ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid, got %v", err)
	}
}

func TestOpenWithoutReferencePrice(t *testing.T) {
	led := &fakeLedger{}
	h := newHarness(t, led)
	h.state.SetAuthoritativeBalance(decimal.RequireFromString("100000"))

	_, err := h.engine.Open(context.Background(), validOpenRequest())
	if !errors.Is(err, model.ErrNetworkFailure) {
		t.Fatalf("expected ErrNetworkFailure without a price, got %v", err)
	}
}

func TestOpenSuccess(t *testing.T) {
	openedAt := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	led := &fakeLedger{openResp: &connectors.OpenPositionResponse{
		PositionID: "srv-1",
		OpenedAt:   openedAt.UnixMilli(),
		ExpiresAt:  openedAt.Add(time.Minute).UnixMilli(),
		NewBalance: decimal.RequireFromString("90000"),
	}}
	h := newHarness(t, led)
	h.state.SetAuthoritativeBalance(decimal.RequireFromString("100000"))
	h.feed.set("BTCUSDT", "50000")

	pos, err := h.engine.Open(context.Background(), validOpenRequest())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	if pos.RemoteID != "srv-1" {
		t.Fatalf("remote id = %s, want srv-1", pos.RemoteID)
	}
	if !pos.EntryPrice.Equal(decimal.RequireFromString("50000")) {
		t.Fatalf("entry price = %s, want the reference price", pos.EntryPrice)
	}
	if !pos.Notional.Equal(decimal.RequireFromString("100000")) {
		t.Fatalf("notional = %s, want margin*leverage", pos.Notional)
	}
	// Server timestamps win over locally computed ones.
	if !pos.OpenedAt.Equal(openedAt) || !pos.ExpiresAt.Equal(openedAt.Add(time.Minute)) {
		t.Fatalf("timestamps not taken from the ledger: %s .. %s", pos.OpenedAt, pos.ExpiresAt)
	}

	if h.store.Len() != 1 {
		t.Fatal("position not admitted to the store")
	}
	if !h.state.Balance().Equal(decimal.RequireFromString("90000")) {
		t.Fatalf("balance = %s, want post-debit 90000", h.state.Balance())
	}

	h.timers.mu.Lock()
	defer h.timers.mu.Unlock()
	if len(h.timers.armed) != 1 || h.timers.armed[0] != pos.ID {
		t.Fatalf("expiry timer not armed: %v", h.timers.armed)
	}
}

func TestOpenRejectedAtConcurrencyLimit(t *testing.T) {
	led := &fakeLedger{}
	h := newHarness(t, led)
	h.state.SetAuthoritativeBalance(decimal.RequireFromString("100000"))
	h.feed.set("BTCUSDT", "50000")
	h.addPosition(t, "existing", model.DirectionLong, "50000", "10000")

	_, err := h.engine.Open(context.Background(), validOpenRequest())
	if !errors.Is(err, model.ErrInvalidPosition) {
		t.Fatalf("expected ErrInvalidPosition at the limit, got %v", err)
	}
}

func TestOpenLedgerFailurePropagates(t *testing.T) {
	led := &fakeLedger{openErr: errors.New("connection refused")}
	h := newHarness(t, led)
	h.state.SetAuthoritativeBalance(decimal.RequireFromString("100000"))
	h.feed.set("BTCUSDT", "50000")

	_, err := h.engine.Open(context.Background(), validOpenRequest())
	if err == nil {
		t.Fatal("expected error from failed remote open")
	}
	if h.store.Len() != 0 {
		t.Fatal("no position may exist after a failed remote open")
	}
}

func TestDepositMinimum(t *testing.T) {
	led := &fakeLedger{balance: decimal.RequireFromString("100000")}
	h := newHarness(t, led)

	if _, err := h.engine.Deposit(context.Background(), decimal.RequireFromString("499999")); !errors.Is(err, model.ErrInvalidPosition) {
		t.Fatalf("expected rejection below minimum, got %v", err)
	}

	newBalance, err := h.engine.Deposit(context.Background(), decimal.RequireFromString("500000"))
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !newBalance.Equal(decimal.RequireFromString("600000")) {
		t.Fatalf("balance = %s, want 600000", newBalance)
	}
}

func TestWithdrawAppliesCommission(t *testing.T) {
	led := &fakeLedger{balance: decimal.RequireFromString("20000000")}
	h := newHarness(t, led)
	h.state.SetAuthoritativeBalance(decimal.RequireFromString("20000000"))

	if _, err := h.engine.Withdraw(context.Background(), decimal.RequireFromString("11999999")); !errors.Is(err, model.ErrInvalidPosition) {
		t.Fatalf("expected rejection below minimum, got %v", err)
	}

	if _, err := h.engine.Withdraw(context.Background(), decimal.RequireFromString("12000000")); err != nil {
		t.Fatalf("withdraw failed: %v", err)
	}

	led.mu.Lock()
	defer led.mu.Unlock()
	if len(led.updateReqs) != 1 {
		t.Fatalf("expected one balance update, got %d", len(led.updateReqs))
	}
	// 12000000 plus 15% commission, debited as one delta.
	if !led.updateReqs[0].Equal(decimal.RequireFromString("-13800000")) {
		t.Fatalf("delta = %s, want -13800000", led.updateReqs[0])
	}
}

func TestWithdrawInsufficientForCommission(t *testing.T) {
	led := &fakeLedger{}
	h := newHarness(t, led)
	// Enough for the amount, not for amount plus commission.
	h.state.SetAuthoritativeBalance(decimal.RequireFromString("12000000"))

	_, err := h.engine.Withdraw(context.Background(), decimal.RequireFromString("12000000"))
	if !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestRefreshBalance(t *testing.T) {
	led := &fakeLedger{balance: decimal.RequireFromString("321000")}
	h := newHarness(t, led)

	got, err := h.engine.RefreshBalance(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("321000")) {
		t.Fatalf("balance = %s, want 321000", got)
	}
	if !h.state.Balance().Equal(got) {
		t.Fatal("session cache not updated")
	}
}

func TestSyncRemoteMergesUnknownPositions(t *testing.T) {
	openedAt := time.Now().Add(-time.Minute)
	led := &fakeLedger{active: []connectors.RemotePosition{
		{
			PositionID:   "srv-1",
			Pair:         "BTCUSDT",
			Type:         "long",
			Amount:       decimal.RequireFromString("10000"),
			Leverage:     10,
			CurrentPrice: decimal.RequireFromString("50000"),
			OpenedAt:     openedAt.UnixMilli(),
			ExpiresAt:    openedAt.Add(time.Hour).UnixMilli(),
			Status:       "open",
		},
		{PositionID: "srv-2", Pair: "BTCUSDT", Type: "long", Status: "closed"},
	}}
	h := newHarness(t, led)

	if err := h.engine.SyncRemote(context.Background()); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	list := h.store.List()
	if len(list) != 1 {
		t.Fatalf("expected only the open remote position, got %d", len(list))
	}
	if list[0].RemoteID != "srv-1" {
		t.Fatalf("unexpected remote id %s", list[0].RemoteID)
	}

	// Re-syncing must not duplicate.
	if err := h.engine.SyncRemote(context.Background()); err != nil {
		t.Fatalf("second sync failed: %v", err)
	}
	if h.store.Len() != 1 {
		t.Fatalf("re-sync duplicated positions: %d", h.store.Len())
	}
}

func TestLogoutClearsLocalState(t *testing.T) {
	led := &fakeLedger{}
	h := newHarness(t, led)
	h.state.SetAuthoritativeBalance(decimal.RequireFromString("100000"))
	h.addPosition(t, "p1", model.DirectionLong, "50000", "10000")

	h.engine.Logout(context.Background())

	if h.state.Authenticated() {
		t.Fatal("session still authenticated after logout")
	}
	if h.store.Len() != 0 {
		t.Fatal("positions not cleared on logout")
	}

	h.timers.mu.Lock()
	defer h.timers.mu.Unlock()
	if h.timers.allCalls != 1 {
		t.Fatalf("expected CancelAll once, got %d", h.timers.allCalls)
	}
}

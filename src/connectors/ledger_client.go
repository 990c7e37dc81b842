package connectors

// REST CLIENT FOR THE REMOTE ACCOUNT LEDGER
// The ledger is the source of truth for balance and persisted position/trade
// history. Every response carrying a balance overwrites the local cache.

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradeclient/src/model"
)

// TokenSource yields the bearer token for authenticated calls.
// session.State satisfies it.
type TokenSource interface {
	Token() string
}

type LedgerClient struct {
	http   *resty.Client
	tokens TokenSource
}

func NewLedgerClient(baseURL string, timeout time.Duration, tokens TokenSource) *LedgerClient {
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &LedgerClient{http: httpClient, tokens: tokens}
}

// -----------------------------
// WIRE TYPES
// -----------------------------

type BalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type OpenPositionRequest struct {
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Leverage        int             `json:"leverage"`
	DurationSeconds int64           `json:"duration_seconds"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	Pair            string          `json:"pair"`
}

type OpenPositionResponse struct {
	PositionID string          `json:"position_id"`
	OpenedAt   int64           `json:"opened_at"`
	ExpiresAt  int64           `json:"expires_at"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

type ClosePositionRequest struct {
	PositionID   string          `json:"position_id"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Pnl          decimal.Decimal `json:"pnl"`
}

type ClosePositionResponse struct {
	Profit     decimal.Decimal `json:"profit"`
	ROI        decimal.Decimal `json:"roi"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

type RemotePosition struct {
	PositionID   string          `json:"position_id"`
	Pair         string          `json:"pair"`
	Type         string          `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Leverage     int             `json:"leverage"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	OpenedAt     int64           `json:"opened_at"`
	ExpiresAt    int64           `json:"expires_at"`
	Status       string          `json:"status"`
}

type UpdateBalanceRequest struct {
	AmountChange decimal.Decimal `json:"amount_change"`
}

type SaveHistoryRequest struct {
	Type   string          `json:"type"`
	Pair   string          `json:"pair"`
	Amount decimal.Decimal `json:"amount"`
	Profit decimal.Decimal `json:"profit"`
	ROI    decimal.Decimal `json:"roi"`
}

type HistoryEntry struct {
	Type     string          `json:"type"`
	Pair     string          `json:"pair"`
	Amount   decimal.Decimal `json:"amount"`
	Profit   decimal.Decimal `json:"profit"`
	ROI      decimal.Decimal `json:"roi"`
	ClosedAt int64           `json:"closed_at"`
}

// -----------------------------
// CALLS
// -----------------------------

// GetBalance fetches the authoritative balance.
func (c *LedgerClient) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	var out BalanceResponse

	resp, err := c.authed(ctx).
		SetResult(&out).
		Get("/api/user/get_balance")
	if err := c.check(resp, err, "get_balance"); err != nil {
		return decimal.Zero, err
	}

	return out.Balance, nil
}

// OpenPosition creates the position remotely. The ledger debits the margin
// and answers with the new authoritative balance.
func (c *LedgerClient) OpenPosition(ctx context.Context, req OpenPositionRequest) (*OpenPositionResponse, error) {
	var out OpenPositionResponse

	resp, err := c.authed(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/trade/open_position")
	if err := c.check(resp, err, "open_position"); err != nil {
		return nil, err
	}

	return &out, nil
}

// ClosePosition settles the position remotely and returns the realized
// outcome together with the new authoritative balance.
func (c *LedgerClient) ClosePosition(ctx context.Context, req ClosePositionRequest) (*ClosePositionResponse, error) {
	var out ClosePositionResponse

	resp, err := c.authed(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/trade/close_position")
	if err := c.check(resp, err, "close_position"); err != nil {
		return nil, err
	}

	return &out, nil
}

// ActivePositions lists positions the ledger still considers open. Used on
// reload to reconcile against the session store.
func (c *LedgerClient) ActivePositions(ctx context.Context) ([]RemotePosition, error) {
	var out []RemotePosition

	resp, err := c.authed(ctx).
		SetResult(&out).
		Get("/api/trade/active_positions")
	if err := c.check(resp, err, "active_positions"); err != nil {
		return nil, err
	}

	return out, nil
}

// UpdateBalance applies a direct balance delta (deposits, withdrawals, admin
// corrections) and returns the new authoritative balance.
func (c *LedgerClient) UpdateBalance(ctx context.Context, amountChange decimal.Decimal) (decimal.Decimal, error) {
	var out BalanceResponse

	resp, err := c.authed(ctx).
		SetBody(UpdateBalanceRequest{AmountChange: amountChange}).
		SetResult(&out).
		Post("/api/user/update_balance")
	if err := c.check(resp, err, "update_balance"); err != nil {
		return decimal.Zero, err
	}

	return out.Balance, nil
}

// SaveTradeHistory persists a realized trade. Best effort: the caller logs
// and moves on if the collaborator is down.
func (c *LedgerClient) SaveTradeHistory(ctx context.Context, rec model.TradeRecord) error {
	resp, err := c.authed(ctx).
		SetBody(SaveHistoryRequest{
			Type:   string(rec.Type),
			Pair:   rec.Pair,
			Amount: rec.Amount,
			Profit: rec.Profit,
			ROI:    rec.ROI,
		}).
		Post("/api/trade/save_history")

	return c.check(resp, err, "save_history")
}

// TradeHistory lists realized trades for the history screen.
func (c *LedgerClient) TradeHistory(ctx context.Context) ([]HistoryEntry, error) {
	var out []HistoryEntry

	resp, err := c.authed(ctx).
		SetResult(&out).
		Get("/api/user/get_positions")
	if err := c.check(resp, err, "get_positions"); err != nil {
		return nil, err
	}

	return out, nil
}

// -----------------------------
// HELPERS
// -----------------------------

func (c *LedgerClient) authed(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if token := c.tokens.Token(); token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// check maps transport failures to ErrNetworkFailure and 401 to
// ErrSessionInvalid so callers can branch with errors.Is.
func (c *LedgerClient) check(resp *resty.Response, err error, op string) error {
	if err != nil {
		logger.WithError(err).WithField("op", op).Warn("ledger call failed")
		return fmt.Errorf("ledger %s: %w: %v", op, model.ErrNetworkFailure, err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		logger.WithField("op", op).Warn("ledger rejected session token")
		return fmt.Errorf("ledger %s: %w", op, model.ErrSessionInvalid)
	case resp.IsError():
		logger.WithFields(logger.Fields{"op": op, "status": resp.StatusCode()}).
			Warn("ledger call returned non-2xx")
		return fmt.Errorf("ledger %s: %w: status %d", op, model.ErrNetworkFailure, resp.StatusCode())
	}

	return nil
}

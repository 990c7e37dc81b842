package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeRecord is a realized trade reported to the remote history collaborator
// once a position settles.
type TradeRecord struct {
	PositionID string          `json:"position_id"`
	Pair       string          `json:"pair"`
	Type       Direction       `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Profit     decimal.Decimal `json:"profit"`
	ROI        decimal.Decimal `json:"roi"`
	ClosedAt   time.Time       `json:"closed_at"`
}

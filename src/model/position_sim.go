package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction of a simulated position. "automated" is the scripted product
// variant whose outcome is fixed and not derived from the market.
type Direction string

const (
	DirectionLong      Direction = "long"
	DirectionShort     Direction = "short"
	DirectionAutomated Direction = "automated"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionLong, DirectionShort, DirectionAutomated:
		return true
	}
	return false
}

// SimPosition is a client-side simulated leveraged bet. Entry price, margin
// and leverage are immutable after creation. A position exists only while
// open; settlement removes it rather than flagging it.
type SimPosition struct {
	ID         string          `json:"id"`
	RemoteID   string          `json:"remote_id,omitempty"`
	Pair       string          `json:"pair"`
	Direction  Direction       `json:"direction"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Margin     decimal.Decimal `json:"margin"`
	Leverage   int             `json:"leverage"`
	Notional   decimal.Decimal `json:"notional"`
	OpenedAt   time.Time       `json:"opened_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// Duration is fixed at creation time.
func (p *SimPosition) Duration() time.Duration {
	return p.ExpiresAt.Sub(p.OpenedAt)
}

// Expired reports whether the deadline has passed at the given instant.
func (p *SimPosition) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

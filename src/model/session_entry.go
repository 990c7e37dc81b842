package model

import "time"

// SessionEntry is a row of the session-scoped key-value store. Values are
// JSON or opaque strings; the store is best-effort persistence only, the
// remote ledger stays the source of truth.
type SessionEntry struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	SessionKeyPositions    = "trading_positions"
	SessionKeySelectedPair = "selected_pair"
	SessionKeyAccessToken  = "access_token"
)

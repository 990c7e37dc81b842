package model

import "errors"

// Error taxonomy for the position lifecycle. Callers branch on these with
// errors.Is; transport errors are wrapped around ErrNetworkFailure so the
// retry cadence (next sweep tick or next user action) can pick them up.
var (
	// ErrNetworkFailure: a collaborator call did not complete. Last-known
	// local state is retained, nothing was mutated.
	ErrNetworkFailure = errors.New("network failure")

	// ErrInvalidPosition: open rejected by concurrency-limit or
	// minimum-amount/duration rules. Nothing was mutated.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrSessionInvalid: the ledger answered 401. The session token is no
	// longer usable and the presentation layer must force re-authentication.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrSettlementConflict: settlement found the id already claimed.
	// Expected under timer/sweep races, silently no-ops.
	ErrSettlementConflict = errors.New("settlement already in progress")

	// ErrInsufficientBalance: open would commit more margin than available.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// State step of an arbitrage execution.
type State int

const (
	StateIdle State = iota
	StateBuyPlaced
	StateAwaitBuySettlement
	StateWithdrawInitiated
	StateAwaitDepositSettlement
	StateSellPlaced
	StateDone
	StateFailed
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuyPlaced:
		return "buy_placed"
	case StateAwaitBuySettlement:
		return "await_buy_settlement"
	case StateWithdrawInitiated:
		return "withdraw_initiated"
	case StateAwaitDepositSettlement:
		return "await_deposit_settlement"
	case StateSellPlaced:
		return "sell_placed"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Report outcome of one plan execution.
type Report struct {
	Plan  ArbitragePlan
	State State
	// LastState last non-failed state reached before a failure.
	LastState       State
	BoughtAmount    decimal.Decimal
	WithdrawnAmount decimal.Decimal
	SoldAmount      decimal.Decimal
	// QuoteReturned quote amount sent back to the buy venue, zero if the return leg is off.
	QuoteReturned decimal.Decimal
	StartedAt     time.Time
	FinishedAt    time.Time
	Err           error
}

// Succeeded reports whether the sell leg completed.
func (r Report) Succeeded() bool {
	return r.State == StateDone
}

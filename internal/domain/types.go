// Package domain defines the shared types of the bridge: normalized trade
// signals, terminal-facing order requests and results, open positions, and
// the structured outcomes returned to callers.
package domain

import (
	"strings"
	"time"
)

// Action is a normalized signal action.
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionClose Action = "close"
)

// ParseAction matches s case-insensitively against the known actions.
func ParseAction(s string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionClose:
		return ActionClose, true
	}
	return "", false
}

// Side is the direction of an order or position, using the terminal's
// numeric encoding (0 = buy, 1 = sell).
type Side int

const (
	SideBuy  Side = 0
	SideSell Side = 1
)

// Opposite returns the reverse direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s Side) String() string {
	if s == SideBuy {
		return "BUY"
	}
	return "SELL"
}

// TradeSignal is the validated, normalized command derived from a webhook
// payload. It is constructed once per inbound request and consumed once.
type TradeSignal struct {
	Symbol         string  // raw ticker, before suffix resolution
	Action         Action
	Volume         float64 // always > 0 after defaulting
	StopLossPips   float64 // 0 = unset
	TakeProfitPips float64 // 0 = unset
	Ticket         int64   // optional, close-by-ticket
}

// OrderRequest is the terminal-facing representation of an order. It is
// built fresh per submission; the price is fetched live and never reused.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Volume     float64
	Price      float64
	StopLoss   float64 // absolute price, 0 = unset
	TakeProfit float64 // absolute price, 0 = unset
	Deviation  int     // max slippage in points
	Magic      int
	Comment    string
	Position   int64 // ticket of the position being closed, 0 for entries
}

// OrderResult is the terminal's verdict on a submission. Retcode is
// authoritative; Success is derived from it.
type OrderResult struct {
	Ticket  int64
	Retcode int
	Success bool
	Message string
}

// Position is an open trade on the account. The terminal is the source of
// truth; instances are snapshots, never cached across calls.
type Position struct {
	Ticket       int64
	Symbol       string
	Side         Side
	Volume       float64
	OpenPrice    float64
	CurrentPrice float64
	Profit       float64
	OpenTime     time.Time
}

// SymbolInfo describes a broker-listed instrument.
type SymbolInfo struct {
	Name       string
	Digits     int
	Point      float64
	VolumeMin  float64
	VolumeMax  float64
	VolumeStep float64
}

// Tick is the live bid/ask quote for a symbol.
type Tick struct {
	Bid  float64
	Ask  float64
	Time time.Time
}

// AccountInfo is a snapshot of the account's financial state.
type AccountInfo struct {
	Login      int64
	Balance    float64
	Equity     float64
	Margin     float64
	FreeMargin float64
	Profit     float64
}

// OutcomeState is the terminal state a signal reached.
type OutcomeState string

const (
	StateFilled   OutcomeState = "filled"
	StateRejected OutcomeState = "rejected"
	StateErrored  OutcomeState = "errored"
)

// CloseResult is the per-ticket result of a close operation.
type CloseResult struct {
	Ticket  int64  `json:"ticket"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ExecutionOutcome is the structured result of executing one signal. For
// buy/sell signals Ticket/Retcode describe the single order; for close
// signals Results is non-nil and lists every affected ticket individually,
// even when empty ("nothing to close" is a success, not an error).
type ExecutionOutcome struct {
	State   OutcomeState
	Success bool
	Ticket  int64
	Retcode int
	Message string
	Results []CloseResult
}

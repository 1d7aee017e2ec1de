// Package terminal manages the session to the MetaTrader 5 terminal and
// exposes typed calls for symbol lookup, order submission, and position
// enumeration. It knows nothing about signal semantics; callers decide what
// to submit and how to interpret failures.
package terminal

import (
	"context"

	"mtbridge/internal/domain"
)

// PositionFilter narrows a position query. Zero values mean "no filter".
type PositionFilter struct {
	Symbol string
	Ticket int64
}

// Terminal abstracts the trading terminal session for order execution and
// account queries. The live implementation is Session; tests substitute
// fakes.
type Terminal interface {
	// Connect establishes the session. It is idempotent: a healthy
	// connected session succeeds without reconnecting.
	Connect(ctx context.Context) error

	// EnsureConnected verifies session health before a trading operation,
	// attempting at most one reconnect if the session is unhealthy.
	EnsureConnected(ctx context.Context) error

	// Connected reports whether the session currently holds a live
	// connection. It does not probe the terminal.
	Connected() bool

	// SymbolInfo returns instrument details, or a *SymbolError if the
	// broker does not list the symbol.
	SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error)

	// SymbolTick returns the live bid/ask quote for a symbol.
	SymbolTick(ctx context.Context, symbol string) (domain.Tick, error)

	// SubmitOrder sends an order to the terminal. A non-success retcode is
	// returned as both the OrderResult and an *ExecutionError carrying the
	// broker's code and message verbatim.
	SubmitOrder(ctx context.Context, req *domain.OrderRequest) (domain.OrderResult, error)

	// Positions returns the open positions matching the filter, read live
	// from the terminal at call time.
	Positions(ctx context.Context, filter PositionFilter) ([]domain.Position, error)

	// ClosePosition issues an opposite-direction deal against the given
	// ticket. volume <= 0 closes the position's full volume; a positive
	// volume performs a partial close. Returns ErrPositionNotFound if the
	// ticket no longer exists.
	ClosePosition(ctx context.Context, ticket int64, volume float64) (domain.OrderResult, error)

	// AccountInfo returns a snapshot of the account's financial state.
	AccountInfo(ctx context.Context) (domain.AccountInfo, error)

	// Close tears down the session.
	Close() error
}

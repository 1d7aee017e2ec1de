package terminal

import (
	"errors"
	"fmt"
)

// ErrPositionNotFound is returned by ClosePosition when the ticket no longer
// exists on the account. Callers treat it as "already closed", not a fault.
var ErrPositionNotFound = errors.New("position not found")

// ConnectionError reports that the terminal is unreachable or the session is
// unhealthy.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("terminal connection: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("terminal connection: %s", e.Reason)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SymbolError reports that the broker does not list the given symbol.
type SymbolError struct {
	Symbol string
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("symbol %s not found", e.Symbol)
}

// ExecutionError reports a non-success status returned by the terminal for
// an order. Code and Message carry the broker's retcode and comment
// verbatim; they are never rewritten.
type ExecutionError struct {
	Code    int
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("order failed: retcode %d (%s): %s", e.Code, RetcodeDescription(e.Code), e.Message)
}
